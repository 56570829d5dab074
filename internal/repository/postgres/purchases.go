package postgres

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

type PurchaseRepository struct {
	db dbx.DBTX
}

func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) error {
	p.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchases (user_id, course_id, created_at) VALUES ($1, $2, $3)`,
		p.UserID, p.CourseID, p.CreatedAt)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return domain.ErrAlreadyPurchased
		case codeForeignKeyViolation:
			switch pgConstraint(err) {
			case constraintPurchaseUser:
				return domain.ErrUserNotFound
			case constraintPurchaseCourse:
				return domain.ErrCourseNotFound
			}
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]domain.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, course_id, created_at FROM purchases WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []domain.Purchase{}
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.UserID, &p.CourseID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *PurchaseRepository) ListCoursesByUser(ctx context.Context, userID string) ([]domain.PurchasedCourse, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.description, p.created_at
		 FROM purchases p JOIN courses c ON c.id = p.course_id
		 WHERE p.user_id = $1
		 ORDER BY p.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchased courses: %w", err)
	}
	defer rows.Close()

	courses := []domain.PurchasedCourse{}
	for rows.Next() {
		var pc domain.PurchasedCourse
		if err := rows.Scan(&pc.CourseID, &pc.Title, &pc.Description, &pc.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan purchased course: %w", err)
		}
		courses = append(courses, pc)
	}
	return courses, rows.Err()
}

func (r *PurchaseRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND course_id = $2)`, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

func (r *PurchaseRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE course_id = $1`, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count purchases: %w", err)
	}
	return n, nil
}
