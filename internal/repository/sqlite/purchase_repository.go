package sqlite

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

const createPurchasesTable = `
CREATE TABLE IF NOT EXISTS purchases (
	user_id TEXT NOT NULL REFERENCES users(id),
	course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE RESTRICT,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, course_id)
);
CREATE INDEX IF NOT EXISTS idx_purchases_course_id ON purchases(course_id);
`

type PurchaseRepository struct {
	db dbx.DBTX
}

func (r *PurchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	purchase.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO purchases (user_id, course_id, created_at)
VALUES (?, ?, ?)`,
		purchase.UserID,
		purchase.CourseID,
		purchase.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyPurchased
		}
		// the course row was read in the same transaction, so only the user
		// reference can be dangling
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID string) ([]domain.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id, course_id, created_at
FROM purchases
WHERE user_id=?
ORDER BY created_at ASC`, userID)
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
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.title, c.description, p.created_at
FROM purchases p
JOIN courses c ON c.id = p.course_id
WHERE p.user_id=?
ORDER BY p.created_at ASC, c.id ASC`, userID)
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
	var n int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM purchases WHERE user_id=? AND course_id=?`, userID, courseID).Scan(&n); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return n > 0, nil
}

func (r *PurchaseRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM purchases WHERE course_id=?`, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count purchases: %w", err)
	}
	return n, nil
}
