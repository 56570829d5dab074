package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

const selectCourse = `SELECT c.id, c.title, c.description, c.price, c.instructor_id, u.name, c.created_at, c.updated_at
		 FROM courses c JOIN users u ON u.id = c.instructor_id`

type CourseRepository struct {
	db dbx.DBTX
}

func (r *CourseRepository) Create(ctx context.Context, course *domain.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, price, instructor_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		course.ID, course.Title, course.Description, course.Price, course.InstructorID, course.CreatedAt, course.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Get(ctx context.Context, id string) (*domain.Course, error) {
	row := r.db.QueryRowContext(ctx, selectCourse+` WHERE c.id = $1`, id)
	return scanCourse(row)
}

func (r *CourseRepository) List(ctx context.Context) ([]domain.Course, error) {
	rows, err := r.db.QueryContext(ctx, selectCourse+` ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	courses := []domain.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *course)
	}
	return courses, rows.Err()
}

func (r *CourseRepository) Update(ctx context.Context, course *domain.Course) error {
	course.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE courses SET title = $1, description = $2, price = $3, updated_at = $4 WHERE id = $5`,
		course.Title, course.Description, course.Price, course.UpdatedAt, course.ID)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res, "update course")
}

// Delete removes the course; lessons cascade, purchases restrict.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrCourseHasPurchases
		}
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res, "delete course")
}

// Lock takes a FOR UPDATE row lock on the course. Other transactions locking
// the same row block until this one commits or rolls back.
func (r *CourseRepository) Lock(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCourseNotFound
		}
		if isLockTimeout(err) {
			return busy(err)
		}
		return fmt.Errorf("select course for update: %w", err)
	}
	return nil
}

func scanCourse(scanner interface {
	Scan(dest ...any) error
}) (*domain.Course, error) {
	var c domain.Course
	err := scanner.Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.InstructorID, &c.InstructorName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	return &c, nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}
