package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

const createCoursesTable = `
CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	price REAL NOT NULL CHECK (price >= 0),
	instructor_id TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_courses_instructor_id ON courses(instructor_id);
`

const selectCourse = `
SELECT c.id, c.title, c.description, c.price, c.instructor_id, u.name, c.created_at, c.updated_at
FROM courses c
JOIN users u ON u.id = c.instructor_id`

type CourseRepository struct {
	db dbx.DBTX
}

func (r *CourseRepository) Create(ctx context.Context, course *domain.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO courses (id, title, description, price, instructor_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		course.ID,
		course.Title,
		course.Description,
		course.Price,
		course.InstructorID,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (r *CourseRepository) Get(ctx context.Context, id string) (*domain.Course, error) {
	row := r.db.QueryRowContext(ctx, selectCourse+`
WHERE c.id = ?`, id)
	return scanCourse(row)
}

func (r *CourseRepository) List(ctx context.Context) ([]domain.Course, error) {
	rows, err := r.db.QueryContext(ctx, selectCourse+`
ORDER BY c.id ASC`)
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
	res, err := r.db.ExecContext(ctx, `
UPDATE courses
SET title=?, description=?, price=?, updated_at=?
WHERE id=?`,
		course.Title,
		course.Description,
		course.Price,
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res, "update course")
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE course_id=?`, id); err != nil {
		return fmt.Errorf("delete course lessons: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res, "delete course")
}

// Lock only confirms the row still exists: the IMMEDIATE transaction already
// owns the database write lock.
func (r *CourseRepository) Lock(ctx context.Context, id string) error {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM courses WHERE id = ?`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCourseNotFound
		}
		if isBusy(err) {
			return fmt.Errorf("%w: %v", domain.ErrBusy, err)
		}
		return fmt.Errorf("lock course: %w", err)
	}
	return nil
}

func scanCourse(scanner interface {
	Scan(dest ...any) error
}) (*domain.Course, error) {
	var course domain.Course
	if err := scanner.Scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.Price,
		&course.InstructorID,
		&course.InstructorName,
		&course.CreatedAt,
		&course.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	return &course, nil
}

func expectAffected(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}
