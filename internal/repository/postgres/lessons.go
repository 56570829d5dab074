package postgres

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

type LessonRepository struct {
	db dbx.DBTX
}

func (r *LessonRepository) Create(ctx context.Context, lesson *domain.Lesson) error {
	lesson.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lessons (id, course_id, title, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		lesson.ID, lesson.CourseID, lesson.Title, lesson.Content, lesson.CreatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrCourseNotFound
		}
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, title, content, created_at FROM lessons WHERE course_id = $1 ORDER BY id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	lessons := []domain.Lesson{}
	for rows.Next() {
		var l domain.Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}
