package sqlite

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
)

const createLessonsTable = `
CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id);
`

type LessonRepository struct {
	db dbx.DBTX
}

func (r *LessonRepository) Create(ctx context.Context, lesson *domain.Lesson) error {
	lesson.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO lessons (id, course_id, title, content, created_at)
VALUES (?, ?, ?, ?, ?)`,
		lesson.ID,
		lesson.CourseID,
		lesson.Title,
		lesson.Content,
		lesson.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, course_id, title, content, created_at
FROM lessons
WHERE course_id=?
ORDER BY id ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	lessons := []domain.Lesson{}
	for rows.Next() {
		var lesson domain.Lesson
		if err := rows.Scan(&lesson.ID, &lesson.CourseID, &lesson.Title, &lesson.Content, &lesson.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}
