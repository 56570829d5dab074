package repository

import (
	"context"

	"coursehub/internal/domain"
)

// CourseRepository exposes the course catalog.
type CourseRepository interface {
	Create(ctx context.Context, course *domain.Course) error
	Get(ctx context.Context, id string) (*domain.Course, error)
	List(ctx context.Context) ([]domain.Course, error)
	Update(ctx context.Context, course *domain.Course) error
	Delete(ctx context.Context, id string) error
	// Lock takes an exclusive lock on the course row that is held until the
	// surrounding transaction ends. It returns domain.ErrCourseNotFound when
	// the row is gone and domain.ErrBusy when the lock wait timed out.
	Lock(ctx context.Context, id string) error
}

// LessonRepository manages lessons of a course.
type LessonRepository interface {
	Create(ctx context.Context, lesson *domain.Lesson) error
	ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error)
}
