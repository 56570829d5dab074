package repository

import (
	"context"
	"fmt"

	"coursehub/internal/domain"
)

// Session hands out repositories that share one store handle. A session
// obtained inside a transaction reads and writes through that transaction.
type Session interface {
	Users() UserRepository
	Courses() CourseRepository
	Lessons() LessonRepository
	Purchases() PurchaseRepository
}

// Store is a transactional backing store. Its embedded Session runs every
// statement in autocommit mode.
type Store interface {
	Session
	// WithTx runs fn in a single transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Session) error) error
	Migrate(ctx context.Context) error
	Close() error
}

// WithExclusiveLock runs fn in one transaction after loading the course and
// taking an exclusive lock on its row. Concurrent callers for the same course
// are serialized; callers for different courses do not wait for each other.
func WithExclusiveLock(ctx context.Context, store Store, courseID string, fn func(ctx context.Context, s Session, course *domain.Course) error) error {
	return store.WithTx(ctx, func(ctx context.Context, s Session) error {
		course, err := s.Courses().Get(ctx, courseID)
		if err != nil {
			return err
		}
		if err := s.Courses().Lock(ctx, courseID); err != nil {
			return fmt.Errorf("lock course %s: %w", courseID, err)
		}
		return fn(ctx, s, course)
	})
}
