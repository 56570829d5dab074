package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
	"coursehub/internal/repository"
)

// Store is the embedded single-node store. It has no row-level locks: every
// transaction holds the database write lock, which serializes all purchases
// and is therefore at least as strict as a per-course lock.
type Store struct {
	db *sql.DB
	session
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, session: session{db: db}}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, s repository.Session) error) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, session{db: tx})
	})
	if isBusy(err) {
		return fmt.Errorf("%w: %v", domain.ErrBusy, err)
	}
	return err
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createUsersTable, createCoursesTable, createLessonsTable, createPurchasesTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type session struct {
	db dbx.DBTX
}

func (s session) Users() repository.UserRepository         { return &UserRepository{db: s.db} }
func (s session) Courses() repository.CourseRepository     { return &CourseRepository{db: s.db} }
func (s session) Lessons() repository.LessonRepository     { return &LessonRepository{db: s.db} }
func (s session) Purchases() repository.PurchaseRepository { return &PurchaseRepository{db: s.db} }

var _ repository.Store = (*Store)(nil)
