package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"coursehub/internal/dbx"
	"coursehub/internal/domain"
	"coursehub/internal/repository"
	"coursehub/internal/repository/postgres/migrations"
)

// Store is the Postgres-backed store. Course locks are real row locks, so
// several service instances may share one database.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	session
}

// NewStore wraps db. A positive lockTimeout bounds every lock wait inside
// WithTx; once exceeded the transaction fails with domain.ErrBusy.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout, session: session{db: db}}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, s repository.Session) error) error {
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx dbx.DBTX) error {
		if s.lockTimeout > 0 {
			// SET does not take bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(ctx, session{db: tx})
	})
	return err
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
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

func busy(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrBusy, err)
}
