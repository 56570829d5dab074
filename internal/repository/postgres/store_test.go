package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/domain"
	"coursehub/internal/repository"
)

const (
	courseID = "0192f0c1-7f3a-7cc2-8f1e-6a3b2c1d0e0f"
	userID   = "0192f0c1-7f3a-7cc2-8f1e-6a3b2c1d0e10"
)

func newMockStore(t *testing.T, lockTimeout time.Duration) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, lockTimeout), mock
}

func courseColumns() []string {
	return []string{"id", "title", "description", "price", "instructor_id", "name", "created_at", "updated_at"}
}

func TestCourseLock_Success(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectQuery(`SELECT id FROM courses WHERE id = \$1 FOR UPDATE`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(courseID))

	require.NoError(t, store.Courses().Lock(context.Background(), courseID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseLock_Missing(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectQuery(`FOR UPDATE`).WithArgs(courseID).WillReturnError(sql.ErrNoRows)

	err := store.Courses().Lock(context.Background(), courseID)
	require.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestCourseLock_TimeoutIsBusy(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(courseID).
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable, Message: "canceling statement due to lock timeout"})

	err := store.Courses().Lock(context.Background(), courseID)
	require.ErrorIs(t, err, domain.ErrBusy)
}

func TestCourseGet(t *testing.T) {
	store, mock := newMockStore(t, 0)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT c\.id, .* FROM courses c JOIN users u ON u\.id = c\.instructor_id\s+WHERE c\.id = \$1`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows(courseColumns()).AddRow(courseID, "Go", "Learn Go", 10.0, userID, "Rob", now, now))

	c, err := store.Courses().Get(context.Background(), courseID)
	require.NoError(t, err)
	assert.Equal(t, "Go", c.Title)
	assert.Equal(t, "Rob", c.InstructorName)
	assert.Equal(t, 10.0, c.Price)
}

func TestCourseDelete_WithPurchases(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec(`DELETE FROM courses WHERE id = \$1`).
		WithArgs(courseID).
		WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})

	err := store.Courses().Delete(context.Background(), courseID)
	require.ErrorIs(t, err, domain.ErrCourseHasPurchases)
}

func TestCourseUpdate_Missing(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec(`UPDATE courses SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Courses().Update(context.Background(), &domain.Course{ID: courseID, Title: "x"})
	require.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestPurchaseCreate_Duplicate(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec(`INSERT INTO purchases \(user_id, course_id, created_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(userID, courseID, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "purchases_user_course_key"})

	err := store.Purchases().Create(context.Background(), &domain.Purchase{UserID: userID, CourseID: courseID})
	require.ErrorIs(t, err, domain.ErrAlreadyPurchased)
}

func TestPurchaseCreate_DBError(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec(`INSERT INTO purchases`).WillReturnError(errors.New("db down"))

	err := store.Purchases().Create(context.Background(), &domain.Purchase{UserID: userID, CourseID: courseID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert purchase: db down")
}

func TestPurchaseListCoursesByUser(t *testing.T) {
	store, mock := newMockStore(t, 0)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)FROM purchases p JOIN courses c ON c\.id = p\.course_id\s+WHERE p\.user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "created_at"}).
			AddRow(courseID, "Go", "Learn Go", now))

	got, err := store.Purchases().ListCoursesByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, courseID, got[0].CourseID)
}

func TestUserCreate_Duplicate(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})

	err := store.Users().Create(context.Background(), &domain.User{ID: userID, Email: "a@b.c", Role: domain.RoleStudent})
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestWithTx_SetsLockTimeoutAndCommits(t *testing.T) {
	store, mock := newMockStore(t, 2*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = 2000`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(courseID))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context, s repository.Session) error {
		return s.Courses().Lock(ctx, courseID)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO purchases`).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, s repository.Session) error {
		return s.Purchases().Create(ctx, &domain.Purchase{UserID: userID, CourseID: courseID})
	})
	require.ErrorIs(t, err, domain.ErrAlreadyPurchased)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UsesGoose(t *testing.T) {
	store, _ := newMockStore(t, 0)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	called := false
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	require.NoError(t, store.Migrate(context.Background()))
	assert.True(t, called)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	require.ErrorContains(t, store.Migrate(context.Background()), "boom")
}

func TestPurchaseCreate_ForeignKeyViolation(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraintPurchaseUser, domain.ErrUserNotFound},
		{constraintPurchaseCourse, domain.ErrCourseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			store, mock := newMockStore(t, 0)

			mock.ExpectExec(`INSERT INTO purchases`).
				WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: tt.constraint})

			err := store.Purchases().Create(context.Background(), &domain.Purchase{UserID: userID, CourseID: courseID})
			require.ErrorIs(t, err, tt.want)
		})
	}

	store, mock := newMockStore(t, 0)
	mock.ExpectExec(`INSERT INTO purchases`).
		WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: "something_else"})
	err := store.Purchases().Create(context.Background(), &domain.Purchase{UserID: userID, CourseID: courseID})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
