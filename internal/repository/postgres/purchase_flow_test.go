package postgres

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"coursehub/internal/domain"
	"coursehub/internal/service"
)

func newPurchaseService(store *Store) service.PurchaseService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return service.NewPurchaseService(store, service.PurchaseConfig{TxTimeout: 5 * time.Second}, logger)
}

// expectLockedCourse expects the transaction prologue up to and including the
// course row lock.
func expectLockedCourse(mock sqlmock.Sqlmock) {
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = 1500`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)FROM courses c JOIN users u ON u\.id = c\.instructor_id\s+WHERE c\.id = \$1`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows(courseColumns()).AddRow(courseID, "Go", "Learn Go", 10.0, userID, "Rob", now, now))
	mock.ExpectQuery(`SELECT id FROM courses WHERE id = \$1 FOR UPDATE`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(courseID))
}

const buyerID = "0192f0c1-7f3a-7cc2-8f1e-6a3b2c1d0e11"

func TestPurchaseFlow_LocksThenScansThenInserts(t *testing.T) {
	store, mock := newMockStore(t, 1500*time.Millisecond)

	expectLockedCourse(mock)
	mock.ExpectQuery(`SELECT user_id, course_id, created_at FROM purchases WHERE user_id = \$1`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "course_id", "created_at"}))
	mock.ExpectExec(`INSERT INTO purchases \(user_id, course_id, created_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(buyerID, courseID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, newPurchaseService(store).Purchase(context.Background(), buyerID, courseID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseFlow_DuplicateFoundByScanRollsBack(t *testing.T) {
	store, mock := newMockStore(t, 1500*time.Millisecond)

	expectLockedCourse(mock)
	mock.ExpectQuery(`SELECT user_id, course_id, created_at FROM purchases WHERE user_id = \$1`).
		WithArgs(buyerID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "course_id", "created_at"}).
			AddRow(buyerID, courseID, time.Now().UTC()))
	mock.ExpectRollback()

	err := newPurchaseService(store).Purchase(context.Background(), buyerID, courseID)
	require.ErrorIs(t, err, domain.ErrAlreadyPurchased)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseFlow_MissingCourseNeverLocks(t *testing.T) {
	store, mock := newMockStore(t, 1500*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM courses c JOIN users u`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows(courseColumns()))
	mock.ExpectRollback()

	err := newPurchaseService(store).Purchase(context.Background(), buyerID, courseID)
	require.ErrorIs(t, err, domain.ErrCourseNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseFlow_LockTimeoutIsBusy(t *testing.T) {
	store, mock := newMockStore(t, 1500*time.Millisecond)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM courses c JOIN users u`).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows(courseColumns()).AddRow(courseID, "Go", "Learn Go", 10.0, userID, "Rob", now, now))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(courseID).
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable})
	mock.ExpectRollback()

	err := newPurchaseService(store).Purchase(context.Background(), buyerID, courseID)
	require.ErrorIs(t, err, domain.ErrBusy)
	require.NoError(t, mock.ExpectationsWereMet())
}
