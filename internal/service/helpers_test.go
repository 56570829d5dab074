package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"coursehub/internal/domain"
	"coursehub/internal/repository/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"), 5*time.Second)
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	store      *sqlite.Store
	users      UserService
	courses    CourseService
	purchases  PurchaseService
	instructor *domain.User
	student    *domain.User
	course     *domain.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newTestStore(t)
	f := &fixture{
		store:     store,
		users:     NewUserService(store, bcrypt.MinCost),
		courses:   NewCourseService(store, nil),
		purchases: NewPurchaseService(store, PurchaseConfig{TxTimeout: 10 * time.Second, InstructorsCanListAny: true}, quietLogger()),
	}
	f.instructor = f.signup(t, "tutor@example.com", domain.RoleInstructor)
	f.student = f.signup(t, "student@example.com", domain.RoleStudent)

	course, err := f.courses.Create(context.Background(), f.instructor.ID, CourseInput{Title: "Go", Description: "Learn Go", Price: 10})
	require.NoError(t, err)
	f.course = course
	return f
}

func (f *fixture) signup(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := f.users.Signup(context.Background(), SignupInput{Email: email, Password: "secret1", Name: email, Role: string(role)})
	require.NoError(t, err)
	return u
}
