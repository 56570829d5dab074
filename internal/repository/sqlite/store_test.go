package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/domain"
	"coursehub/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "coursehub.db"), time.Second)
	require.NoError(t, err)
	store := NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func mustID(t *testing.T) string {
	t.Helper()
	id, err := domain.NewID()
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T, s repository.Session, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{ID: mustID(t), Email: email, PasswordHash: "hash", Name: email, Role: role}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedCourse(t *testing.T, s repository.Session, instructorID string) *domain.Course {
	t.Helper()
	c := &domain.Course{ID: mustID(t), Title: "Go", Description: "Learn Go", Price: 10, InstructorID: instructorID}
	require.NoError(t, s.Courses().Create(context.Background(), c))
	return c
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestUsers_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, store, "ann@example.com", domain.RoleStudent)

	got, err := store.Users().GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, domain.RoleStudent, got.Role)

	got, err = store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email)

	_, err = store.Users().GetByID(ctx, mustID(t))
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	dup := &domain.User{ID: mustID(t), Email: "ann@example.com", PasswordHash: "x", Name: "x", Role: domain.RoleStudent}
	require.ErrorIs(t, store.Users().Create(ctx, dup), domain.ErrUserAlreadyExists)
}

func TestCourses_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inst := seedUser(t, store, "inst@example.com", domain.RoleInstructor)
	c := seedCourse(t, store, inst.ID)

	got, err := store.Courses().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
	assert.Equal(t, "inst@example.com", got.InstructorName)

	got.Title = "Advanced Go"
	got.Price = 20
	require.NoError(t, store.Courses().Update(ctx, got))

	list, err := store.Courses().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Advanced Go", list[0].Title)
	assert.Equal(t, 20.0, list[0].Price)

	lesson := &domain.Lesson{ID: mustID(t), CourseID: c.ID, Title: "Intro", Content: "hello"}
	require.NoError(t, store.Lessons().Create(ctx, lesson))

	require.NoError(t, store.Courses().Delete(ctx, c.ID))
	_, err = store.Courses().Get(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrCourseNotFound)

	lessons, err := store.Lessons().ListByCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, lessons)

	require.ErrorIs(t, store.Courses().Delete(ctx, c.ID), domain.ErrCourseNotFound)
}

func TestPurchases_UniquePair(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inst := seedUser(t, store, "inst@example.com", domain.RoleInstructor)
	student := seedUser(t, store, "stu@example.com", domain.RoleStudent)
	c := seedCourse(t, store, inst.ID)

	require.NoError(t, store.Purchases().Create(ctx, &domain.Purchase{UserID: student.ID, CourseID: c.ID}))
	err := store.Purchases().Create(ctx, &domain.Purchase{UserID: student.ID, CourseID: c.ID})
	require.ErrorIs(t, err, domain.ErrAlreadyPurchased)

	ok, err := store.Purchases().Exists(ctx, student.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.Purchases().CountByCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	courses, err := store.Purchases().ListCoursesByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, c.ID, courses[0].CourseID)
	assert.Equal(t, "Learn Go", courses[0].Description)

	// purchased courses cannot be removed from the catalog
	require.Error(t, store.Courses().Delete(ctx, c.ID))
}

func TestWithTx_RollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inst := seedUser(t, store, "inst@example.com", domain.RoleInstructor)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, s repository.Session) error {
		seedCourse(t, s, inst.ID)
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := store.Courses().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithExclusiveLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inst := seedUser(t, store, "inst@example.com", domain.RoleInstructor)
	c := seedCourse(t, store, inst.ID)

	var seen string
	err := repository.WithExclusiveLock(ctx, store, c.ID, func(ctx context.Context, s repository.Session, course *domain.Course) error {
		seen = course.ID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, seen)

	err = repository.WithExclusiveLock(ctx, store, mustID(t), func(ctx context.Context, s repository.Session, course *domain.Course) error {
		t.Fatal("callback must not run for a missing course")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestPurchases_UnknownUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inst := seedUser(t, store, "inst@example.com", domain.RoleInstructor)
	c := seedCourse(t, store, inst.ID)

	err := store.Purchases().Create(ctx, &domain.Purchase{UserID: mustID(t), CourseID: c.ID})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWithTx_WaitBoundedByContext(t *testing.T) {
	store := newTestStore(t)
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithTx(context.Background(), func(ctx context.Context, s repository.Session) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := store.WithTx(ctx, func(ctx context.Context, s repository.Session) error {
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	close(release)
	require.NoError(t, <-done)
}
