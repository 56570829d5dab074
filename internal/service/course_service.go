package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"coursehub/internal/auth"
	"coursehub/internal/domain"
	"coursehub/internal/repository"
)

// CourseInput carries the fields of a new course.
type CourseInput struct {
	Title       string
	Description string
	Price       float64
}

// LessonInput carries the fields of a new lesson.
type LessonInput struct {
	CourseID string
	Title    string
	Content  string
}

// ContentArchiver mirrors course content to object storage.
type ContentArchiver interface {
	Schedule(courseID string)
	Discard(ctx context.Context, courseID string) error
	URL(ctx context.Context, courseID string) (string, time.Time, error)
}

// CourseService coordinates catalog operations. Mutations are allowed only
// to the instructor who owns the course.
type CourseService interface {
	Create(ctx context.Context, instructorID string, in CourseInput) (*domain.Course, error)
	List(ctx context.Context) ([]domain.Course, error)
	Get(ctx context.Context, id string) (*domain.Course, error)
	Update(ctx context.Context, actorID, id string, patch domain.CoursePatch) (*domain.Course, error)
	Delete(ctx context.Context, actorID, id string) error
	ListLessons(ctx context.Context, courseID string) ([]domain.Lesson, error)
	CreateLesson(ctx context.Context, actorID string, in LessonInput) (*domain.Lesson, error)
	ArchiveURL(ctx context.Context, viewer auth.Identity, courseID string) (string, time.Time, error)
}

type courseService struct {
	store   repository.Store
	archive ContentArchiver
}

// NewCourseService returns a CourseService. archive may be nil when no
// object storage is configured.
func NewCourseService(store repository.Store, archive ContentArchiver) CourseService {
	return &courseService{
		store:   store,
		archive: archive,
	}
}

func (s *courseService) Create(ctx context.Context, instructorID string, in CourseInput) (*domain.Course, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}
	course := &domain.Course{
		ID:           id,
		Title:        title,
		Description:  in.Description,
		Price:        in.Price,
		InstructorID: instructorID,
	}
	if err := s.store.Courses().Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *courseService) List(ctx context.Context) ([]domain.Course, error) {
	return s.store.Courses().List(ctx)
}

func (s *courseService) Get(ctx context.Context, id string) (*domain.Course, error) {
	if !domain.IsID(id) {
		return nil, domain.ErrCourseNotFound
	}
	return s.store.Courses().Get(ctx, id)
}

func (s *courseService) Update(ctx context.Context, actorID, id string, patch domain.CoursePatch) (*domain.Course, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrValidation)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("title must not be empty: %w", domain.ErrValidation)
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
	}
	if !domain.IsID(id) {
		return nil, domain.ErrCourseNotFound
	}

	var updated *domain.Course
	err := repository.WithExclusiveLock(ctx, s.store, id, func(ctx context.Context, tx repository.Session, course *domain.Course) error {
		if course.InstructorID != actorID {
			return domain.ErrNotCourseOwner
		}
		patch.Apply(course)
		if err := tx.Courses().Update(ctx, course); err != nil {
			return err
		}
		updated = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.scheduleArchive(updated.ID)
	return updated, nil
}

// Delete removes a course and its lessons. Purchases are permanent, so a
// course that has been bought cannot be deleted. The course lock keeps a
// concurrent purchase from slipping in between the check and the delete.
func (s *courseService) Delete(ctx context.Context, actorID, id string) error {
	if !domain.IsID(id) {
		return domain.ErrCourseNotFound
	}

	err := repository.WithExclusiveLock(ctx, s.store, id, func(ctx context.Context, tx repository.Session, course *domain.Course) error {
		if course.InstructorID != actorID {
			return domain.ErrNotCourseOwner
		}
		n, err := tx.Purchases().CountByCourse(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrCourseHasPurchases
		}
		return tx.Courses().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.Discard(ctx, id); err != nil {
			return fmt.Errorf("discard course archive: %w", err)
		}
	}
	return nil
}

func (s *courseService) ListLessons(ctx context.Context, courseID string) ([]domain.Lesson, error) {
	if !domain.IsID(courseID) {
		return nil, domain.ErrCourseNotFound
	}
	if _, err := s.store.Courses().Get(ctx, courseID); err != nil {
		return nil, err
	}
	return s.store.Lessons().ListByCourse(ctx, courseID)
}

func (s *courseService) CreateLesson(ctx context.Context, actorID string, in LessonInput) (*domain.Lesson, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if !domain.IsID(in.CourseID) {
		return nil, fmt.Errorf("courseId is invalid: %w", domain.ErrValidation)
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}
	lesson := &domain.Lesson{
		ID:       id,
		CourseID: in.CourseID,
		Title:    title,
		Content:  in.Content,
	}

	err = repository.WithExclusiveLock(ctx, s.store, in.CourseID, func(ctx context.Context, tx repository.Session, course *domain.Course) error {
		if course.InstructorID != actorID {
			return domain.ErrNotCourseOwner
		}
		return tx.Lessons().Create(ctx, lesson)
	})
	if err != nil {
		return nil, err
	}

	s.scheduleArchive(lesson.CourseID)
	return lesson, nil
}

// ArchiveURL returns a temporary download link of the course archive for its
// instructor and for users entitled to the course.
func (s *courseService) ArchiveURL(ctx context.Context, viewer auth.Identity, courseID string) (string, time.Time, error) {
	if s.archive == nil {
		return "", time.Time{}, fmt.Errorf("course archive is not configured: %w", domain.ErrNotFound)
	}
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return "", time.Time{}, err
	}
	if course.InstructorID != viewer.UserID {
		entitled, err := s.store.Purchases().Exists(ctx, viewer.UserID, course.ID)
		if err != nil {
			return "", time.Time{}, err
		}
		if !entitled {
			return "", time.Time{}, fmt.Errorf("course not purchased: %w", domain.ErrForbidden)
		}
	}

	url, expires, err := s.archive.URL(ctx, course.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", time.Time{}, err
		}
		return "", time.Time{}, fmt.Errorf("archive url: %w", err)
	}
	return url, expires, nil
}

func (s *courseService) scheduleArchive(courseID string) {
	if s.archive != nil {
		s.archive.Schedule(courseID)
	}
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return fmt.Errorf("price must be a non-negative number: %w", domain.ErrValidation)
	}
	return nil
}
