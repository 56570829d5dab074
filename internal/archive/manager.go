package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coursehub/internal/domain"
	"coursehub/internal/metrics"
	"coursehub/internal/repository"
	"coursehub/internal/storage"
)

const objectName = "lessons.json"

// Manager exports course content to object storage in the background and
// hands out temporary download links for it.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Resume(ctx context.Context) error
	Schedule(courseID string)
	Discard(ctx context.Context, courseID string) error
	URL(ctx context.Context, courseID string) (string, time.Time, error)
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	URLTTL        time.Duration
	MaxConcurrent int
	JobTimeout    time.Duration
	Logger        logrus.FieldLogger
}

// Document is the JSON body written for each course.
type Document struct {
	Course     CourseEntry   `json:"course"`
	Lessons    []LessonEntry `json:"lessons"`
	ExportedAt time.Time     `json:"exportedAt"`
}

type CourseEntry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Instructor  string  `json:"instructor"`
}

type LessonEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func newDocument(course *domain.Course, lessons []domain.Lesson, at time.Time) Document {
	doc := Document{
		Course: CourseEntry{
			ID:          course.ID,
			Title:       course.Title,
			Description: course.Description,
			Price:       course.Price,
			Instructor:  course.InstructorName,
		},
		Lessons:    make([]LessonEntry, 0, len(lessons)),
		ExportedAt: at.UTC(),
	}
	for _, l := range lessons {
		doc.Lessons = append(doc.Lessons, LessonEntry{
			ID:        l.ID,
			Title:     l.Title,
			Content:   l.Content,
			CreatedAt: l.CreatedAt,
		})
	}
	return doc
}

type manager struct {
	cfg     Config
	source  repository.Session
	storage storage.Service
	now     func() time.Time

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	active map[string]*jobHandle
}

type jobHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	// rerun is set when the course changed while its export was running.
	rerun bool
}

func NewManager(cfg Config, source repository.Session, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:     cfg,
		source:  source,
		storage: store,
		now:     time.Now,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		active:  make(map[string]*jobHandle),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return storage.ErrBucketRequired
	}
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Unlock()
	m.cfg.Logger.Infof("archive manager started, bucket: %s", m.cfg.Bucket)
	return nil
}

func (m *manager) Shutdown() {
	// no Schedule may call wg.Add once Wait has started
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("archive manager stopped")
}

// Resume re-exports every course, picking up changes made while the
// manager was not running.
func (m *manager) Resume(ctx context.Context) error {
	courses, err := m.source.Courses().List(ctx)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}
	for i := range courses {
		m.Schedule(courses[i].ID)
	}
	return nil
}

func (m *manager) Schedule(courseID string) {
	m.mu.Lock()
	if m.closed || m.ctx == nil {
		m.mu.Unlock()
		return
	}
	if handle, ok := m.active[courseID]; ok {
		handle.rerun = true
		m.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(m.ctx)
	handle := &jobHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.active[courseID] = handle
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			close(handle.done)
		}()
		for {
			select {
			case <-jobCtx.Done():
				m.unregister(courseID, handle)
				return
			case m.sem <- struct{}{}:
			}
			m.runJob(jobCtx, courseID)
			<-m.sem

			m.mu.Lock()
			if !handle.rerun || jobCtx.Err() != nil {
				if m.active[courseID] == handle {
					delete(m.active, courseID)
				}
				m.mu.Unlock()
				return
			}
			handle.rerun = false
			m.mu.Unlock()
		}
	}()
}

func (m *manager) unregister(courseID string, handle *jobHandle) {
	m.mu.Lock()
	if m.active[courseID] == handle {
		delete(m.active, courseID)
	}
	m.mu.Unlock()
}

func (m *manager) runJob(ctx context.Context, courseID string) {
	logger := m.cfg.Logger.WithField("course_id", courseID)
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JobTimeout)
	defer cancel()

	dest, err := m.export(ctx, courseID)
	switch {
	case err == nil:
		metrics.RecordArchiveJob("uploaded")
		logger.Infof("course archived to %s", dest)
	case errors.Is(err, domain.ErrCourseNotFound):
		metrics.RecordArchiveJob("skipped")
		logger.Debug("course gone, archive skipped")
	case errors.Is(err, context.Canceled):
		metrics.RecordArchiveJob("cancelled")
		logger.Debug("archive cancelled")
	default:
		metrics.RecordArchiveJob("failed")
		logger.Errorf("archive course: %v", err)
	}
}

func (m *manager) export(ctx context.Context, courseID string) (string, error) {
	course, err := m.source.Courses().Get(ctx, courseID)
	if err != nil {
		return "", err
	}
	lessons, err := m.source.Lessons().ListByCourse(ctx, courseID)
	if err != nil {
		return "", fmt.Errorf("list lessons: %w", err)
	}

	body, err := json.Marshal(newDocument(course, lessons, m.now()))
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	return m.storage.PutObject(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      m.cfg.Bucket,
		Key:         m.objectKey(courseID),
		ContentType: "application/json",
	})
}

// Discard stops any running export of the course and removes its objects.
func (m *manager) Discard(ctx context.Context, courseID string) error {
	m.mu.Lock()
	handle, ok := m.active[courseID]
	if ok {
		delete(m.active, courseID)
	}
	m.mu.Unlock()

	if ok {
		handle.cancel()
		select {
		case <-handle.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := m.storage.DeletePrefix(ctx, m.cfg.Bucket, m.coursePrefix(courseID)+"/"); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

// URL returns a presigned link to the course archive. A course that has
// not been exported yet yields domain.ErrNotFound.
func (m *manager) URL(ctx context.Context, courseID string) (string, time.Time, error) {
	key := m.objectKey(courseID)
	objects, err := m.storage.ListObjects(ctx, m.cfg.Bucket, key)
	if err != nil {
		return "", time.Time{}, err
	}
	found := false
	for _, obj := range objects {
		if obj.Key == key {
			found = true
			break
		}
	}
	if !found {
		return "", time.Time{}, fmt.Errorf("course archive not ready: %w", domain.ErrNotFound)
	}

	expires := m.now().Add(m.cfg.URLTTL).UTC()
	url, err := m.storage.GetObjectURL(ctx, m.cfg.Bucket, key, m.cfg.URLTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, expires, nil
}

func (m *manager) coursePrefix(courseID string) string {
	return storage.JoinKey(m.cfg.KeyPrefix, "courses", courseID)
}

func (m *manager) objectKey(courseID string) string {
	return storage.JoinKey(m.coursePrefix(courseID), objectName)
}

var _ Manager = (*manager)(nil)
