package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"coursehub/internal/auth"
	"coursehub/internal/domain"
	"coursehub/internal/metrics"
	"coursehub/internal/repository"
)

// Purchase outcomes as reported to metrics and logs.
const (
	OutcomeSuccess          = "success"
	OutcomeAlreadyPurchased = "already_purchased"
	OutcomeCourseNotFound   = "course_not_found"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeBusy             = "busy"
	OutcomeInternalError    = "internal_error"
)

// PurchaseConfig tunes the purchase coordinator.
type PurchaseConfig struct {
	// TxTimeout bounds one purchase transaction, lock wait included.
	// Zero means no bound beyond the store's own lock timeout.
	TxTimeout time.Duration
	// InstructorsCanListAny lets non-student roles read anybody's purchases.
	// When false every caller may only read their own.
	InstructorsCanListAny bool
}

// PurchaseService records course entitlements.
type PurchaseService interface {
	// Purchase enrolls userID in courseID. It returns nil,
	// domain.ErrAlreadyPurchased, domain.ErrCourseNotFound,
	// domain.ErrUserNotFound, domain.ErrBusy or an internal error.
	Purchase(ctx context.Context, userID, courseID string) error
	ListPurchases(ctx context.Context, viewer auth.Identity, userID string) ([]domain.PurchasedCourse, error)
}

type purchaseService struct {
	store  repository.Store
	cfg    PurchaseConfig
	logger logrus.FieldLogger
}

func NewPurchaseService(store repository.Store, cfg PurchaseConfig, logger logrus.FieldLogger) PurchaseService {
	return &purchaseService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Purchase runs lookup, lock, duplicate check and insert as one transaction.
// The course row lock serializes all purchases of a course, so a concurrent
// attempt by the same user sees the committed row and gets
// ErrAlreadyPurchased. The transaction is detached from ctx: a caller that
// goes away does not abort it half way.
func (s *purchaseService) Purchase(ctx context.Context, userID, courseID string) error {
	if !domain.IsID(courseID) {
		metrics.CountPurchase(OutcomeCourseNotFound)
		return domain.ErrCourseNotFound
	}

	txCtx := context.WithoutCancel(ctx)
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(txCtx, s.cfg.TxTimeout)
		defer cancel()
	}

	start := time.Now()
	err := repository.WithExclusiveLock(txCtx, s.store, courseID, func(ctx context.Context, tx repository.Session, course *domain.Course) error {
		purchases, err := tx.Purchases().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range purchases {
			if p.CourseID == course.ID {
				return domain.ErrAlreadyPurchased
			}
		}
		return tx.Purchases().Create(ctx, &domain.Purchase{UserID: userID, CourseID: course.ID})
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: purchase transaction timed out: %v", domain.ErrBusy, err)
	}

	outcome := purchaseOutcome(err)
	elapsed := time.Since(start)
	metrics.RecordPurchase(outcome, elapsed)

	log := s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"course_id": courseID,
		"outcome":   outcome,
		"elapsed":   elapsed,
	})
	switch outcome {
	case OutcomeSuccess:
		log.Info("course purchased")
		return nil
	case OutcomeInternalError:
		log.WithError(err).Error("purchase failed")
		return fmt.Errorf("purchase course %s: %w", courseID, err)
	default:
		log.Debug("purchase rejected")
		return err
	}
}

// ListPurchases returns the courses userID has bought. Students may only
// read their own list.
func (s *purchaseService) ListPurchases(ctx context.Context, viewer auth.Identity, userID string) ([]domain.PurchasedCourse, error) {
	if viewer.UserID != userID {
		if viewer.Role == domain.RoleStudent || !s.cfg.InstructorsCanListAny {
			return nil, fmt.Errorf("purchases of another user: %w", domain.ErrForbidden)
		}
	}
	if !domain.IsID(userID) {
		return nil, domain.ErrUserNotFound
	}
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Purchases().ListCoursesByUser(ctx, userID)
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrAlreadyPurchased):
		return OutcomeAlreadyPurchased
	case errors.Is(err, domain.ErrCourseNotFound):
		return OutcomeCourseNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		return OutcomeUserNotFound
	case errors.Is(err, domain.ErrBusy):
		return OutcomeBusy
	default:
		return OutcomeInternalError
	}
}
