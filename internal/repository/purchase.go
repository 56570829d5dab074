package repository

import (
	"context"

	"coursehub/internal/domain"
)

// PurchaseRepository is the append-only purchase ledger.
type PurchaseRepository interface {
	// Create inserts a purchase. A duplicate (user, course) pair yields
	// domain.ErrAlreadyPurchased.
	Create(ctx context.Context, purchase *domain.Purchase) error
	ListByUser(ctx context.Context, userID string) ([]domain.Purchase, error)
	ListCoursesByUser(ctx context.Context, userID string) ([]domain.PurchasedCourse, error)
	Exists(ctx context.Context, userID, courseID string) (bool, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}
