package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrValidation      = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	// ErrBusy is returned when a lock could not be acquired in time.
	ErrBusy = errors.New("resource busy")
)

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrUserAlreadyExists  = fmt.Errorf("user already exists: %w", ErrConflict)
	ErrAlreadyPurchased   = fmt.Errorf("course already purchased: %w", ErrConflict)
	ErrCourseHasPurchases = fmt.Errorf("course has purchases: %w", ErrConflict)
	ErrNotCourseOwner     = fmt.Errorf("not the course instructor: %w", ErrForbidden)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)
)
