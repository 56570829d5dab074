package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a fresh time-ordered identifier.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// IsID reports whether s is a canonical version 7 UUID.
func IsID(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return len(s) == 36 && id.Version() == 7 && id.Variant() == uuid.RFC4122
}
