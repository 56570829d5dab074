package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the marketplace role a user signs up with.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
)

// ParseRole accepts the two known roles, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleInstructor:
		return RoleInstructor, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, ErrValidation)
}

// User represents an account of the marketplace.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
