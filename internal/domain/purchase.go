package domain

import "time"

// Purchase records the entitlement of a user to a course. At most one exists
// per (UserID, CourseID) pair and it is never modified once written.
type Purchase struct {
	UserID    string
	CourseID  string
	CreatedAt time.Time
}

// PurchasedCourse is a purchase joined with the catalog data of its course.
type PurchasedCourse struct {
	CourseID    string
	Title       string
	Description string
	PurchasedAt time.Time
}
