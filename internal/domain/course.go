package domain

import "time"

// Course is a sellable unit owned by an instructor.
type Course struct {
	ID           string
	Title        string
	Description  string
	Price        float64
	InstructorID string
	// InstructorName is populated by catalog reads joined with users.
	InstructorName string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CoursePatch carries the optional fields of a course edit.
type CoursePatch struct {
	Title       *string
	Description *string
	Price       *float64
}

// Empty reports whether the patch changes nothing.
func (p CoursePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil
}

// Apply copies the set fields of the patch onto c.
func (p CoursePatch) Apply(c *Course) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
}

// Lesson is a piece of course content.
type Lesson struct {
	ID        string
	CourseID  string
	Title     string
	Content   string
	CreatedAt time.Time
}
