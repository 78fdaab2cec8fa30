package models

import "time"

// Catalog rows are owned by the course service. The engine only reads them to
// check course ownership and enrollment.

type Course struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	InstructorID string `json:"instructor_id" gorm:"not null;index;size:255"`
	Title        string `json:"title" gorm:"size:200"`
}

func (Course) TableName() string {
	return "courses"
}

type Lesson struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	CourseID uint   `json:"course_id" gorm:"not null;index"`
	Title    string `json:"title" gorm:"size:200"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	CourseID  uint             `json:"course_id" gorm:"not null;index"`
	StudentID string           `json:"student_id" gorm:"not null;index;size:255"`
	Status    EnrollmentStatus `json:"status" gorm:"not null;size:20"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
