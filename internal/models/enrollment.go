package models

import "time"

// EnrollmentStatus tracks whether a student still belongs to a class.
// Only ACTIVE enrollments feed the attendance roster.
type EnrollmentStatus string

const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusGraduated   EnrollmentStatus = "GRADUATED"
	EnrollmentStatusLeft        EnrollmentStatus = "LEFT"
)

// Enrollment is a student's registration to a class. Sessions keep
// entries for students whose enrollment ends mid-term.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	JoinedAt  time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt    *time.Time       `db:"left_at" json:"left_at,omitempty"`
	Status    EnrollmentStatus `db:"status" json:"status"`
}
