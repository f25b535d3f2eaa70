package models

import "time"

// AssessmentStatus tracks the review lifecycle of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusSubmitted AssessmentStatus = "SUBMITTED"
	AssessmentStatusVerified  AssessmentStatus = "VERIFIED"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
)

// Rank orders statuses for the monotonic transition check. Transitions may
// only move to a strictly higher rank.
func (s AssessmentStatus) Rank() int {
	switch s {
	case AssessmentStatusDraft:
		return 0
	case AssessmentStatusSubmitted:
		return 1
	case AssessmentStatusVerified:
		return 2
	case AssessmentStatusPublished:
		return 3
	default:
		return -1
	}
}

// DivisionMark is one named sub-component score within a subject mark.
type DivisionMark struct {
	ID            string  `db:"id" json:"id"`
	SubjectMarkID string  `db:"subject_mark_id" json:"subject_mark_id"`
	Name          string  `db:"name" json:"name"`
	Obtained      float64 `db:"obtained" json:"obtained"`
	Maximum       float64 `db:"maximum" json:"maximum"`
	Position      int     `db:"position" json:"position"`
}

// SubjectMark is one gradable subject outcome within an assessment. The
// derived fields (Percentage, Grade, Passed) are recomputed from the raw
// marks on every write.
type SubjectMark struct {
	ID           string         `db:"id" json:"id"`
	AssessmentID string         `db:"assessment_id" json:"assessment_id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	Obtained     float64        `db:"obtained" json:"obtained"`
	Maximum      float64        `db:"maximum" json:"maximum"`
	PassingMarks float64        `db:"passing_marks" json:"passing_marks"`
	UseDivisions bool           `db:"use_divisions" json:"use_divisions"`
	Percentage   float64        `db:"percentage" json:"percentage"`
	Grade        string         `db:"grade" json:"grade"`
	Passed       bool           `db:"passed" json:"passed"`
	Position     int            `db:"position" json:"position"`
	Divisions    []DivisionMark `json:"divisions,omitempty"`
}

// Assessment is one student's complete marks record for one examination.
// At most one exists per (exam, student). The totals, overall percentage,
// grade and pass flag are derived from the subject marks and can never be
// set independently of them.
type Assessment struct {
	ID            string           `db:"id" json:"id"`
	ExamID        string           `db:"exam_id" json:"exam_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	IsPresent     bool             `db:"is_present" json:"is_present"`
	Status        AssessmentStatus `db:"status" json:"status"`
	TotalObtained float64          `db:"total_obtained" json:"total_obtained"`
	TotalMaximum  float64          `db:"total_maximum" json:"total_maximum"`
	Percentage    float64          `db:"percentage" json:"percentage"`
	Grade         string           `db:"grade" json:"grade"`
	Passed        bool             `db:"passed" json:"passed"`
	Rank          *int             `db:"rank" json:"rank,omitempty"`
	EnteredBy     string           `db:"entered_by" json:"entered_by"`
	VerifiedBy    *string          `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt    *time.Time       `db:"verified_at" json:"verified_at,omitempty"`
	PublishedBy   *string          `db:"published_by" json:"published_by,omitempty"`
	PublishedAt   *time.Time       `db:"published_at" json:"published_at,omitempty"`
	Version       int              `db:"version" json:"version"`
	SubjectMarks  []SubjectMark    `json:"subject_marks"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// ExamStatistics is the read-only rollup across all assessments of one
// examination. Averages and extremes cover present students only.
type ExamStatistics struct {
	ExamID            string  `json:"exam_id"`
	TotalStudents     int     `json:"total_students"`
	PresentCount      int     `json:"present_count"`
	AbsentCount       int     `json:"absent_count"`
	PassedCount       int     `json:"passed_count"`
	PassPercentage    float64 `json:"pass_percentage"`
	AveragePercentage float64 `json:"average_percentage"`
	HighestObtained   float64 `json:"highest_obtained"`
	LowestObtained    float64 `json:"lowest_obtained"`
}
