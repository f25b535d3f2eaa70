package models

import "time"

// Examination holds the subject definitions an assessment is graded
// against. It is owned by the examination module; this service only
// reads it.
type Examination struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	ClassID   string        `db:"class_id" json:"class_id"`
	StartDate time.Time     `db:"start_date" json:"start_date"`
	EndDate   time.Time     `db:"end_date" json:"end_date"`
	Subjects  []ExamSubject `json:"subjects"`
}

// ExamSubject declares one gradable subject within an examination.
// MaximumMarks is authoritative even when the subject is split into
// divisions. PassingMarks is optional; the grading scale supplies a
// default when absent.
type ExamSubject struct {
	ID           string                `db:"id" json:"id"`
	ExamID       string                `db:"exam_id" json:"exam_id"`
	SubjectID    string                `db:"subject_id" json:"subject_id"`
	Name         string                `db:"name" json:"name"`
	MaximumMarks float64               `db:"maximum_marks" json:"maximum_marks"`
	PassingMarks *float64              `db:"passing_marks" json:"passing_marks,omitempty"`
	UseDivisions bool                  `db:"use_divisions" json:"use_divisions"`
	Divisions    []ExamSubjectDivision `json:"divisions,omitempty"`
}

// ExamSubjectDivision names one sub-component of a divided subject.
type ExamSubjectDivision struct {
	ID            string  `db:"id" json:"id"`
	ExamSubjectID string  `db:"exam_subject_id" json:"exam_subject_id"`
	Name          string  `db:"name" json:"name"`
	MaximumMarks  float64 `db:"maximum_marks" json:"maximum_marks"`
	Position      int     `db:"position" json:"position"`
}

// SubjectDefinition locates an exam subject by its subject reference.
func (e *Examination) SubjectDefinition(subjectID string) *ExamSubject {
	for i := range e.Subjects {
		if e.Subjects[i].SubjectID == subjectID {
			return &e.Subjects[i]
		}
	}
	return nil
}
