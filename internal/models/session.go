package models

import (
	"fmt"
	"math"
	"time"
)

// AttendanceType is the caller-declared kind of a class session.
type AttendanceType string

const (
	AttendanceTypeNormal       AttendanceType = "NORMAL"
	AttendanceTypeTeacherLeave AttendanceType = "TEACHER_LEAVE"
	AttendanceTypeHoliday      AttendanceType = "SCHOOL_HOLIDAY"
)

// Valid returns true when the type is a supported value.
func (t AttendanceType) Valid() bool {
	switch t {
	case AttendanceTypeNormal, AttendanceTypeTeacherLeave, AttendanceTypeHoliday:
		return true
	default:
		return false
	}
}

// SessionStatus yields the session status implied by the attendance type.
// Non-normal types are terminal for the day and bypass marking entirely.
func (t AttendanceType) SessionStatus() SessionStatus {
	switch t {
	case AttendanceTypeTeacherLeave:
		return SessionStatusTeacherLeave
	case AttendanceTypeHoliday:
		return SessionStatusHoliday
	default:
		return SessionStatusCompleted
	}
}

// SessionStatus tracks the lifecycle of a class session.
type SessionStatus string

const (
	SessionStatusScheduled    SessionStatus = "SCHEDULED"
	SessionStatusOngoing      SessionStatus = "ONGOING"
	SessionStatusCompleted    SessionStatus = "COMPLETED"
	SessionStatusCancelled    SessionStatus = "CANCELLED"
	SessionStatusPostponed    SessionStatus = "POSTPONED"
	SessionStatusHoliday      SessionStatus = "HOLIDAY"
	SessionStatusTeacherLeave SessionStatus = "TEACHER_LEAVE"
)

// EntryStatus is one student's attendance outcome within a session.
type EntryStatus string

const (
	EntryStatusPresent   EntryStatus = "PRESENT"
	EntryStatusAbsent    EntryStatus = "ABSENT"
	EntryStatusLate      EntryStatus = "LATE"
	EntryStatusExcused   EntryStatus = "EXCUSED"
	EntryStatusLeftEarly EntryStatus = "LEFT_EARLY"
)

// Valid returns true when the status is a supported value.
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusPresent, EntryStatusAbsent, EntryStatusLate, EntryStatusExcused, EntryStatusLeftEarly:
		return true
	default:
		return false
	}
}

// Attended reports whether the status counts toward the attendance
// percentage numerator. A late arrival is still attendance.
func (s EntryStatus) Attended() bool {
	return s == EntryStatusPresent || s == EntryStatusLate
}

// EntryRevision is one append-only audit record of a status change.
type EntryRevision struct {
	ID             string      `db:"id" json:"id"`
	EntryID        string      `db:"entry_id" json:"entry_id"`
	PreviousStatus EntryStatus `db:"previous_status" json:"previous_status"`
	NewStatus      EntryStatus `db:"new_status" json:"new_status"`
	Reason         string      `db:"reason" json:"reason"`
	Actor          string      `db:"actor" json:"actor"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// SessionEntry is one student's attendance record within a session. Its
// identity survives re-marking so the revision log stays continuous.
type SessionEntry struct {
	ID            string          `db:"id" json:"id"`
	SessionID     string          `db:"session_id" json:"session_id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	Status        EntryStatus     `db:"status" json:"status"`
	ArrivalTime   *time.Time      `db:"arrival_time" json:"arrival_time,omitempty"`
	DepartureTime *time.Time      `db:"departure_time" json:"departure_time,omitempty"`
	AbsenceReason *string         `db:"absence_reason" json:"absence_reason,omitempty"`
	Enrolled      bool            `db:"enrolled" json:"enrolled"`
	MarkedBy      string          `db:"marked_by" json:"marked_by"`
	MarkedAt      time.Time       `db:"marked_at" json:"marked_at"`
	Revisions     []EntryRevision `json:"revisions,omitempty"`
}

// SessionStatistics is derived from the entry list and never set by a
// caller directly.
type SessionStatistics struct {
	Total                int     `db:"total" json:"total"`
	Present              int     `db:"present" json:"present"`
	Absent               int     `db:"absent" json:"absent"`
	Late                 int     `db:"late" json:"late"`
	Excused              int     `db:"excused" json:"excused"`
	LeftEarly            int     `db:"left_early" json:"left_early"`
	AttendancePercentage float64 `db:"attendance_percentage" json:"attendance_percentage"`
}

// AttendanceSession is one class meeting on one date: the aggregate root
// for attendance recording.
type AttendanceSession struct {
	ID          string            `db:"id" json:"id"`
	ClassID     string            `db:"class_id" json:"class_id"`
	Date        time.Time         `db:"date" json:"date"`
	StartTime   *time.Time        `db:"start_time" json:"start_time,omitempty"`
	EndTime     *time.Time        `db:"end_time" json:"end_time,omitempty"`
	Type        AttendanceType    `db:"attendance_type" json:"attendance_type"`
	Status      SessionStatus     `db:"status" json:"status"`
	Notes       *string           `db:"notes" json:"notes,omitempty"`
	Finalized   bool              `db:"finalized" json:"finalized"`
	FinalizedAt *time.Time        `db:"finalized_at" json:"finalized_at,omitempty"`
	FinalizedBy *string           `db:"finalized_by" json:"finalized_by,omitempty"`
	Deleted     bool              `db:"deleted" json:"-"`
	Version     int               `db:"version" json:"version"`
	Entries     []SessionEntry    `json:"entries"`
	Statistics  SessionStatistics `json:"statistics"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Entry returns the entry belonging to the given student, or nil.
func (s *AttendanceSession) Entry(studentID string) *SessionEntry {
	for i := range s.Entries {
		if s.Entries[i].StudentID == studentID {
			return &s.Entries[i]
		}
	}
	return nil
}

// Recompute rebuilds the statistics block from the current entry list.
// It must run after every entry mutation.
func (s *AttendanceSession) Recompute() {
	stats := SessionStatistics{Total: len(s.Entries)}
	for i := range s.Entries {
		switch s.Entries[i].Status {
		case EntryStatusPresent:
			stats.Present++
		case EntryStatusAbsent:
			stats.Absent++
		case EntryStatusLate:
			stats.Late++
		case EntryStatusExcused:
			stats.Excused++
		case EntryStatusLeftEarly:
			stats.LeftEarly++
		}
	}
	if stats.Total > 0 {
		stats.AttendancePercentage = math.Round(100 * float64(stats.Present+stats.Late) / float64(stats.Total))
	}
	s.Statistics = stats
}

// CheckInvariants asserts that the statistics block is consistent with the
// entry list. A failure here means a recomputation was skipped.
func (s *AttendanceSession) CheckInvariants() error {
	st := s.Statistics
	if st.Total != len(s.Entries) {
		return fmt.Errorf("session %s: statistics total %d != %d entries", s.ID, st.Total, len(s.Entries))
	}
	if st.Present+st.Absent+st.Late+st.Excused+st.LeftEarly != st.Total {
		return fmt.Errorf("session %s: status counts do not sum to total %d", s.ID, st.Total)
	}
	return nil
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	ClassID  string
	DateFrom *time.Time
	DateTo   *time.Time
	Status   *SessionStatus
	Page     int
	PageSize int
}

// ClassAttendanceStatistics is the denormalized running rollup for one
// class. It is recomputed best-effort after each session write and may be
// briefly stale.
type ClassAttendanceStatistics struct {
	ClassID           string    `db:"class_id" json:"class_id"`
	TotalSessions     int       `db:"total_sessions" json:"total_sessions"`
	AverageAttendance float64   `db:"average_attendance" json:"average_attendance"`
	ComputedAt        time.Time `db:"computed_at" json:"computed_at"`
}

// StudentAttendanceSummary aggregates one student's entries across a
// class's sessions.
type StudentAttendanceSummary struct {
	StudentID  string  `json:"student_id"`
	ClassID    string  `json:"class_id"`
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Late       int     `json:"late"`
	Excused    int     `json:"excused"`
	LeftEarly  int     `json:"left_early"`
	Percentage float64 `json:"percentage"`
}
