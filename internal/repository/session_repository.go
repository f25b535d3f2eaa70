package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/sams-api/internal/models"
)

// SessionRepository persists attendance session aggregates. A session row
// carries its derived statistics; entries and their revision logs live in
// child tables and are written inside the same transaction as the root.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, class_id, date, start_time, end_time, attendance_type, status, notes,
finalized, finalized_at, finalized_by, deleted, version,
total, present, absent, late, excused, left_early, attendance_percentage,
created_at, updated_at`

type sessionRow struct {
	models.AttendanceSession
	models.SessionStatistics
}

// FindByID loads a full session including entries and revisions.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE id = $1`, sessionColumns)
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	session := row.AttendanceSession
	session.Statistics = row.SessionStatistics
	if err := r.loadEntries(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByClassAndDate loads the one non-deleted session for a class+date.
func (r *SessionRepository) FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions
WHERE class_id = $1 AND date = $2 AND deleted = FALSE`, sessionColumns)
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, classID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find session by class and date: %w", err)
	}
	session := row.AttendanceSession
	session.Statistics = row.SessionStatistics
	if err := r.loadEntries(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns session headers matching the filter, newest first. Entries
// are not loaded; listing is a summary view.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error) {
	where := []string{"deleted = FALSE"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE %s
ORDER BY date DESC, id ASC LIMIT %d OFFSET %d`, sessionColumns, whereClause, size, offset)
	var rows []sessionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_sessions WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	sessions := make([]models.AttendanceSession, 0, len(rows))
	for _, row := range rows {
		session := row.AttendanceSession
		session.Statistics = row.SessionStatistics
		sessions = append(sessions, session)
	}
	return sessions, total, nil
}

// ListByClass returns all of a class's non-deleted session headers within
// the optional date range.
func (r *SessionRepository) ListByClass(ctx context.Context, classID string, from, to *time.Time) ([]models.AttendanceSession, error) {
	filter := models.SessionFilter{ClassID: classID, DateFrom: from, DateTo: to, Page: 1, PageSize: 200}
	var all []models.AttendanceSession
	for {
		batch, total, err := r.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
		filter.Page++
	}
}

// Create inserts the session aggregate in one transaction.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO attendance_sessions (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`, sessionColumns)
	st := session.Statistics
	if _, err := tx.ExecContext(ctx, query,
		session.ID, session.ClassID, session.Date, session.StartTime, session.EndTime,
		session.Type, session.Status, session.Notes,
		session.Finalized, session.FinalizedAt, session.FinalizedBy, session.Deleted, session.Version,
		st.Total, st.Present, st.Absent, st.Late, st.Excused, st.LeftEarly, st.AttendancePercentage,
		session.CreatedAt, session.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := r.saveEntries(ctx, tx, session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	committed = true
	return nil
}

// Update rewrites the session aggregate. The version predicate rejects a
// stale write: when no row matches, sql.ErrNoRows is returned and the
// caller decides whether that is a conflict.
func (r *SessionRepository) Update(ctx context.Context, session *models.AttendanceSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := `UPDATE attendance_sessions SET
start_time = $1, end_time = $2, attendance_type = $3, status = $4, notes = $5,
finalized = $6, finalized_at = $7, finalized_by = $8, deleted = $9, version = version + 1,
total = $10, present = $11, absent = $12, late = $13, excused = $14, left_early = $15, attendance_percentage = $16,
updated_at = $17
WHERE id = $18 AND version = $19`
	st := session.Statistics
	result, err := tx.ExecContext(ctx, query,
		session.StartTime, session.EndTime, session.Type, session.Status, session.Notes,
		session.Finalized, session.FinalizedAt, session.FinalizedBy, session.Deleted,
		st.Total, st.Present, st.Absent, st.Late, st.Excused, st.LeftEarly, st.AttendancePercentage,
		session.UpdatedAt, session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	session.Version++

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_entries WHERE session_id = $1`, session.ID); err != nil {
		return fmt.Errorf("clear session entries: %w", err)
	}
	if err := r.saveEntries(ctx, tx, session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update session: %w", err)
	}
	committed = true
	return nil
}

// SoftDelete flags the session deleted, freeing the class+date slot.
func (r *SessionRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE attendance_sessions SET deleted = TRUE, updated_at = $1 WHERE id = $2 AND deleted = FALSE`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveClassStatistics upserts the denormalized per-class rollup.
func (r *SessionRepository) SaveClassStatistics(ctx context.Context, stats *models.ClassAttendanceStatistics) error {
	query := `INSERT INTO class_attendance_statistics (class_id, total_sessions, average_attendance, computed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (class_id)
DO UPDATE SET total_sessions = EXCLUDED.total_sessions, average_attendance = EXCLUDED.average_attendance, computed_at = EXCLUDED.computed_at`
	if _, err := r.db.ExecContext(ctx, query, stats.ClassID, stats.TotalSessions, stats.AverageAttendance, stats.ComputedAt); err != nil {
		return fmt.Errorf("save class statistics: %w", err)
	}
	return nil
}

// StudentSummary aggregates one student's entries across a class's
// completed sessions. sql.ErrNoRows signals the student has no entries.
func (r *SessionRepository) StudentSummary(ctx context.Context, classID, studentID string) (*models.StudentAttendanceSummary, error) {
	query := `SELECT
COUNT(*) AS total,
COUNT(*) FILTER (WHERE e.status = 'PRESENT') AS present,
COUNT(*) FILTER (WHERE e.status = 'ABSENT') AS absent,
COUNT(*) FILTER (WHERE e.status = 'LATE') AS late,
COUNT(*) FILTER (WHERE e.status = 'EXCUSED') AS excused,
COUNT(*) FILTER (WHERE e.status = 'LEFT_EARLY') AS left_early
FROM session_entries e
JOIN attendance_sessions s ON s.id = e.session_id
WHERE s.class_id = $1 AND e.student_id = $2 AND s.deleted = FALSE AND s.status = 'COMPLETED'`
	var row struct {
		Total     int `db:"total"`
		Present   int `db:"present"`
		Absent    int `db:"absent"`
		Late      int `db:"late"`
		Excused   int `db:"excused"`
		LeftEarly int `db:"left_early"`
	}
	if err := r.db.GetContext(ctx, &row, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	if row.Total == 0 {
		return nil, sql.ErrNoRows
	}
	summary := &models.StudentAttendanceSummary{
		StudentID: studentID,
		ClassID:   classID,
		Total:     row.Total,
		Present:   row.Present,
		Absent:    row.Absent,
		Late:      row.Late,
		Excused:   row.Excused,
		LeftEarly: row.LeftEarly,
	}
	if summary.Total > 0 {
		summary.Percentage = 100 * float64(summary.Present+summary.Late) / float64(summary.Total)
	}
	return summary, nil
}

func (r *SessionRepository) loadEntries(ctx context.Context, session *models.AttendanceSession) error {
	query := `SELECT id, session_id, student_id, status, arrival_time, departure_time, absence_reason, enrolled, marked_by, marked_at
FROM session_entries WHERE session_id = $1 ORDER BY student_id ASC`
	if err := r.db.SelectContext(ctx, &session.Entries, query, session.ID); err != nil {
		return fmt.Errorf("load session entries: %w", err)
	}
	if len(session.Entries) == 0 {
		return nil
	}

	entryIDs := make([]string, 0, len(session.Entries))
	index := make(map[string]*models.SessionEntry, len(session.Entries))
	for i := range session.Entries {
		entryIDs = append(entryIDs, session.Entries[i].ID)
		index[session.Entries[i].ID] = &session.Entries[i]
	}
	revQuery, args, err := sqlx.In(`SELECT id, entry_id, previous_status, new_status, reason, actor, created_at
FROM entry_revisions WHERE entry_id IN (?) ORDER BY created_at ASC, id ASC`, entryIDs)
	if err != nil {
		return fmt.Errorf("build revision query: %w", err)
	}
	var revisions []models.EntryRevision
	if err := r.db.SelectContext(ctx, &revisions, r.db.Rebind(revQuery), args...); err != nil {
		return fmt.Errorf("load entry revisions: %w", err)
	}
	for _, revision := range revisions {
		if entry, ok := index[revision.EntryID]; ok {
			entry.Revisions = append(entry.Revisions, revision)
		}
	}
	return nil
}

// saveEntries rewrites the entry rows and appends any new revisions. The
// revision insert conflicts away rows already stored, keeping the log
// append-only across full entry rewrites.
func (r *SessionRepository) saveEntries(ctx context.Context, tx *sqlx.Tx, session *models.AttendanceSession) error {
	entryQuery := `INSERT INTO session_entries (id, session_id, student_id, status, arrival_time, departure_time, absence_reason, enrolled, marked_by, marked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	revisionQuery := `INSERT INTO entry_revisions (id, entry_id, previous_status, new_status, reason, actor, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	for i := range session.Entries {
		entry := &session.Entries[i]
		if _, err := tx.ExecContext(ctx, entryQuery,
			entry.ID, session.ID, entry.StudentID, entry.Status,
			entry.ArrivalTime, entry.DepartureTime, entry.AbsenceReason,
			entry.Enrolled, entry.MarkedBy, entry.MarkedAt,
		); err != nil {
			return fmt.Errorf("insert session entry: %w", err)
		}
		for j := range entry.Revisions {
			revision := &entry.Revisions[j]
			if _, err := tx.ExecContext(ctx, revisionQuery,
				revision.ID, revision.EntryID, revision.PreviousStatus, revision.NewStatus,
				revision.Reason, revision.Actor, revision.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert entry revision: %w", err)
			}
		}
	}
	return nil
}
