package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya/sams-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionHeaderRows(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "class_id", "date", "start_time", "end_time", "attendance_type", "status", "notes",
		"finalized", "finalized_at", "finalized_by", "deleted", "version",
		"total", "present", "absent", "late", "excused", "left_early", "attendance_percentage",
		"created_at", "updated_at",
	}).AddRow(
		id, "10A", now, nil, nil, models.AttendanceTypeNormal, models.SessionStatusCompleted, nil,
		true, now, "teacher-1", false, 1,
		2, 1, 1, 0, 0, 0, 50.0,
		now, now,
	)
}

func TestSessionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM attendance_sessions WHERE id = \$1`).
		WithArgs("at-1").
		WillReturnRows(sessionHeaderRows("at-1"))
	entryRows := sqlmock.NewRows([]string{
		"id", "session_id", "student_id", "status", "arrival_time", "departure_time", "absence_reason", "enrolled", "marked_by", "marked_at",
	}).
		AddRow("e-1", "at-1", "s1", models.EntryStatusPresent, nil, nil, nil, true, "teacher-1", time.Now()).
		AddRow("e-2", "at-1", "s2", models.EntryStatusAbsent, nil, nil, nil, true, "teacher-1", time.Now())
	mock.ExpectQuery(`SELECT .+ FROM session_entries WHERE session_id = \$1 ORDER BY student_id ASC`).
		WithArgs("at-1").
		WillReturnRows(entryRows)
	revisionRows := sqlmock.NewRows([]string{"id", "entry_id", "previous_status", "new_status", "reason", "actor", "created_at"}).
		AddRow("rev-1", "e-1", models.EntryStatusAbsent, models.EntryStatusPresent, "arrived late", "teacher-1", time.Now())
	mock.ExpectQuery(`SELECT .+ FROM entry_revisions WHERE entry_id IN \(.+\)`).
		WithArgs("e-1", "e-2").
		WillReturnRows(revisionRows)

	session, err := repo.FindByID(context.Background(), "at-1")
	require.NoError(t, err)
	require.Len(t, session.Entries, 2)
	require.Equal(t, 2, session.Statistics.Total)
	require.Equal(t, 50.0, session.Statistics.AttendancePercentage)
	require.Len(t, session.Entries[0].Revisions, 1)
	require.Equal(t, "arrived late", session.Entries[0].Revisions[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindByClassAndDateNotFound(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM attendance_sessions`).
		WithArgs("10A", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByClassAndDate(context.Background(), "10A", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateWritesAggregate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	session := &models.AttendanceSession{
		ID:      "at-1",
		ClassID: "10A",
		Date:    now,
		Type:    models.AttendanceTypeNormal,
		Status:  models.SessionStatusCompleted,
		Version: 1,
		Entries: []models.SessionEntry{
			{ID: "e-1", SessionID: "at-1", StudentID: "s1", Status: models.EntryStatusPresent, Enrolled: true, MarkedBy: "teacher-1", MarkedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.Recompute()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendance_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO session_entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), session))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStaleVersion(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := &models.AttendanceSession{ID: "at-1", Version: 3}
	session.Recompute()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE attendance_sessions SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), session)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateRewritesEntries(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	session := &models.AttendanceSession{
		ID:      "at-1",
		ClassID: "10A",
		Version: 1,
		Entries: []models.SessionEntry{
			{
				ID: "e-1", SessionID: "at-1", StudentID: "s1",
				Status: models.EntryStatusPresent, Enrolled: true, MarkedBy: "teacher-1", MarkedAt: now,
				Revisions: []models.EntryRevision{
					{ID: "rev-1", EntryID: "e-1", PreviousStatus: models.EntryStatusAbsent, NewStatus: models.EntryStatusPresent, Reason: "status updated", Actor: "teacher-1", CreatedAt: now},
				},
			},
		},
		UpdatedAt: now,
	}
	session.Recompute()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE attendance_sessions SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM session_entries WHERE session_id = \$1`).
		WithArgs("at-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO session_entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO entry_revisions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), session))
	require.Equal(t, 2, session.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySaveClassStatistics(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	stats := &models.ClassAttendanceStatistics{ClassID: "10A", TotalSessions: 4, AverageAttendance: 82.5, ComputedAt: time.Now()}
	mock.ExpectExec(`INSERT INTO class_attendance_statistics`).
		WithArgs("10A", 4, 82.5, stats.ComputedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveClassStatistics(context.Background(), stats))
	require.NoError(t, mock.ExpectationsWereMet())
}
