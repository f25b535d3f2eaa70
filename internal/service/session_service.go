package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/grading"
	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.AttendanceSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, int, error)
	ListByClass(ctx context.Context, classID string, from, to *time.Time) ([]models.AttendanceSession, error)
	Create(ctx context.Context, session *models.AttendanceSession) error
	Update(ctx context.Context, session *models.AttendanceSession) error
	SaveClassStatistics(ctx context.Context, stats *models.ClassAttendanceStatistics) error
}

type rosterReader interface {
	ClassExists(ctx context.Context, classID string) (bool, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
}

// SessionService owns the session upsert workflow and all per-entry
// marking operations. Every mutate-then-write cycle for one class+date
// key runs under that key's mutex; the repository additionally rejects
// stale writes with a version check.
type SessionService struct {
	sessions       sessionRepository
	roster         rosterReader
	cache          *CacheService
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
	locks          keyedMutex
	revisionReason string
	statsEnqueue   func(classID string) error
}

// NewSessionService constructs the session service.
func NewSessionService(sessions sessionRepository, roster rosterReader, cache *CacheService, metrics *MetricsService, defaultRevisionReason string, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultRevisionReason == "" {
		defaultRevisionReason = "status updated"
	}
	svc := &SessionService{
		sessions:       sessions,
		roster:         roster,
		cache:          cache,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
		revisionReason: defaultRevisionReason,
	}
	svc.validator.RegisterValidation("entry_status", func(fl validator.FieldLevel) bool {
		return models.EntryStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("attendance_type", func(fl validator.FieldLevel) bool {
		return models.AttendanceType(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// EntryInput is one student's marking payload.
type EntryInput struct {
	StudentID     string     `json:"student_id" validate:"required"`
	Status        string     `json:"status" validate:"required,entry_status"`
	ArrivalTime   *time.Time `json:"arrival_time"`
	DepartureTime *time.Time `json:"departure_time"`
	AbsenceReason *string    `json:"absence_reason"`
	Reason        *string    `json:"reason"`
}

// UpsertSessionRequest creates or updates the session for a class+date.
type UpsertSessionRequest struct {
	ClassID        string       `json:"class_id" validate:"required"`
	Date           string       `json:"date" validate:"required"`
	AttendanceType string       `json:"attendance_type" validate:"required,attendance_type"`
	StartTime      *time.Time   `json:"start_time"`
	EndTime        *time.Time   `json:"end_time"`
	Entries        []EntryInput `json:"entries" validate:"omitempty,dive"`
	Notes          *string      `json:"notes"`
}

// MarkEntryRequest re-marks a single student within an existing session.
type MarkEntryRequest struct {
	Status        string     `json:"status" validate:"required,entry_status"`
	ArrivalTime   *time.Time `json:"arrival_time"`
	DepartureTime *time.Time `json:"departure_time"`
	AbsenceReason *string    `json:"absence_reason"`
	Reason        *string    `json:"reason"`
}

// BulkMarkRequest applies markEntry semantics to many students at once.
type BulkMarkRequest struct {
	Entries []EntryInput `json:"entries" validate:"required,min=1,dive"`
}

// BulkMarkResult reports which students were applied and which were
// skipped because they hold no entry in the session.
type BulkMarkResult struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
}

// Upsert records attendance for a class on a date. There is at most one
// non-deleted session per class+date; repeated calls with identical input
// are idempotent. Created sessions are finalized immediately.
func (s *SessionService) Upsert(ctx context.Context, req UpsertSessionRequest, actor string) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	attendanceType := models.AttendanceType(strings.ToUpper(req.AttendanceType))
	if attendanceType == models.AttendanceTypeNormal && len(req.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance entries required for a normal session")
	}

	exists, err := s.roster.ClassExists(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up class")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	unlock := s.locks.Lock(sessionKey(req.ClassID, date))
	defer unlock()

	start := time.Now()
	defer func() { s.metrics.ObserveRecompute("session_upsert", time.Since(start)) }()

	roster, err := s.roster.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	session, err := s.sessions.FindByClassAndDate(ctx, req.ClassID, date)
	switch {
	case err == sql.ErrNoRows:
		session, err = s.createSession(ctx, req, attendanceType, date, roster, actor)
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	default:
		session, err = s.updateSession(ctx, session, req, attendanceType, roster, actor)
	}
	if err != nil {
		return nil, err
	}

	s.refreshClassStatistics(ctx, req.ClassID)
	return session, nil
}

func (s *SessionService) createSession(ctx context.Context, req UpsertSessionRequest, attendanceType models.AttendanceType, date time.Time, roster []models.Enrollment, actor string) (*models.AttendanceSession, error) {
	now := time.Now().UTC()
	session := &models.AttendanceSession{
		ID:        newSessionID(req.ClassID, date),
		ClassID:   req.ClassID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Type:      attendanceType,
		Status:    attendanceType.SessionStatus(),
		Notes:     req.Notes,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if attendanceType == models.AttendanceTypeNormal {
		supplied := indexEntries(req.Entries)
		for _, enrollment := range roster {
			entry := models.SessionEntry{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				StudentID: enrollment.StudentID,
				Status:    models.EntryStatusAbsent,
				Enrolled:  true,
				MarkedBy:  actor,
				MarkedAt:  now,
			}
			if input, ok := supplied[enrollment.StudentID]; ok {
				entry.Status = models.EntryStatus(strings.ToUpper(input.Status))
				entry.ArrivalTime = input.ArrivalTime
				entry.DepartureTime = input.DepartureTime
				entry.AbsenceReason = input.AbsenceReason
			}
			session.Entries = append(session.Entries, entry)
		}
	}

	// Class sessions have no draft phase: marking one is final.
	session.Finalized = true
	session.FinalizedAt = &now
	session.FinalizedBy = &actor

	session.Recompute()
	if err := session.CheckInvariants(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "session statistics inconsistent")
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

func (s *SessionService) updateSession(ctx context.Context, session *models.AttendanceSession, req UpsertSessionRequest, attendanceType models.AttendanceType, roster []models.Enrollment, actor string) (*models.AttendanceSession, error) {
	now := time.Now().UTC()
	session.Type = attendanceType
	session.Status = attendanceType.SessionStatus()
	if req.Notes != nil {
		session.Notes = req.Notes
	}
	if req.StartTime != nil {
		session.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = req.EndTime
	}

	if attendanceType != models.AttendanceTypeNormal {
		session.Entries = nil
	} else {
		supplied := indexEntries(req.Entries)
		enrolled := make(map[string]bool, len(roster))
		rebuilt := make([]models.SessionEntry, 0, len(roster))
		for _, enrollment := range roster {
			enrolled[enrollment.StudentID] = true
			existing := session.Entry(enrollment.StudentID)
			if existing == nil {
				entry := models.SessionEntry{
					ID:        uuid.NewString(),
					SessionID: session.ID,
					StudentID: enrollment.StudentID,
					Status:    models.EntryStatusAbsent,
					Enrolled:  true,
					MarkedBy:  actor,
					MarkedAt:  now,
				}
				if input, ok := supplied[enrollment.StudentID]; ok {
					entry.Status = models.EntryStatus(strings.ToUpper(input.Status))
					entry.ArrivalTime = input.ArrivalTime
					entry.DepartureTime = input.DepartureTime
					entry.AbsenceReason = input.AbsenceReason
				}
				rebuilt = append(rebuilt, entry)
				continue
			}
			// Preserve the entry identity and revision history across
			// re-marking; the caller's status wins, then the prior one.
			entry := *existing
			entry.Enrolled = true
			if input, ok := supplied[enrollment.StudentID]; ok {
				s.applyMark(&entry, input, actor, now)
			}
			rebuilt = append(rebuilt, entry)
		}
		// Students no longer on the roster keep their historical entries,
		// flagged so rollups can distinguish them.
		for i := range session.Entries {
			if !enrolled[session.Entries[i].StudentID] {
				retained := session.Entries[i]
				retained.Enrolled = false
				rebuilt = append(rebuilt, retained)
			}
		}
		session.Entries = rebuilt
	}

	session.UpdatedAt = now
	session.Recompute()
	if err := session.CheckInvariants(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "session statistics inconsistent")
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// MarkEntry re-marks one student's attendance within an existing session.
func (s *SessionService) MarkEntry(ctx context.Context, sessionID, studentID string, req MarkEntryRequest, actor string) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}

	session, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry := session.Entry(studentID)
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s has no entry in this session", studentID))
	}

	now := time.Now().UTC()
	start := time.Now()
	s.applyMark(entry, EntryInput{
		StudentID:     studentID,
		Status:        req.Status,
		ArrivalTime:   req.ArrivalTime,
		DepartureTime: req.DepartureTime,
		AbsenceReason: req.AbsenceReason,
		Reason:        req.Reason,
	}, actor, now)

	session.UpdatedAt = now
	session.Recompute()
	s.metrics.ObserveRecompute("session_mark", time.Since(start))
	if err := session.CheckInvariants(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "session statistics inconsistent")
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	s.refreshClassStatistics(ctx, session.ClassID)
	return session, nil
}

// MarkBulk applies markEntry semantics to every payload entry that matches
// an existing student entry. Entries for unknown students are skipped, not
// rejected: the caller-supplied roster may be stale relative to the
// authoritative enrollment list.
func (s *SessionService) MarkBulk(ctx context.Context, sessionID string, req BulkMarkRequest, actor string) (*BulkMarkResult, *models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}

	session, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	result := &BulkMarkResult{}
	for _, input := range req.Entries {
		entry := session.Entry(input.StudentID)
		if entry == nil {
			result.Skipped = append(result.Skipped, input.StudentID)
			continue
		}
		s.applyMark(entry, input, actor, now)
		result.Applied = append(result.Applied, input.StudentID)
	}

	session.UpdatedAt = now
	session.Recompute()
	if err := session.CheckInvariants(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "session statistics inconsistent")
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	s.refreshClassStatistics(ctx, session.ClassID)
	return result, session, nil
}

// Finalize closes marking for the session and forces it to completed.
// There is no un-finalize; repeated calls are no-ops.
func (s *SessionService) Finalize(ctx context.Context, sessionID, actor string) (*models.AttendanceSession, error) {
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}

	session, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if session.Finalized && session.Status == models.SessionStatusCompleted {
		return session, nil
	}

	now := time.Now().UTC()
	session.Finalized = true
	session.FinalizedAt = &now
	session.FinalizedBy = &actor
	session.Status = models.SessionStatusCompleted
	session.UpdatedAt = now

	if err := s.sessions.Update(ctx, session); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize session")
	}

	s.refreshClassStatistics(ctx, session.ClassID)
	return session, nil
}

// Get returns a full session by identifier.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	return s.loadSession(ctx, sessionID)
}

// List returns sessions matching the filter, paginated.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.AttendanceSession, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return sessions, pagination, nil
}

// lockSession resolves a session identifier to its class+date mutex so
// by-id marking and by-key upserts serialize on the same lock. The first
// read only discovers the key; the session is reloaded under the lock
// before any mutation. ClassID and Date never change after creation.
func (s *SessionService) lockSession(ctx context.Context, sessionID string) (*models.AttendanceSession, func(), error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(sessionKey(session.ClassID, session.Date))
	session, err = s.loadSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return session, unlock, nil
}

func (s *SessionService) loadSession(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Deleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

// applyMark overwrites an entry's mutable fields and, when the status
// actually changes, appends a revision linking the old and new statuses.
func (s *SessionService) applyMark(entry *models.SessionEntry, input EntryInput, actor string, now time.Time) {
	newStatus := models.EntryStatus(strings.ToUpper(input.Status))
	if newStatus != entry.Status {
		reason := s.revisionReason
		if input.Reason != nil && *input.Reason != "" {
			reason = *input.Reason
		}
		entry.Revisions = append(entry.Revisions, models.EntryRevision{
			ID:             uuid.NewString(),
			EntryID:        entry.ID,
			PreviousStatus: entry.Status,
			NewStatus:      newStatus,
			Reason:         reason,
			Actor:          actor,
			CreatedAt:      now,
		})
	}
	entry.Status = newStatus
	entry.ArrivalTime = input.ArrivalTime
	entry.DepartureTime = input.DepartureTime
	entry.AbsenceReason = input.AbsenceReason
	entry.MarkedBy = actor
	entry.MarkedAt = now
}

// UseAsyncStatistics routes rollup refreshes through the provided enqueue
// function instead of recomputing inline after every session write.
func (s *SessionService) UseAsyncStatistics(enqueue func(classID string) error) {
	s.statsEnqueue = enqueue
}

// RefreshClassStatistics recomputes and stores the per-class rollup.
func (s *SessionService) RefreshClassStatistics(ctx context.Context, classID string) error {
	sessions, err := s.sessions.ListByClass(ctx, classID, nil, nil)
	if err != nil {
		return fmt.Errorf("list class sessions: %w", err)
	}
	stats := summarizeClassSessions(classID, sessions)
	if err := s.sessions.SaveClassStatistics(ctx, stats); err != nil {
		return fmt.Errorf("save class statistics: %w", err)
	}
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "stats:class:"+classID+"*")
	}
	return nil
}

// refreshClassStatistics triggers the per-class rollup refresh. It is
// best-effort: the rollup may lag a session write briefly and a failure
// here never fails the triggering operation.
func (s *SessionService) refreshClassStatistics(ctx context.Context, classID string) {
	if s.statsEnqueue != nil {
		if err := s.statsEnqueue(classID); err == nil {
			return
		}
		// Queue saturated or stopped; refresh inline instead.
	}
	if err := s.RefreshClassStatistics(ctx, classID); err != nil {
		s.logger.Warn("refresh class statistics", zap.String("class_id", classID), zap.Error(err))
	}
}

// summarizeClassSessions aggregates completed sessions only; holiday and
// teacher-leave days never count toward the denominator.
func summarizeClassSessions(classID string, sessions []models.AttendanceSession) *models.ClassAttendanceStatistics {
	stats := &models.ClassAttendanceStatistics{ClassID: classID, ComputedAt: time.Now().UTC()}
	sum := 0.0
	for i := range sessions {
		if sessions[i].Deleted || sessions[i].Status != models.SessionStatusCompleted {
			continue
		}
		stats.TotalSessions++
		sum += sessions[i].Statistics.AttendancePercentage
	}
	if stats.TotalSessions > 0 {
		stats.AverageAttendance = grading.Round2(sum / float64(stats.TotalSessions))
	}
	return stats
}

func indexEntries(entries []EntryInput) map[string]EntryInput {
	indexed := make(map[string]EntryInput, len(entries))
	for _, entry := range entries {
		indexed[entry.StudentID] = entry
	}
	return indexed
}

func sessionKey(classID string, date time.Time) string {
	return "session:" + classID + "|" + date.Format("2006-01-02")
}

func newSessionID(classID string, date time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ATT-%s-%s-%s", classID, date.Format("20060102"), suffix)
}
