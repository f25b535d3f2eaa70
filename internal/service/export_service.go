package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/export"
	"github.com/vidyalaya/sams-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string    `json:"file"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExportService renders examination results and class attendance into CSV
// files and hands out signed download tokens. Files are pruned after a
// retention window; the token TTL is shorter than the file TTL.
type ExportService struct {
	assessments assessmentRepository
	exams       examReader
	sessions    sessionRepository
	storage     fileStorage
	csv         csvRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	fileTTL     time.Duration
}

// NewExportService constructs an ExportService.
func NewExportService(assessments assessmentRepository, exams examReader, sessions sessionRepository, store fileStorage, signer *storage.SignedURLSigner, fileTTL time.Duration, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fileTTL <= 0 {
		fileTTL = 7 * 24 * time.Hour
	}
	return &ExportService{
		assessments: assessments,
		exams:       exams,
		sessions:    sessions,
		storage:     store,
		csv:         export.NewCSVExporter(),
		signer:      signer,
		logger:      logger,
		fileTTL:     fileTTL,
	}
}

// ExamResults renders every assessment of an examination into one CSV row
// per student and returns a signed download token.
func (s *ExportService) ExamResults(ctx context.Context, examID string) (*ExportResult, error) {
	if _, err := s.exams.FindByID(ctx, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "examination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load examination")
	}
	assessments, err := s.assessments.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessments")
	}

	dataset := export.Dataset{
		Headers: []string{"student_id", "present", "status", "total_obtained", "total_maximum", "percentage", "grade", "passed", "rank"},
	}
	for _, a := range assessments {
		rank := ""
		if a.Rank != nil {
			rank = strconv.Itoa(*a.Rank)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_id":     a.StudentID,
			"present":        strconv.FormatBool(a.IsPresent),
			"status":         string(a.Status),
			"total_obtained": formatFloat(a.TotalObtained),
			"total_maximum":  formatFloat(a.TotalMaximum),
			"percentage":     formatFloat(a.Percentage),
			"grade":          a.Grade,
			"passed":         strconv.FormatBool(a.Passed),
			"rank":           rank,
		})
	}

	filename := fmt.Sprintf("exams/%s-%d.csv", examID, time.Now().UTC().Unix())
	return s.render(examID, filename, dataset)
}

// ClassAttendance renders one CSV row per session of a class.
func (s *ExportService) ClassAttendance(ctx context.Context, classID string) (*ExportResult, error) {
	sessions, err := s.sessions.ListByClass(ctx, classID, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class sessions")
	}
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no sessions to export")
	}

	dataset := export.Dataset{
		Headers: []string{"date", "type", "status", "total", "present", "absent", "late", "excused", "left_early", "attendance_percentage"},
	}
	for i := range sessions {
		session := &sessions[i]
		st := session.Statistics
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":                  session.Date.Format("2006-01-02"),
			"type":                  string(session.Type),
			"status":                string(session.Status),
			"total":                 strconv.Itoa(st.Total),
			"present":               strconv.Itoa(st.Present),
			"absent":                strconv.Itoa(st.Absent),
			"late":                  strconv.Itoa(st.Late),
			"excused":               strconv.Itoa(st.Excused),
			"left_early":            strconv.Itoa(st.LeftEarly),
			"attendance_percentage": formatFloat(st.AttendancePercentage),
		})
	}

	filename := fmt.Sprintf("classes/%s-%d.csv", classID, time.Now().UTC().Unix())
	return s.render(classID, filename, dataset)
}

// Download resolves a signed token into the stored file. Token validity is
// the only access control: the link itself is the credential.
func (s *ExportService) Download(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, nil
}

// Cleanup removes export files past the retention window.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.fileTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export files pruned", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) render(refID, filename string, dataset export.Dataset) (*ExportResult, error) {
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(refID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &ExportResult{RelativePath: relPath, Token: token, ExpiresAt: expiresAt}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
