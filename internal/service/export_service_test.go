package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/storage"
)

func newTestExportService(t *testing.T, assessments *mockAssessmentRepo, sessions *mockSessionRepo) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-export-secret", time.Hour)
	return NewExportService(assessments, termExam(), sessions, store, signer, time.Hour, zap.NewNop())
}

func TestExportExamResults(t *testing.T) {
	repo := newMockAssessmentRepo()
	rank := 1
	repo.assessments["as-1"] = &models.Assessment{
		ID: "as-1", ExamID: "exam-1", StudentID: "STU-001",
		IsPresent: true, Status: models.AssessmentStatusPublished,
		TotalObtained: 127, TotalMaximum: 150, Percentage: 84.67,
		Grade: "A", Passed: true, Rank: &rank,
	}
	repo.assessments["as-2"] = &models.Assessment{
		ID: "as-2", ExamID: "exam-1", StudentID: "STU-002",
		Status: models.AssessmentStatusDraft,
	}

	svc := newTestExportService(t, repo, newMockSessionRepo())
	result, err := svc.ExamResults(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	file, err := svc.Download(result.Token)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)

	content := string(payload)
	assert.True(t, strings.HasPrefix(content, "student_id,present,status"))
	assert.Contains(t, content, "STU-001,true,PUBLISHED,127,150,84.67,A,true,1")
	assert.Contains(t, content, "STU-002,false,DRAFT")
}

func TestExportExamResultsUnknownExam(t *testing.T) {
	svc := newTestExportService(t, newMockAssessmentRepo(), newMockSessionRepo())
	_, err := svc.ExamResults(context.Background(), "exam-missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportClassAttendance(t *testing.T) {
	sessions := newMockSessionRepo()
	sessions.sessions["s-1"] = &models.AttendanceSession{
		ID: "s-1", ClassID: "10A",
		Date:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Type:   models.AttendanceTypeNormal,
		Status: models.SessionStatusCompleted,
		Statistics: models.SessionStatistics{
			Total: 3, Present: 2, Late: 1, AttendancePercentage: 100,
		},
	}

	svc := newTestExportService(t, newMockAssessmentRepo(), sessions)
	result, err := svc.ClassAttendance(context.Background(), "10A")
	require.NoError(t, err)

	file, err := svc.Download(result.Token)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)

	content := string(payload)
	assert.Contains(t, content, "2026-04-10,NORMAL,COMPLETED,3,2,0,1,0,0,100")
}

func TestExportClassAttendanceNoSessions(t *testing.T) {
	svc := newTestExportService(t, newMockAssessmentRepo(), newMockSessionRepo())
	_, err := svc.ClassAttendance(context.Background(), "10Z")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	sessions := newMockSessionRepo()
	sessions.sessions["s-1"] = &models.AttendanceSession{
		ID: "s-1", ClassID: "10A",
		Date:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Type:   models.AttendanceTypeNormal,
		Status: models.SessionStatusCompleted,
	}

	svc := newTestExportService(t, newMockAssessmentRepo(), sessions)
	result, err := svc.ClassAttendance(context.Background(), "10A")
	require.NoError(t, err)

	parts := strings.Split(result.Token, ".")
	require.Len(t, parts, 4)
	parts[3] = strings.Repeat("0", len(parts[3]))
	_, err = svc.Download(strings.Join(parts, "."))
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
