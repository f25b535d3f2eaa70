package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/models"
)

func newTestStatisticsService(sessions *mockSessionRepo, assessments *mockAssessmentRepo) *StatisticsService {
	return NewStatisticsService(sessions, assessments, nil, nil, zap.NewNop())
}

func seedAssessment(repo *mockAssessmentRepo, id, studentID string, present, passed bool, percentage, totalObtained float64) {
	repo.assessments[id] = &models.Assessment{
		ID:            id,
		ExamID:        "exam-1",
		StudentID:     studentID,
		IsPresent:     present,
		Passed:        passed,
		Percentage:    percentage,
		TotalObtained: totalObtained,
		Status:        models.AssessmentStatusSubmitted,
		Version:       1,
	}
}

func TestExamStatisticsCoversPresentStudentsOnly(t *testing.T) {
	assessments := newMockAssessmentRepo()
	seedAssessment(assessments, "a1", "s1", true, true, 80, 160)
	seedAssessment(assessments, "a2", "s2", true, false, 30, 60)
	seedAssessment(assessments, "a3", "s3", false, false, 0, 0)

	svc := newTestStatisticsService(newMockSessionRepo(), assessments)
	stats, err := svc.ExamStatistics(context.Background(), "exam-1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 2, stats.PresentCount)
	assert.Equal(t, 1, stats.AbsentCount)
	assert.Equal(t, 1, stats.PassedCount)
	assert.Equal(t, 33.33, stats.PassPercentage)
	assert.Equal(t, float64(55), stats.AveragePercentage)
	// Extremes never include the absent student's zero totals.
	assert.Equal(t, float64(160), stats.HighestObtained)
	assert.Equal(t, float64(60), stats.LowestObtained)
}

func TestExamStatisticsEmptyExam(t *testing.T) {
	svc := newTestStatisticsService(newMockSessionRepo(), newMockAssessmentRepo())

	stats, err := svc.ExamStatistics(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalStudents)
	assert.Equal(t, float64(0), stats.PassPercentage)
	assert.Equal(t, float64(0), stats.AveragePercentage)
}

func TestAssignRanksOrdersByPercentageThenStudentID(t *testing.T) {
	assessments := newMockAssessmentRepo()
	seedAssessment(assessments, "a1", "s1", true, true, 75, 150)
	seedAssessment(assessments, "a2", "s2", true, true, 90, 180)
	seedAssessment(assessments, "a3", "s3", true, true, 75, 150)
	seedAssessment(assessments, "a4", "s4", false, false, 0, 0)

	svc := newTestStatisticsService(newMockSessionRepo(), assessments)
	ranks, err := svc.AssignRanks(context.Background(), "exam-1")
	require.NoError(t, err)

	assert.Equal(t, 1, ranks["s2"])
	// Tied percentages break on student identifier ascending.
	assert.Equal(t, 2, ranks["s1"])
	assert.Equal(t, 3, ranks["s3"])
	_, ranked := ranks["s4"]
	assert.False(t, ranked)

	require.NotNil(t, assessments.assessments["a2"].Rank)
	assert.Equal(t, 1, *assessments.assessments["a2"].Rank)
	assert.Nil(t, assessments.assessments["a4"].Rank)
}

func TestAssignRanksNoPresentStudents(t *testing.T) {
	assessments := newMockAssessmentRepo()
	seedAssessment(assessments, "a1", "s1", false, false, 0, 0)

	svc := newTestStatisticsService(newMockSessionRepo(), assessments)
	ranks, err := svc.AssignRanks(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Empty(t, ranks)
	assert.Nil(t, assessments.ranks)
}

func TestClassAttendanceSkipsNonCompletedSessions(t *testing.T) {
	sessions := newMockSessionRepo()
	sessions.sessions["at-1"] = &models.AttendanceSession{
		ID: "at-1", ClassID: "10A", Date: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Status:     models.SessionStatusCompleted,
		Statistics: models.SessionStatistics{Total: 2, Present: 2, AttendancePercentage: 100},
	}
	sessions.sessions["at-2"] = &models.AttendanceSession{
		ID: "at-2", ClassID: "10A", Date: time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC),
		Status:     models.SessionStatusCompleted,
		Statistics: models.SessionStatistics{Total: 2, Present: 1, Absent: 1, AttendancePercentage: 50},
	}
	sessions.sessions["at-3"] = &models.AttendanceSession{
		ID: "at-3", ClassID: "10A", Date: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		Status: models.SessionStatusHoliday,
	}

	svc := newTestStatisticsService(sessions, newMockAssessmentRepo())
	stats, err := svc.ClassAttendance(context.Background(), "10A")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, float64(75), stats.AverageAttendance)
}

func TestStudentAttendanceSummary(t *testing.T) {
	sessions := newMockSessionRepo()
	sessions.sessions["at-1"] = &models.AttendanceSession{
		ID: "at-1", ClassID: "10A", Status: models.SessionStatusCompleted,
		Entries: []models.SessionEntry{{StudentID: "s1", Status: models.EntryStatusPresent}},
	}
	sessions.sessions["at-2"] = &models.AttendanceSession{
		ID: "at-2", ClassID: "10A", Status: models.SessionStatusCompleted,
		Entries: []models.SessionEntry{{StudentID: "s1", Status: models.EntryStatusLate}},
	}

	svc := newTestStatisticsService(sessions, newMockAssessmentRepo())
	summary, err := svc.StudentAttendance(context.Background(), "10A", "s1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Late)
}
