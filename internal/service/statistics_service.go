package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/grading"
	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
)

type statisticsSessionReader interface {
	ListByClass(ctx context.Context, classID string, from, to *time.Time) ([]models.AttendanceSession, error)
	StudentSummary(ctx context.Context, classID, studentID string) (*models.StudentAttendanceSummary, error)
}

type statisticsAssessmentRepository interface {
	ListByExam(ctx context.Context, examID string) ([]models.Assessment, error)
	UpdateRanks(ctx context.Context, examID string, ranks map[string]int) error
}

// StatisticsService produces read-only rollups over attendance sessions
// and exam assessments. Rollups are derived on demand and cached; the
// write paths invalidate the relevant keys.
type StatisticsService struct {
	sessions    statisticsSessionReader
	assessments statisticsAssessmentRepository
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewStatisticsService constructs the statistics service.
func NewStatisticsService(sessions statisticsSessionReader, assessments statisticsAssessmentRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		sessions:    sessions,
		assessments: assessments,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// ExamStatistics derives the rollup across every assessment of one
// examination. Averages and extremes consider present students only.
func (s *StatisticsService) ExamStatistics(ctx context.Context, examID string) (*models.ExamStatistics, error) {
	cacheKey := "stats:exam:" + examID
	if s.cache.Enabled() {
		var cached models.ExamStatistics
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	assessments, err := s.assessments.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessments")
	}

	start := time.Now()
	stats := summarizeExam(examID, assessments)
	s.metrics.ObserveRecompute("exam_statistics", time.Since(start))

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, stats, 0)
	}
	return stats, nil
}

// ClassAttendance derives the class-level attendance rollup from its
// completed sessions.
func (s *StatisticsService) ClassAttendance(ctx context.Context, classID string) (*models.ClassAttendanceStatistics, error) {
	cacheKey := "stats:class:" + classID
	if s.cache.Enabled() {
		var cached models.ClassAttendanceStatistics
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	sessions, err := s.sessions.ListByClass(ctx, classID, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class sessions")
	}

	start := time.Now()
	stats := summarizeClassSessions(classID, sessions)
	s.metrics.ObserveRecompute("class_attendance", time.Since(start))

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, stats, 0)
	}
	return stats, nil
}

// StudentAttendance aggregates one student's entries across a class's
// sessions.
func (s *StatisticsService) StudentAttendance(ctx context.Context, classID, studentID string) (*models.StudentAttendanceSummary, error) {
	summary, err := s.sessions.StudentSummary(ctx, classID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no attendance record in this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student summary")
	}
	return summary, nil
}

// AssignRanks orders an examination's present assessments by overall
// percentage, highest first, and persists ordinal ranks. Ties break on
// student identifier ascending so reruns are deterministic. Absent
// students are left unranked.
func (s *StatisticsService) AssignRanks(ctx context.Context, examID string) (map[string]int, error) {
	assessments, err := s.assessments.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessments")
	}

	ranked := make([]models.Assessment, 0, len(assessments))
	for _, a := range assessments {
		if a.IsPresent {
			ranked = append(ranked, a)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Percentage != ranked[j].Percentage {
			return ranked[i].Percentage > ranked[j].Percentage
		}
		return ranked[i].StudentID < ranked[j].StudentID
	})

	ranks := make(map[string]int, len(ranked))
	for i, a := range ranked {
		ranks[a.StudentID] = i + 1
	}
	if len(ranks) == 0 {
		return ranks, nil
	}

	if err := s.assessments.UpdateRanks(ctx, examID, ranks); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist ranks")
	}
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "stats:exam:"+examID+"*")
	}
	return ranks, nil
}

func summarizeExam(examID string, assessments []models.Assessment) *models.ExamStatistics {
	stats := &models.ExamStatistics{ExamID: examID, TotalStudents: len(assessments)}
	sum := 0.0
	first := true
	for _, a := range assessments {
		if !a.IsPresent {
			stats.AbsentCount++
			continue
		}
		stats.PresentCount++
		if a.Passed {
			stats.PassedCount++
		}
		sum += a.Percentage
		if first || a.TotalObtained > stats.HighestObtained {
			stats.HighestObtained = a.TotalObtained
		}
		if first || a.TotalObtained < stats.LowestObtained {
			stats.LowestObtained = a.TotalObtained
		}
		first = false
	}
	// Pass rate spans the whole cohort; the average considers only the
	// students who sat the examination.
	if stats.TotalStudents > 0 {
		stats.PassPercentage = grading.Round2(100 * float64(stats.PassedCount) / float64(stats.TotalStudents))
	}
	if stats.PresentCount > 0 {
		stats.AveragePercentage = grading.Round2(sum / float64(stats.PresentCount))
	}
	return stats
}
