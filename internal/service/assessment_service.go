package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/grading"
	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
)

type assessmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Assessment, error)
	ListByExam(ctx context.Context, examID string) ([]models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment) error
}

type examReader interface {
	FindByID(ctx context.Context, examID string) (*models.Examination, error)
}

// AssessmentService owns the per-student marks record for an examination
// and its derivation pipeline: division resolution, per-subject grading,
// totals, overall grade and the AND-across-subjects pass rule.
type AssessmentService struct {
	assessments assessmentRepository
	exams       examReader
	scale       *grading.Scale
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	locks       keyedMutex
}

// NewAssessmentService constructs the assessment service.
func NewAssessmentService(assessments assessmentRepository, exams examReader, scale *grading.Scale, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if scale == nil {
		scale = grading.DefaultScale()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		assessments: assessments,
		exams:       exams,
		scale:       scale,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// DivisionMarkInput is one sub-component score.
type DivisionMarkInput struct {
	Name     string  `json:"name" validate:"required"`
	Obtained float64 `json:"obtained" validate:"gte=0"`
}

// SubjectMarkInput is one subject's marks payload.
type SubjectMarkInput struct {
	SubjectID string              `json:"subject_id" validate:"required"`
	Obtained  float64             `json:"obtained" validate:"gte=0"`
	Divisions []DivisionMarkInput `json:"divisions" validate:"omitempty,dive"`
}

// SetMarksRequest records a student's marks for an examination. Values
// are overwritten on re-entry, never appended.
type SetMarksRequest struct {
	ExamID       string             `json:"exam_id" validate:"required"`
	StudentID    string             `json:"student_id" validate:"required"`
	IsPresent    *bool              `json:"is_present"`
	SubjectMarks []SubjectMarkInput `json:"subject_marks" validate:"omitempty,dive"`
}

// SetMarks creates or overwrites the assessment for (exam, student) and
// runs the full recompute pipeline before persisting.
func (s *AssessmentService) SetMarks(ctx context.Context, req SetMarksRequest, actor string) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}
	isPresent := true
	if req.IsPresent != nil {
		isPresent = *req.IsPresent
	}
	if isPresent && len(req.SubjectMarks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject marks required for a present student")
	}

	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "examination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load examination")
	}

	unlock := s.locks.Lock("assessment:" + req.ExamID + "|" + req.StudentID)
	defer unlock()

	now := time.Now().UTC()
	assessment, err := s.assessments.FindByExamAndStudent(ctx, req.ExamID, req.StudentID)
	created := false
	switch {
	case err == sql.ErrNoRows:
		created = true
		assessment = &models.Assessment{
			ID:        uuid.NewString(),
			ExamID:    req.ExamID,
			StudentID: req.StudentID,
			Status:    models.AssessmentStatusDraft,
			Version:   1,
			CreatedAt: now,
		}
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	marks, err := s.buildSubjectMarks(exam, assessment.ID, req.SubjectMarks)
	if err != nil {
		return nil, err
	}
	assessment.SubjectMarks = marks
	assessment.IsPresent = isPresent
	assessment.EnteredBy = actor
	assessment.UpdatedAt = now

	start := time.Now()
	if err := s.recompute(assessment); err != nil {
		return nil, err
	}
	s.metrics.ObserveRecompute("assessment_marks", time.Since(start))

	if created {
		err = s.assessments.Create(ctx, assessment)
	} else {
		err = s.assessments.Update(ctx, assessment)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assessment was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assessment")
	}

	s.invalidateExamCache(ctx, req.ExamID)
	return assessment, nil
}

// MarkAbsent records an absent outcome. The assessment still exists so
// the absence is part of the examination record; existing marks are kept
// and totals recomputed from them.
func (s *AssessmentService) MarkAbsent(ctx context.Context, examID, studentID, actor string) (*models.Assessment, error) {
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}
	if _, err := s.exams.FindByID(ctx, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "examination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load examination")
	}

	unlock := s.locks.Lock("assessment:" + examID + "|" + studentID)
	defer unlock()

	now := time.Now().UTC()
	assessment, err := s.assessments.FindByExamAndStudent(ctx, examID, studentID)
	created := false
	switch {
	case err == sql.ErrNoRows:
		created = true
		assessment = &models.Assessment{
			ID:        uuid.NewString(),
			ExamID:    examID,
			StudentID: studentID,
			Status:    models.AssessmentStatusDraft,
			Version:   1,
			CreatedAt: now,
		}
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}

	assessment.IsPresent = false
	assessment.EnteredBy = actor
	assessment.UpdatedAt = now
	if err := s.recompute(assessment); err != nil {
		return nil, err
	}

	if created {
		err = s.assessments.Create(ctx, assessment)
	} else {
		err = s.assessments.Update(ctx, assessment)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assessment was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assessment")
	}

	s.invalidateExamCache(ctx, examID)
	return assessment, nil
}

// Submit advances the assessment to submitted.
func (s *AssessmentService) Submit(ctx context.Context, assessmentID, actor string) (*models.Assessment, error) {
	return s.transition(ctx, assessmentID, actor, models.AssessmentStatusSubmitted)
}

// Verify advances the assessment to verified and records the verifier.
func (s *AssessmentService) Verify(ctx context.Context, assessmentID, actor string) (*models.Assessment, error) {
	return s.transition(ctx, assessmentID, actor, models.AssessmentStatusVerified)
}

// Publish advances the assessment to published and records the publisher.
func (s *AssessmentService) Publish(ctx context.Context, assessmentID, actor string) (*models.Assessment, error) {
	return s.transition(ctx, assessmentID, actor, models.AssessmentStatusPublished)
}

// Get returns one assessment by identifier.
func (s *AssessmentService) Get(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, assessmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	return assessment, nil
}

// transition enforces the monotonic draft→submitted→verified→published
// progression: a status may only move to a strictly higher stage.
func (s *AssessmentService) transition(ctx context.Context, assessmentID, actor string, target models.AssessmentStatus) (*models.Assessment, error) {
	if actor == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actor required")
	}

	unlock := s.locks.Lock("assessment-id:" + assessmentID)
	defer unlock()

	assessment, err := s.assessments.FindByID(ctx, assessmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if target.Rank() <= assessment.Status.Rank() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move assessment from %s to %s", assessment.Status, target))
	}

	now := time.Now().UTC()
	assessment.Status = target
	assessment.UpdatedAt = now
	switch target {
	case models.AssessmentStatusVerified:
		assessment.VerifiedBy = &actor
		assessment.VerifiedAt = &now
	case models.AssessmentStatusPublished:
		assessment.PublishedBy = &actor
		assessment.PublishedAt = &now
	}

	if err := s.assessments.Update(ctx, assessment); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assessment was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assessment")
	}

	s.invalidateExamCache(ctx, assessment.ExamID)
	return assessment, nil
}

func (s *AssessmentService) buildSubjectMarks(exam *models.Examination, assessmentID string, inputs []SubjectMarkInput) ([]models.SubjectMark, error) {
	marks := make([]models.SubjectMark, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, input := range inputs {
		if seen[input.SubjectID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate subject %s in payload", input.SubjectID))
		}
		seen[input.SubjectID] = true

		def := exam.SubjectDefinition(input.SubjectID)
		if def == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not part of the examination", input.SubjectID))
		}

		mark := models.SubjectMark{
			ID:           uuid.NewString(),
			AssessmentID: assessmentID,
			SubjectID:    input.SubjectID,
			Obtained:     input.Obtained,
			Maximum:      def.MaximumMarks,
			PassingMarks: s.scale.PassingMarks(def.PassingMarks, def.MaximumMarks),
			UseDivisions: def.UseDivisions,
			Position:     i,
		}
		for j, division := range input.Divisions {
			dm := models.DivisionMark{
				ID:            uuid.NewString(),
				SubjectMarkID: mark.ID,
				Name:          division.Name,
				Obtained:      division.Obtained,
				Position:      j,
			}
			for _, declared := range def.Divisions {
				if declared.Name == division.Name {
					dm.Maximum = declared.MaximumMarks
					break
				}
			}
			mark.Divisions = append(mark.Divisions, dm)
		}
		marks = append(marks, mark)
	}
	return marks, nil
}

// recompute runs the full derivation pipeline: divisions first, then
// per-subject grading, then assessment totals. Derived fields are never
// trusted from the caller.
func (s *AssessmentService) recompute(assessment *models.Assessment) error {
	totalObtained := 0.0
	totalMaximum := 0.0
	allPassed := len(assessment.SubjectMarks) > 0
	for i := range assessment.SubjectMarks {
		mark := &assessment.SubjectMarks[i]
		mark.Obtained = grading.ResolveObtained(mark)

		percentage, err := s.scale.Percentage(mark.Obtained, mark.Maximum)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s declares no positive maximum marks", mark.SubjectID))
		}
		mark.Percentage = percentage
		mark.Grade = s.scale.Grade(percentage)
		mark.Passed = s.scale.Passed(mark.Obtained, mark.PassingMarks)

		totalObtained += mark.Obtained
		totalMaximum += mark.Maximum
		if !mark.Passed {
			allPassed = false
		}
	}

	assessment.TotalObtained = totalObtained
	assessment.TotalMaximum = totalMaximum
	if totalMaximum > 0 {
		percentage, err := s.scale.Percentage(totalObtained, totalMaximum)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "overall percentage underivable")
		}
		assessment.Percentage = percentage
	} else {
		assessment.Percentage = 0
	}
	assessment.Grade = s.scale.Grade(assessment.Percentage)
	// One failing subject fails the whole assessment; an empty marks list
	// never passes.
	assessment.Passed = allPassed
	return nil
}

func (s *AssessmentService) invalidateExamCache(ctx context.Context, examID string) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "stats:exam:"+examID+"*")
	}
}
