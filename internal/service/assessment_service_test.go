package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
)

type mockAssessmentRepo struct {
	assessments map[string]*models.Assessment
	ranks       map[string]int
	failUpdate  bool
}

func newMockAssessmentRepo() *mockAssessmentRepo {
	return &mockAssessmentRepo{assessments: make(map[string]*models.Assessment)}
}

func (m *mockAssessmentRepo) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if a, ok := m.assessments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssessmentRepo) FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Assessment, error) {
	for _, a := range m.assessments {
		if a.ExamID == examID && a.StudentID == studentID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssessmentRepo) ListByExam(ctx context.Context, examID string) ([]models.Assessment, error) {
	var result []models.Assessment
	for _, a := range m.assessments {
		if a.ExamID == examID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssessmentRepo) Create(ctx context.Context, assessment *models.Assessment) error {
	copied := *assessment
	m.assessments[assessment.ID] = &copied
	return nil
}

func (m *mockAssessmentRepo) Update(ctx context.Context, assessment *models.Assessment) error {
	if m.failUpdate {
		return sql.ErrNoRows
	}
	stored, ok := m.assessments[assessment.ID]
	if !ok || stored.Version != assessment.Version {
		return sql.ErrNoRows
	}
	assessment.Version++
	copied := *assessment
	m.assessments[assessment.ID] = &copied
	return nil
}

func (m *mockAssessmentRepo) UpdateRanks(ctx context.Context, examID string, ranks map[string]int) error {
	m.ranks = ranks
	for _, a := range m.assessments {
		if a.ExamID != examID {
			continue
		}
		if rank, ok := ranks[a.StudentID]; ok {
			r := rank
			a.Rank = &r
		}
	}
	return nil
}

type mockExamReader struct {
	exams map[string]*models.Examination
}

func (m *mockExamReader) FindByID(ctx context.Context, examID string) (*models.Examination, error) {
	if e, ok := m.exams[examID]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func floatPtr(v float64) *float64 { return &v }

func termExam() *mockExamReader {
	return &mockExamReader{exams: map[string]*models.Examination{
		"exam-1": {
			ID:      "exam-1",
			Name:    "First Terminal",
			ClassID: "10A",
			Subjects: []models.ExamSubject{
				{ID: "es-1", ExamID: "exam-1", SubjectID: "math", Name: "Mathematics", MaximumMarks: 100},
				{ID: "es-2", ExamID: "exam-1", SubjectID: "eng", Name: "English", MaximumMarks: 50, PassingMarks: floatPtr(18)},
				{
					ID: "es-3", ExamID: "exam-1", SubjectID: "sci", Name: "Science",
					MaximumMarks: 100, UseDivisions: true,
					Divisions: []models.ExamSubjectDivision{
						{ID: "d-1", Name: "Theory", MaximumMarks: 60, Position: 0},
						{ID: "d-2", Name: "Practical", MaximumMarks: 40, Position: 1},
					},
				},
			},
		},
	}}
}

func newTestAssessmentService(repo *mockAssessmentRepo) *AssessmentService {
	return NewAssessmentService(repo, termExam(), nil, nil, nil, nil, zap.NewNop())
}

func TestSetMarksDerivesGradesAndTotals(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	assessment, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:    "exam-1",
		StudentID: "s1",
		SubjectMarks: []SubjectMarkInput{
			{SubjectID: "math", Obtained: 92},
			{SubjectID: "eng", Obtained: 35},
		},
	}, "teacher-1")
	require.NoError(t, err)

	math := assessment.SubjectMarks[0]
	assert.Equal(t, float64(92), math.Percentage)
	assert.Equal(t, "A+", math.Grade)
	assert.True(t, math.Passed)
	// No declared passing marks, so the 40% default applies.
	assert.Equal(t, float64(40), math.PassingMarks)

	eng := assessment.SubjectMarks[1]
	assert.Equal(t, float64(70), eng.Percentage)
	assert.Equal(t, "B+", eng.Grade)
	assert.Equal(t, float64(18), eng.PassingMarks)
	assert.True(t, eng.Passed)

	assert.Equal(t, float64(127), assessment.TotalObtained)
	assert.Equal(t, float64(150), assessment.TotalMaximum)
	assert.Equal(t, 84.67, assessment.Percentage)
	assert.Equal(t, "A", assessment.Grade)
	assert.True(t, assessment.Passed)
	assert.Equal(t, models.AssessmentStatusDraft, assessment.Status)
}

func TestSetMarksOneFailingSubjectFailsAssessment(t *testing.T) {
	svc := newTestAssessmentService(newMockAssessmentRepo())

	assessment, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:    "exam-1",
		StudentID: "s1",
		SubjectMarks: []SubjectMarkInput{
			{SubjectID: "math", Obtained: 95},
			{SubjectID: "eng", Obtained: 10},
		},
	}, "teacher-1")
	require.NoError(t, err)

	assert.True(t, assessment.SubjectMarks[0].Passed)
	assert.False(t, assessment.SubjectMarks[1].Passed)
	assert.False(t, assessment.Passed)
}

func TestSetMarksDivisionsSumToObtained(t *testing.T) {
	svc := newTestAssessmentService(newMockAssessmentRepo())

	divided, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:    "exam-1",
		StudentID: "s1",
		SubjectMarks: []SubjectMarkInput{
			{SubjectID: "sci", Divisions: []DivisionMarkInput{
				{Name: "Theory", Obtained: 20},
				{Name: "Practical", Obtained: 15},
			}},
		},
	}, "teacher-1")
	require.NoError(t, err)

	flat, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s2",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 35}},
	}, "teacher-1")
	require.NoError(t, err)

	mark := divided.SubjectMarks[0]
	assert.Equal(t, float64(35), mark.Obtained)
	assert.Equal(t, float64(35), mark.Percentage)
	// A divided subject and a flat one with equal marks grade identically.
	assert.Equal(t, flat.SubjectMarks[0].Grade, mark.Grade)
	assert.Equal(t, "D", mark.Grade)
	assert.False(t, mark.Passed)
	assert.False(t, divided.Passed)
}

func TestSetMarksOverwritesOnReentry(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	first, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 40}},
	}, "teacher-1")
	require.NoError(t, err)

	second, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 85}},
	}, "teacher-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.assessments, 1)
	assert.Equal(t, float64(85), second.TotalObtained)
	assert.Equal(t, "teacher-2", second.EnteredBy)
}

func TestSetMarksRejectsUnknownSubject(t *testing.T) {
	svc := newTestAssessmentService(newMockAssessmentRepo())

	_, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "music", Obtained: 10}},
	}, "teacher-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSetMarksRejectsDuplicateSubject(t *testing.T) {
	svc := newTestAssessmentService(newMockAssessmentRepo())

	_, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:    "exam-1",
		StudentID: "s1",
		SubjectMarks: []SubjectMarkInput{
			{SubjectID: "math", Obtained: 10},
			{SubjectID: "math", Obtained: 20},
		},
	}, "teacher-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestMarkAbsentKeepsRecord(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	assessment, err := svc.MarkAbsent(context.Background(), "exam-1", "s1", "teacher-1")
	require.NoError(t, err)

	assert.False(t, assessment.IsPresent)
	assert.False(t, assessment.Passed)
	assert.Len(t, repo.assessments, 1)
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	assessment, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 70}},
	}, "teacher-1")
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), assessment.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusSubmitted, submitted.Status)

	// Draft is behind submitted; moving back is rejected.
	_, err = svc.Submit(context.Background(), assessment.ID, "teacher-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	verified, err := svc.Verify(context.Background(), assessment.ID, "head-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, "head-1", *verified.VerifiedBy)
	assert.NotNil(t, verified.VerifiedAt)

	published, err := svc.Publish(context.Background(), assessment.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusPublished, published.Status)
	require.NotNil(t, published.PublishedBy)
	assert.Equal(t, "admin-1", *published.PublishedBy)

	_, err = svc.Verify(context.Background(), assessment.ID, "head-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSkipToPublishedIsAllowed(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	assessment, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 70}},
	}, "teacher-1")
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), assessment.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusPublished, published.Status)
}

func TestSetMarksConcurrentModification(t *testing.T) {
	repo := newMockAssessmentRepo()
	svc := newTestAssessmentService(repo)

	_, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 40}},
	}, "teacher-1")
	require.NoError(t, err)

	repo.failUpdate = true
	_, err = svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:       "exam-1",
		StudentID:    "s1",
		SubjectMarks: []SubjectMarkInput{{SubjectID: "math", Obtained: 50}},
	}, "teacher-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSetMarksRequiresMarksForPresentStudent(t *testing.T) {
	svc := newTestAssessmentService(newMockAssessmentRepo())

	_, err := svc.SetMarks(context.Background(), SetMarksRequest{
		ExamID:    "exam-1",
		StudentID: "s1",
	}, "teacher-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
