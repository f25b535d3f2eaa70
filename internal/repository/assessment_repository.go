package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/sams-api/internal/models"
)

// AssessmentRepository persists assessment aggregates. Subject marks and
// their division scores are child rows rewritten with the root in one
// transaction.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = `id, exam_id, student_id, is_present, status,
total_obtained, total_maximum, percentage, grade, passed, rank,
entered_by, verified_by, verified_at, published_by, published_at, version,
created_at, updated_at`

// FindByID loads a full assessment including subject and division marks.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1`, assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	if err := r.loadMarks(ctx, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// FindByExamAndStudent loads the one assessment for (exam, student).
func (r *AssessmentRepository) FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE exam_id = $1 AND student_id = $2`, assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, examID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find assessment by exam and student: %w", err)
	}
	if err := r.loadMarks(ctx, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// ListByExam returns all of an examination's assessments with their
// subject marks, ordered by student for stable output.
func (r *AssessmentRepository) ListByExam(ctx context.Context, examID string) ([]models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE exam_id = $1 ORDER BY student_id ASC`, assessmentColumns)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, examID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	for i := range assessments {
		if err := r.loadMarks(ctx, &assessments[i]); err != nil {
			return nil, err
		}
	}
	return assessments, nil
}

// Create inserts the assessment aggregate in one transaction.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assessment: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO assessments (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`, assessmentColumns)
	if _, err := tx.ExecContext(ctx, query,
		assessment.ID, assessment.ExamID, assessment.StudentID, assessment.IsPresent, assessment.Status,
		assessment.TotalObtained, assessment.TotalMaximum, assessment.Percentage, assessment.Grade, assessment.Passed, assessment.Rank,
		assessment.EnteredBy, assessment.VerifiedBy, assessment.VerifiedAt, assessment.PublishedBy, assessment.PublishedAt, assessment.Version,
		assessment.CreatedAt, assessment.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	if err := r.saveMarks(ctx, tx, assessment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create assessment: %w", err)
	}
	committed = true
	return nil
}

// Update rewrites the assessment aggregate under a version predicate.
// sql.ErrNoRows means the stored version moved on and the write is stale.
func (r *AssessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update assessment: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := `UPDATE assessments SET
is_present = $1, status = $2,
total_obtained = $3, total_maximum = $4, percentage = $5, grade = $6, passed = $7, rank = $8,
entered_by = $9, verified_by = $10, verified_at = $11, published_by = $12, published_at = $13,
version = version + 1, updated_at = $14
WHERE id = $15 AND version = $16`
	result, err := tx.ExecContext(ctx, query,
		assessment.IsPresent, assessment.Status,
		assessment.TotalObtained, assessment.TotalMaximum, assessment.Percentage, assessment.Grade, assessment.Passed, assessment.Rank,
		assessment.EnteredBy, assessment.VerifiedBy, assessment.VerifiedAt, assessment.PublishedBy, assessment.PublishedAt,
		assessment.UpdatedAt, assessment.ID, assessment.Version,
	)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assessment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	assessment.Version++

	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_marks WHERE assessment_id = $1`, assessment.ID); err != nil {
		return fmt.Errorf("clear subject marks: %w", err)
	}
	if err := r.saveMarks(ctx, tx, assessment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update assessment: %w", err)
	}
	committed = true
	return nil
}

// UpdateRanks stores ordinal ranks for an examination, clearing any ranks
// held by students no longer ranked.
func (r *AssessmentRepository) UpdateRanks(ctx context.Context, examID string, ranks map[string]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update ranks: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE assessments SET rank = NULL WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("clear ranks: %w", err)
	}
	query := `UPDATE assessments SET rank = $1 WHERE exam_id = $2 AND student_id = $3`
	for studentID, rank := range ranks {
		if _, err := tx.ExecContext(ctx, query, rank, examID, studentID); err != nil {
			return fmt.Errorf("set rank: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update ranks: %w", err)
	}
	committed = true
	return nil
}

func (r *AssessmentRepository) loadMarks(ctx context.Context, assessment *models.Assessment) error {
	query := `SELECT id, assessment_id, subject_id, obtained, maximum, passing_marks, use_divisions, percentage, grade, passed, position
FROM subject_marks WHERE assessment_id = $1 ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &assessment.SubjectMarks, query, assessment.ID); err != nil {
		return fmt.Errorf("load subject marks: %w", err)
	}
	if len(assessment.SubjectMarks) == 0 {
		return nil
	}

	markIDs := make([]string, 0, len(assessment.SubjectMarks))
	index := make(map[string]*models.SubjectMark, len(assessment.SubjectMarks))
	for i := range assessment.SubjectMarks {
		markIDs = append(markIDs, assessment.SubjectMarks[i].ID)
		index[assessment.SubjectMarks[i].ID] = &assessment.SubjectMarks[i]
	}
	divQuery, args, err := sqlx.In(`SELECT id, subject_mark_id, name, obtained, maximum, position
FROM division_marks WHERE subject_mark_id IN (?) ORDER BY position ASC`, markIDs)
	if err != nil {
		return fmt.Errorf("build division query: %w", err)
	}
	var divisions []models.DivisionMark
	if err := r.db.SelectContext(ctx, &divisions, r.db.Rebind(divQuery), args...); err != nil {
		return fmt.Errorf("load division marks: %w", err)
	}
	for _, division := range divisions {
		if mark, ok := index[division.SubjectMarkID]; ok {
			mark.Divisions = append(mark.Divisions, division)
		}
	}
	return nil
}

func (r *AssessmentRepository) saveMarks(ctx context.Context, tx *sqlx.Tx, assessment *models.Assessment) error {
	markQuery := `INSERT INTO subject_marks (id, assessment_id, subject_id, obtained, maximum, passing_marks, use_divisions, percentage, grade, passed, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	divisionQuery := `INSERT INTO division_marks (id, subject_mark_id, name, obtained, maximum, position)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range assessment.SubjectMarks {
		mark := &assessment.SubjectMarks[i]
		if _, err := tx.ExecContext(ctx, markQuery,
			mark.ID, assessment.ID, mark.SubjectID, mark.Obtained, mark.Maximum, mark.PassingMarks,
			mark.UseDivisions, mark.Percentage, mark.Grade, mark.Passed, mark.Position,
		); err != nil {
			return fmt.Errorf("insert subject mark: %w", err)
		}
		for j := range mark.Divisions {
			division := &mark.Divisions[j]
			if _, err := tx.ExecContext(ctx, divisionQuery,
				division.ID, mark.ID, division.Name, division.Obtained, division.Maximum, division.Position,
			); err != nil {
				return fmt.Errorf("insert division mark: %w", err)
			}
		}
	}
	return nil
}
