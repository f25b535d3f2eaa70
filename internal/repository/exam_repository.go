package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/sams-api/internal/models"
)

// ExamRepository reads examination definitions and their subject setup.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID loads an examination together with its subjects and division
// definitions.
func (r *ExamRepository) FindByID(ctx context.Context, examID string) (*models.Examination, error) {
	var exam models.Examination
	query := `SELECT id, name, class_id, start_date, end_date FROM examinations WHERE id = $1`
	if err := r.db.GetContext(ctx, &exam, query, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find examination: %w", err)
	}

	subjectQuery := `SELECT id, exam_id, subject_id, name, maximum_marks, passing_marks, use_divisions
FROM exam_subjects WHERE exam_id = $1 ORDER BY subject_id ASC`
	if err := r.db.SelectContext(ctx, &exam.Subjects, subjectQuery, examID); err != nil {
		return nil, fmt.Errorf("load exam subjects: %w", err)
	}
	if len(exam.Subjects) == 0 {
		return &exam, nil
	}

	subjectIDs := make([]string, 0, len(exam.Subjects))
	index := make(map[string]*models.ExamSubject, len(exam.Subjects))
	for i := range exam.Subjects {
		subjectIDs = append(subjectIDs, exam.Subjects[i].ID)
		index[exam.Subjects[i].ID] = &exam.Subjects[i]
	}
	divQuery, args, err := sqlx.In(`SELECT id, exam_subject_id, name, maximum_marks, position
FROM exam_subject_divisions WHERE exam_subject_id IN (?) ORDER BY position ASC`, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("build exam division query: %w", err)
	}
	var divisions []models.ExamSubjectDivision
	if err := r.db.SelectContext(ctx, &divisions, r.db.Rebind(divQuery), args...); err != nil {
		return nil, fmt.Errorf("load exam subject divisions: %w", err)
	}
	for _, division := range divisions {
		if subject, ok := index[division.ExamSubjectID]; ok {
			subject.Divisions = append(subject.Divisions, division)
		}
	}
	return &exam, nil
}
