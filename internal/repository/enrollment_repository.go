package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/sams-api/internal/models"
)

// EnrollmentRepository reads the class roster. Enrollment writes belong to
// the registration module; this service only consumes the roster.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ClassExists reports whether the class is known.
func (r *EnrollmentRepository) ClassExists(ctx context.Context, classID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, classID); err != nil {
		return false, fmt.Errorf("class exists: %w", err)
	}
	return exists, nil
}

// ListActiveByClass returns the active roster for a class, ordered by
// student for deterministic session entry construction.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	query := `SELECT id, student_id, class_id, joined_at, left_at, status
FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY student_id ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}
