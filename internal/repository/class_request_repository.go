package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

// ClassRequestRepository reads class teaching requests.
type ClassRequestRepository struct {
	db *sqlx.DB
}

// NewClassRequestRepository constructs the repository.
func NewClassRequestRepository(db *sqlx.DB) *ClassRequestRepository {
	return &ClassRequestRepository{db: db}
}

// ListApprovedByIDs returns the approved requests of the session among ids.
func (r *ClassRequestRepository) ListApprovedByIDs(ctx context.Context, sessionID string, ids []string) ([]models.ClassTeachingRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
SELECT id, session_id, guardian_id, co_teacher_id, name, min_grade, max_grade, max_students, helpers_needed, has_fee, fee_amount, status, created_at
FROM class_teaching_requests
WHERE session_id = $1 AND status = 'approved' AND id = ANY($2)`
	var requests []models.ClassTeachingRequest
	if err := r.db.SelectContext(ctx, &requests, query, sessionID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list class requests: %w", err)
	}
	return requests, nil
}

// IsTeacherInSession reports whether the guardian teaches or co-teaches an approved class in the session.
func (r *ClassRequestRepository) IsTeacherInSession(ctx context.Context, sessionID, guardianID string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM class_teaching_requests
    WHERE session_id = $1 AND status = 'approved' AND (guardian_id = $2 OR co_teacher_id = $2)
)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, sessionID, guardianID); err != nil {
		return false, fmt.Errorf("check session teacher: %w", err)
	}
	return exists, nil
}
