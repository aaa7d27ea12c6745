package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

const statusColumns = `id, family_id, session_id, status, volunteer_requirements_met, admin_override, admin_override_reason, overridden_by, overridden_at, created_at, updated_at`

// RegistrationStatusRepository persists the single status row per family and session.
type RegistrationStatusRepository struct {
	db *sqlx.DB
}

// NewRegistrationStatusRepository constructs the repository.
func NewRegistrationStatusRepository(db *sqlx.DB) *RegistrationStatusRepository {
	return &RegistrationStatusRepository{db: db}
}

func (r *RegistrationStatusRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Find returns the status row or sql.ErrNoRows when the family is still in progress.
func (r *RegistrationStatusRepository) Find(ctx context.Context, familyID, sessionID string) (*models.FamilyRegistrationStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM family_registration_status WHERE family_id = $1 AND session_id = $2`
	var status models.FamilyRegistrationStatus
	if err := r.db.GetContext(ctx, &status, query, familyID, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find registration status: %w", err)
	}
	return &status, nil
}

// UpsertOverrideRequest opens or refreshes a pending override. An approved row is left untouched.
func (r *RegistrationStatusRepository) UpsertOverrideRequest(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID, reason string) error {
	const query = `
INSERT INTO family_registration_status (id, family_id, session_id, status, volunteer_requirements_met, admin_override, admin_override_reason, created_at, updated_at)
VALUES ($1, $2, $3, 'admin_override', FALSE, TRUE, $4, $5, $5)
ON CONFLICT (family_id, session_id) DO UPDATE
SET status = 'admin_override', volunteer_requirements_met = FALSE, admin_override = TRUE,
    admin_override_reason = EXCLUDED.admin_override_reason, overridden_by = NULL, overridden_at = NULL,
    updated_at = EXCLUDED.updated_at
WHERE family_registration_status.status <> 'approved'`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), familyID, sessionID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert override request: %w", err)
	}
	return nil
}

// MarkCompleted records that requirements were met without override, unless a grant already exists.
func (r *RegistrationStatusRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string) error {
	const query = `
INSERT INTO family_registration_status (id, family_id, session_id, status, volunteer_requirements_met, admin_override, created_at, updated_at)
VALUES ($1, $2, $3, 'completed', TRUE, FALSE, $4, $4)
ON CONFLICT (family_id, session_id) DO UPDATE
SET status = 'completed', volunteer_requirements_met = TRUE, updated_at = EXCLUDED.updated_at
WHERE family_registration_status.status <> 'approved'`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), familyID, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark registration completed: %w", err)
	}
	return nil
}

// Decide moves a pending override to approved or denied. It returns false when no pending row matched.
func (r *RegistrationStatusRepository) Decide(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, decision models.FamilyStatus, adminID string, at time.Time) (bool, error) {
	const query = `
UPDATE family_registration_status
SET status = $3, overridden_by = $4, overridden_at = $5, updated_at = $5
WHERE family_id = $1 AND session_id = $2 AND status = 'admin_override'`
	result, err := r.exec(exec).ExecContext(ctx, query, familyID, sessionID, decision, adminID, at)
	if err != nil {
		return false, fmt.Errorf("decide override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check decided override rows: %w", err)
	}
	return affected == 1, nil
}

// ListPending returns the override requests awaiting review for a session, oldest first.
func (r *RegistrationStatusRepository) ListPending(ctx context.Context, sessionID string) ([]models.OverrideRequest, error) {
	const query = `
SELECT frs.id, frs.family_id, frs.session_id, frs.status, frs.volunteer_requirements_met, frs.admin_override,
       frs.admin_override_reason, frs.overridden_by, frs.overridden_at, frs.created_at, frs.updated_at,
       f.name AS family_name
FROM family_registration_status frs
JOIN families f ON f.id = frs.family_id
WHERE frs.session_id = $1 AND frs.status = 'admin_override'
ORDER BY frs.updated_at ASC`
	var requests []models.OverrideRequest
	if err := r.db.SelectContext(ctx, &requests, query, sessionID); err != nil {
		return nil, fmt.Errorf("list pending overrides: %w", err)
	}
	return requests, nil
}
