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

// RegistrationRepository persists child class registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CountActiveBySchedule counts the seats taken in a schedule row; pending registrations hold seats.
func (r *RegistrationRepository) CountActiveBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_registrations WHERE schedule_id = $1 AND status <> 'cancelled'`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, scheduleID); err != nil {
		return 0, fmt.Errorf("count schedule registrations: %w", err)
	}
	return count, nil
}

// FindChildPeriodRegistration returns the child's seat-holding registration in the period, in any classroom.
// It returns sql.ErrNoRows when the period is free.
func (r *RegistrationRepository) FindChildPeriodRegistration(ctx context.Context, exec sqlx.ExtContext, sessionID, childID string, period models.Period) (*models.ClassRegistration, error) {
	const query = `
SELECT cr.id, cr.session_id, cr.schedule_id, cr.child_id, cr.family_id, cr.registered_by, cr.status, cr.created_at, cr.updated_at
FROM class_registrations cr
JOIN schedules s ON s.id = cr.schedule_id
WHERE cr.session_id = $1 AND cr.child_id = $2 AND s.period = $3 AND cr.status <> 'cancelled'
ORDER BY cr.created_at ASC
LIMIT 1`
	var registration models.ClassRegistration
	if err := sqlx.GetContext(ctx, r.exec(exec), &registration, query, sessionID, childID, period); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find child period registration: %w", err)
	}
	return &registration, nil
}

// UpdateStatus moves a single registration to status.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus) error {
	const query = `UPDATE class_registrations SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}

// UpdatePendingForFamily moves every pending registration of the family in the session to status.
func (r *RegistrationRepository) UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.RegistrationStatus) (int64, error) {
	const query = `
UPDATE class_registrations SET status = $3, updated_at = $4
WHERE family_id = $1 AND session_id = $2 AND status = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, familyID, sessionID, status, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update pending registrations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check updated registration rows: %w", err)
	}
	return affected, nil
}

// LockChild serialises concurrent registrations of the same child.
func (r *RegistrationRepository) LockChild(ctx context.Context, exec sqlx.ExtContext, childID string) error {
	var id string
	if err := sqlx.GetContext(ctx, r.exec(exec), &id, `SELECT id FROM children WHERE id = $1 FOR UPDATE`, childID); err != nil {
		return fmt.Errorf("lock child: %w", err)
	}
	return nil
}

// InsertIfCapacity inserts the registration only while fewer than maxStudents seats are taken.
// It returns false when the class was full.
func (r *RegistrationRepository) InsertIfCapacity(ctx context.Context, exec sqlx.ExtContext, registration *models.ClassRegistration, maxStudents int) (bool, error) {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	registration.CreatedAt = now
	registration.UpdatedAt = now
	const query = `
INSERT INTO class_registrations (id, session_id, schedule_id, child_id, family_id, registered_by, status, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $8
WHERE (SELECT COUNT(*) FROM class_registrations WHERE schedule_id = $3 AND status <> 'cancelled') < $9`
	result, err := r.exec(exec).ExecContext(ctx, query,
		registration.ID, registration.SessionID, registration.ScheduleID, registration.ChildID,
		registration.FamilyID, registration.RegisteredBy, registration.Status, now, maxStudents)
	if err != nil {
		return false, fmt.Errorf("insert class registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check inserted registration rows: %w", err)
	}
	return affected == 1, nil
}
