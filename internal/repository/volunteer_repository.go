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

// VolunteerRepository persists guardian volunteer assignments and reads volunteer jobs.
type VolunteerRepository struct {
	db *sqlx.DB
}

// NewVolunteerRepository constructs the repository.
func NewVolunteerRepository(db *sqlx.DB) *VolunteerRepository {
	return &VolunteerRepository{db: db}
}

func (r *VolunteerRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindJob returns a volunteer job or sql.ErrNoRows.
func (r *VolunteerRepository) FindJob(ctx context.Context, id string) (*models.VolunteerJob, error) {
	const query = `SELECT id, session_id, title, period FROM volunteer_jobs WHERE id = $1`
	var job models.VolunteerJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find volunteer job: %w", err)
	}
	return &job, nil
}

// FindGuardianPeriodAssignment returns the guardian's active assignment in the exact period.
// non_period is its own bucket. It returns sql.ErrNoRows when the period is free.
func (r *VolunteerRepository) FindGuardianPeriodAssignment(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string, period models.Period) (*models.VolunteerAssignment, error) {
	const query = `
SELECT id, session_id, guardian_id, family_id, period, volunteer_type, schedule_id, volunteer_job_id, status, created_at
FROM volunteer_assignments
WHERE session_id = $1 AND guardian_id = $2 AND period = $3 AND status <> 'cancelled'
ORDER BY created_at ASC
LIMIT 1`
	var assignment models.VolunteerAssignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, sessionID, guardianID, period); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian period assignment: %w", err)
	}
	return &assignment, nil
}

// UpdateStatus moves a single assignment to status.
func (r *VolunteerRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus) error {
	if _, err := r.exec(exec).ExecContext(ctx, `UPDATE volunteer_assignments SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return nil
}

// UpdatePendingForFamily moves every pending assignment of the family in the session to status.
func (r *VolunteerRepository) UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.AssignmentStatus) (int64, error) {
	const query = `UPDATE volunteer_assignments SET status = $3 WHERE family_id = $1 AND session_id = $2 AND status = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, familyID, sessionID, status)
	if err != nil {
		return 0, fmt.Errorf("update pending assignments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check updated assignment rows: %w", err)
	}
	return affected, nil
}

// CountHelpers counts helper assignments booked for a schedule row.
func (r *VolunteerRepository) CountHelpers(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM volunteer_assignments WHERE schedule_id = $1 AND volunteer_type = 'helper' AND status <> 'cancelled'`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, scheduleID); err != nil {
		return 0, fmt.Errorf("count helpers: %w", err)
	}
	return count, nil
}

// LockGuardian serialises concurrent assignments of the same guardian.
func (r *VolunteerRepository) LockGuardian(ctx context.Context, exec sqlx.ExtContext, guardianID string) error {
	var id string
	if err := sqlx.GetContext(ctx, r.exec(exec), &id, `SELECT id FROM guardians WHERE id = $1 FOR UPDATE`, guardianID); err != nil {
		return fmt.Errorf("lock guardian: %w", err)
	}
	return nil
}

// Insert stores an assignment with no capacity guard.
func (r *VolunteerRepository) Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment) error {
	prepareAssignment(assignment)
	const query = `INSERT INTO volunteer_assignments (id, session_id, guardian_id, family_id, period, volunteer_type, schedule_id, volunteer_job_id, status, created_at)
VALUES (:id, :session_id, :guardian_id, :family_id, :period, :volunteer_type, :schedule_id, :volunteer_job_id, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("insert volunteer assignment: %w", err)
	}
	return nil
}

// InsertHelperIfCapacity inserts a helper assignment only while fewer than helpersNeeded helpers are booked.
func (r *VolunteerRepository) InsertHelperIfCapacity(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment, helpersNeeded int) (bool, error) {
	prepareAssignment(assignment)
	const query = `
INSERT INTO volunteer_assignments (id, session_id, guardian_id, family_id, period, volunteer_type, schedule_id, volunteer_job_id, status, created_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
WHERE (SELECT COUNT(*) FROM volunteer_assignments WHERE schedule_id = $7 AND volunteer_type = 'helper' AND status <> 'cancelled') < $11`
	result, err := r.exec(exec).ExecContext(ctx, query,
		assignment.ID, assignment.SessionID, assignment.GuardianID, assignment.FamilyID, assignment.Period,
		assignment.VolunteerType, assignment.ScheduleID, assignment.VolunteerJobID, assignment.Status,
		assignment.CreatedAt, helpersNeeded)
	if err != nil {
		return false, fmt.Errorf("insert helper assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check inserted helper rows: %w", err)
	}
	return affected == 1, nil
}

// ListTeachingPeriods returns the distinct live periods in which the guardian teaches an approved class.
func (r *VolunteerRepository) ListTeachingPeriods(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string) ([]models.Period, error) {
	const query = `
SELECT DISTINCT s.period
FROM schedules s
JOIN class_teaching_requests ctr ON ctr.id = s.class_teaching_request_id
WHERE s.session_id = $1 AND ctr.status = 'approved' AND (ctr.guardian_id = $2 OR ctr.co_teacher_id = $2)
ORDER BY s.period`
	var periods []models.Period
	if err := sqlx.SelectContext(ctx, r.exec(exec), &periods, query, sessionID, guardianID); err != nil {
		return nil, fmt.Errorf("list teaching periods: %w", err)
	}
	return periods, nil
}

func prepareAssignment(assignment *models.VolunteerAssignment) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
}
