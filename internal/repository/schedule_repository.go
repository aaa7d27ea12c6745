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

const scheduleDetailQuery = `
SELECT s.id, s.session_id, s.class_teaching_request_id, s.classroom_id, s.period, s.status, s.created_at, s.updated_at,
       ctr.name AS class_name, ctr.max_students, ctr.helpers_needed
FROM schedules s
JOIN class_teaching_requests ctr ON ctr.id = s.class_teaching_request_id
WHERE s.id = $1`

// ScheduleRepository manages the live schedule rows of a session.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindDetail returns a schedule row with its class limits or sql.ErrNoRows.
func (r *ScheduleRepository) FindDetail(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	var detail models.ScheduleDetail
	if err := r.db.GetContext(ctx, &detail, scheduleDetailQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &detail, nil
}

// LockDetail reloads a schedule row and holds its lock until the surrounding transaction ends.
func (r *ScheduleRepository) LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduleDetail, error) {
	var detail models.ScheduleDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, scheduleDetailQuery+` FOR UPDATE OF s`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock schedule: %w", err)
	}
	return &detail, nil
}

// ReplaceForSession drops the live rows of a session and writes one row per draft entry.
func (r *ScheduleRepository) ReplaceForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string, status models.ScheduleStatus, entries []models.DraftEntry) (int, error) {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM schedules WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("clear live schedule: %w", err)
	}
	now := time.Now().UTC()
	const insert = `INSERT INTO schedules (id, session_id, class_teaching_request_id, classroom_id, period, status, created_at, updated_at)
VALUES (:id, :session_id, :class_teaching_request_id, :classroom_id, :period, :status, :created_at, :updated_at)`
	for _, entry := range entries {
		row := models.Schedule{
			ID:                     uuid.NewString(),
			SessionID:              sessionID,
			ClassTeachingRequestID: entry.ClassTeachingRequestID,
			ClassroomID:            entry.ClassroomID,
			Period:                 entry.Period,
			Status:                 status,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insert, row); err != nil {
			return 0, fmt.Errorf("insert live schedule row: %w", err)
		}
	}
	return len(entries), nil
}

// UpdateStatusForSession moves every live row of the session to status.
func (r *ScheduleRepository) UpdateStatusForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string, status models.ScheduleStatus) error {
	const query = `UPDATE schedules SET status = $2, updated_at = $3 WHERE session_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, sessionID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update live schedule status: %w", err)
	}
	return nil
}
