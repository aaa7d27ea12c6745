package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

// FeeRepository recalculates per-family session fees.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// SumClassFees totals the fees of the family's seat-holding registrations in fee-bearing classes.
func (r *FeeRepository) SumClassFees(ctx context.Context, sessionID, familyID string) (float64, error) {
	const query = `
SELECT COALESCE(SUM(ctr.fee_amount), 0)
FROM class_registrations cr
JOIN schedules s ON s.id = cr.schedule_id
JOIN class_teaching_requests ctr ON ctr.id = s.class_teaching_request_id
WHERE cr.session_id = $1 AND cr.family_id = $2 AND cr.status IN ('registered', 'pending') AND ctr.has_fee`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, sessionID, familyID); err != nil {
		return 0, fmt.Errorf("sum class fees: %w", err)
	}
	return total, nil
}

// Upsert stores the fee row for the family and session.
func (r *FeeRepository) Upsert(ctx context.Context, fee *models.FamilySessionFee) error {
	if fee.CalculatedAt.IsZero() {
		fee.CalculatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO family_session_fees (family_id, session_id, class_fees, total_fee, calculated_at)
VALUES (:family_id, :session_id, :class_fees, :total_fee, :calculated_at)
ON CONFLICT (family_id, session_id) DO UPDATE
SET class_fees = EXCLUDED.class_fees, total_fee = EXCLUDED.total_fee, calculated_at = EXCLUDED.calculated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, fee); err != nil {
		return fmt.Errorf("upsert family session fee: %w", err)
	}
	return nil
}
