package models

import "time"

// FamilySessionFee is the recalculated class fee total for a family in a session.
type FamilySessionFee struct {
	FamilyID     string    `db:"family_id" json:"familyId"`
	SessionID    string    `db:"session_id" json:"sessionId"`
	ClassFees    float64   `db:"class_fees" json:"classFees"`
	TotalFee     float64   `db:"total_fee" json:"totalFee"`
	CalculatedAt time.Time `db:"calculated_at" json:"calculatedAt"`
}
