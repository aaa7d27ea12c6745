package models

import "time"

// FamilyStatus tracks a family's registration outcome for a session.
// in_progress is implicit and never stored.
type FamilyStatus string

const (
	FamilyStatusInProgress    FamilyStatus = "in_progress"
	FamilyStatusCompleted     FamilyStatus = "completed"
	FamilyStatusAdminOverride FamilyStatus = "admin_override"
	FamilyStatusApproved      FamilyStatus = "approved"
	FamilyStatusDenied        FamilyStatus = "denied"
)

// FamilyRegistrationStatus is the single status row per family and session.
type FamilyRegistrationStatus struct {
	ID                       string       `db:"id" json:"id"`
	FamilyID                 string       `db:"family_id" json:"familyId"`
	SessionID                string       `db:"session_id" json:"sessionId"`
	Status                   FamilyStatus `db:"status" json:"status"`
	VolunteerRequirementsMet bool         `db:"volunteer_requirements_met" json:"volunteerRequirementsMet"`
	AdminOverride            bool         `db:"admin_override" json:"adminOverride"`
	AdminOverrideReason      *string      `db:"admin_override_reason" json:"adminOverrideReason,omitempty"`
	OverriddenBy             *string      `db:"overridden_by" json:"overriddenBy,omitempty"`
	OverriddenAt             *time.Time   `db:"overridden_at" json:"overriddenAt,omitempty"`
	CreatedAt                time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updatedAt"`
}

// HasStandingGrant reports whether the family may bypass the hour check.
func (s *FamilyRegistrationStatus) HasStandingGrant() bool {
	return s != nil && s.Status == FamilyStatusApproved
}

// PendingReview reports whether an admin decision is outstanding.
func (s *FamilyRegistrationStatus) PendingReview() bool {
	return s != nil && s.Status == FamilyStatusAdminOverride
}

// OverrideRequest lists a pending override together with its family name.
type OverrideRequest struct {
	FamilyRegistrationStatus
	FamilyName string `db:"family_name" json:"familyName"`
}
