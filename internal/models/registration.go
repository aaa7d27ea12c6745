package models

import "time"

// RegistrationStatus captures the lifecycle of a child-class registration.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusPending    RegistrationStatus = "pending"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// ClassRegistration enrols a child into a live schedule row.
type ClassRegistration struct {
	ID           string             `db:"id" json:"id"`
	SessionID    string             `db:"session_id" json:"sessionId"`
	ScheduleID   string             `db:"schedule_id" json:"scheduleId"`
	ChildID      string             `db:"child_id" json:"childId"`
	FamilyID     string             `db:"family_id" json:"familyId"`
	RegisteredBy string             `db:"registered_by" json:"registeredBy"`
	Status       RegistrationStatus `db:"status" json:"status"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

// ConflictType classifies a registration validation finding.
type ConflictType string

const (
	ConflictClassFull     ConflictType = "class_full"
	ConflictChild         ConflictType = "child_conflict"
	ConflictGuardian      ConflictType = "guardian_conflict"
	ConflictVolunteerFull ConflictType = "volunteer_full"
)

// RegistrationConflict explains why an item in a batch cannot be committed.
type RegistrationConflict struct {
	Type           ConflictType `json:"type"`
	Message        string       `json:"message"`
	ScheduleID     string       `json:"scheduleId,omitempty"`
	VolunteerJobID string       `json:"volunteerJobId,omitempty"`
	ChildID        string       `json:"childId,omitempty"`
	GuardianID     string       `json:"guardianId,omitempty"`
	Period         Period       `json:"period"`
	ClassName      string       `json:"className,omitempty"`
}
