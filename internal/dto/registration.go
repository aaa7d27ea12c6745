package dto

import "github.com/noah-isme/coop-registration-api/internal/models"

// RegistrationItem asks for a child to be enrolled into a live schedule row.
// Teacher and Classroom are echoed for messaging only.
type RegistrationItem struct {
	ScheduleID string        `json:"scheduleId" validate:"required"`
	ChildID    string        `json:"childId" validate:"required"`
	ClassName  string        `json:"className"`
	Period     models.Period `json:"period" validate:"required,oneof=first second lunch third"`
	Teacher    string        `json:"teacher"`
	Classroom  string        `json:"classroom"`
}

// VolunteerItem asks for a guardian to be booked into a class role or a volunteer job.
type VolunteerItem struct {
	ScheduleID     *string              `json:"scheduleId,omitempty"`
	VolunteerJobID *string              `json:"volunteerJobId,omitempty"`
	GuardianID     string               `json:"guardianId" validate:"required"`
	Period         models.Period        `json:"period" validate:"required,oneof=first second lunch third non_period"`
	VolunteerType  models.VolunteerType `json:"volunteerType" validate:"required,oneof=teacher helper co_teacher volunteer_job"`
	ClassName      string               `json:"className,omitempty"`
	JobTitle       string               `json:"jobTitle,omitempty"`
	GuardianName   string               `json:"guardianName"`
}

// BatchRegistrationRequest is the payload of POST /registration/batch and /registration/preflight.
type BatchRegistrationRequest struct {
	SessionID            string             `json:"sessionId" validate:"required"`
	Registrations        []RegistrationItem `json:"registrations" validate:"dive"`
	VolunteerAssignments []VolunteerItem    `json:"volunteerAssignments" validate:"dive"`
	RequestAdminOverride bool               `json:"requestAdminOverride"`
}

// ItemKind distinguishes the two kinds of batch items.
type ItemKind string

const (
	ItemKindRegistration ItemKind = "registration"
	ItemKindVolunteer    ItemKind = "volunteer"
)

// ItemStatusFailed marks an item whose transaction was rolled back.
const ItemStatusFailed = "failed"

// ItemResult reports what happened to a single batch item during commit.
type ItemResult struct {
	Kind           ItemKind `json:"kind"`
	ScheduleID     string   `json:"scheduleId,omitempty"`
	VolunteerJobID string   `json:"volunteerJobId,omitempty"`
	ChildID        string   `json:"childId,omitempty"`
	GuardianID     string   `json:"guardianId,omitempty"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
}

// BatchRegistrationResponse is returned when a batch was committed, fully or with item failures.
type BatchRegistrationResponse struct {
	Success                bool         `json:"success"`
	RegisteredCount        int          `json:"registeredCount"`
	VolunteerCount         int          `json:"volunteerCount"`
	FailedCount            int          `json:"failedCount"`
	AdminOverrideRequested bool         `json:"adminOverrideRequested,omitempty"`
	Message                string       `json:"message,omitempty"`
	Items                  []ItemResult `json:"items"`
}

// ConflictResponse is returned with 409 when validation found conflicts.
type ConflictResponse struct {
	Success   bool                          `json:"success"`
	Message   string                        `json:"message"`
	Conflicts []models.RegistrationConflict `json:"conflicts"`
}

// HoursUnmetResponse is returned with 400 when volunteer hours fall short and no override applies.
type HoursUnmetResponse struct {
	Success                  bool   `json:"success"`
	Message                  string `json:"message"`
	VolunteerRequirementsMet bool   `json:"volunteerRequirementsMet"`
	RequiredHours            int    `json:"requiredHours"`
	FulfilledHours           int    `json:"fulfilledHours"`
	CanRequestOverride       bool   `json:"canRequestOverride"`
}

// PreflightResponse reports validation findings without committing anything.
type PreflightResponse struct {
	Conflicts                []models.RegistrationConflict `json:"conflicts"`
	RequiredHours            int                           `json:"requiredHours"`
	FulfilledHours           int                           `json:"fulfilledHours"`
	VolunteerRequirementsMet bool                          `json:"volunteerRequirementsMet"`
	HasApprovedOverride      bool                          `json:"hasApprovedOverride"`
	CanCommit                bool                          `json:"canCommit"`
	CanRequestOverride       bool                          `json:"canRequestOverride"`
}

// RegistrationStatusResponse exposes a family's override state for a session.
type RegistrationStatusResponse struct {
	SessionID                string              `json:"sessionId"`
	FamilyID                 string              `json:"familyId"`
	Status                   models.FamilyStatus `json:"status"`
	VolunteerRequirementsMet bool                `json:"volunteerRequirementsMet"`
	AdminOverride            bool                `json:"adminOverride"`
	AdminOverrideReason      *string             `json:"adminOverrideReason,omitempty"`
}
