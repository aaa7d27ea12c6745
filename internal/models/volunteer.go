package models

import "time"

// VolunteerType classifies how a guardian contributes hours.
type VolunteerType string

const (
	VolunteerTypeTeacher      VolunteerType = "teacher"
	VolunteerTypeHelper       VolunteerType = "helper"
	VolunteerTypeCoTeacher    VolunteerType = "co_teacher"
	VolunteerTypeVolunteerJob VolunteerType = "volunteer_job"
)

// AssignmentStatus tracks a volunteer assignment.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

// VolunteerAssignment books a guardian into a class or job for one period.
type VolunteerAssignment struct {
	ID             string           `db:"id" json:"id"`
	SessionID      string           `db:"session_id" json:"sessionId"`
	GuardianID     string           `db:"guardian_id" json:"guardianId"`
	FamilyID       string           `db:"family_id" json:"familyId"`
	Period         Period           `db:"period" json:"period"`
	VolunteerType  VolunteerType    `db:"volunteer_type" json:"volunteerType"`
	ScheduleID     *string          `db:"schedule_id" json:"scheduleId,omitempty"`
	VolunteerJobID *string          `db:"volunteer_job_id" json:"volunteerJobId,omitempty"`
	Status         AssignmentStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

// VolunteerJob is a session task outside class instruction, such as set-up or cleaning.
type VolunteerJob struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"sessionId"`
	Title     string `db:"title" json:"title"`
	Period    Period `db:"period" json:"period"`
}

// VolunteerHours is the outcome of the volunteer-hour formula.
type VolunteerHours struct {
	RequiredHours  int  `json:"requiredHours"`
	FulfilledHours int  `json:"fulfilledHours"`
	Met            bool `json:"volunteerRequirementsMet"`
}
