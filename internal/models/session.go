package models

import "time"

// ScheduleStatus is the session-wide status shared by every live schedule row.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "draft"
	ScheduleStatusSubmitted ScheduleStatus = "submitted"
	ScheduleStatusPublished ScheduleStatus = "published"
)

var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleStatusDraft:     {ScheduleStatusSubmitted},
	ScheduleStatusSubmitted: {ScheduleStatusDraft, ScheduleStatusPublished},
}

// CanTransitionTo reports whether the live schedule may move from s to target.
func (s ScheduleStatus) CanTransitionTo(target ScheduleStatus) bool {
	for _, next := range scheduleTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Session is a co-op term with its own registration window and schedule.
type Session struct {
	ID                       string         `db:"id" json:"id"`
	Name                     string         `db:"name" json:"name"`
	RegistrationStart        time.Time      `db:"registration_start" json:"registrationStart"`
	RegistrationEnd          time.Time      `db:"registration_end" json:"registrationEnd"`
	TeacherRegistrationStart *time.Time     `db:"teacher_registration_start" json:"teacherRegistrationStart,omitempty"`
	ScheduleStatus           ScheduleStatus `db:"schedule_status" json:"scheduleStatus"`
	CreatedAt                time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updatedAt"`
}
