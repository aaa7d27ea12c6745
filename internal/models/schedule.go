package models

import "time"

// Schedule is a live (applied) class placement for a session slot.
type Schedule struct {
	ID                     string         `db:"id" json:"id"`
	SessionID              string         `db:"session_id" json:"sessionId"`
	ClassTeachingRequestID string         `db:"class_teaching_request_id" json:"classTeachingRequestId"`
	ClassroomID            string         `db:"classroom_id" json:"classroomId"`
	Period                 Period         `db:"period" json:"period"`
	Status                 ScheduleStatus `db:"status" json:"status"`
	CreatedAt              time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updatedAt"`
}

// Slot returns the slot key occupied by the schedule row.
func (s Schedule) Slot() SlotKey {
	return NewSlotKey(s.ClassroomID, s.Period)
}

// ScheduleDetail enriches a schedule with the limits of its class.
type ScheduleDetail struct {
	Schedule
	ClassName     string `db:"class_name" json:"className"`
	MaxStudents   int    `db:"max_students" json:"maxStudents"`
	HelpersNeeded int    `db:"helpers_needed" json:"helpersNeeded"`
}
