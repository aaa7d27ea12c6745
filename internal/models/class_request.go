package models

import "time"

// ClassRequestStatus tracks admin review of a class offering.
type ClassRequestStatus string

const (
	ClassRequestStatusPending  ClassRequestStatus = "pending"
	ClassRequestStatusApproved ClassRequestStatus = "approved"
	ClassRequestStatusRejected ClassRequestStatus = "rejected"
)

// ClassTeachingRequest is a class offered by a guardian for a session.
type ClassTeachingRequest struct {
	ID            string             `db:"id" json:"id"`
	SessionID     string             `db:"session_id" json:"sessionId"`
	GuardianID    string             `db:"guardian_id" json:"guardianId"`
	CoTeacherID   *string            `db:"co_teacher_id" json:"coTeacherId,omitempty"`
	Name          string             `db:"name" json:"name"`
	MinGrade      int                `db:"min_grade" json:"minGrade"`
	MaxGrade      int                `db:"max_grade" json:"maxGrade"`
	MaxStudents   int                `db:"max_students" json:"maxStudents"`
	HelpersNeeded int                `db:"helpers_needed" json:"helpersNeeded"`
	HasFee        bool               `db:"has_fee" json:"hasFee"`
	FeeAmount     float64            `db:"fee_amount" json:"feeAmount"`
	Status        ClassRequestStatus `db:"status" json:"status"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
}
