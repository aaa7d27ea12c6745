package dto

import (
	"time"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

// CreateDraftRequest creates a new empty draft for the caller.
type CreateDraftRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// DraftEntryInput places a class into a slot.
type DraftEntryInput struct {
	ClassTeachingRequestID string        `json:"classTeachingRequestId" validate:"required"`
	ClassroomID            string        `json:"classroomId" validate:"required"`
	Period                 models.Period `json:"period" validate:"required,oneof=first second lunch third"`
}

// SaveDraftEntriesRequest fully replaces the entries of a draft.
type SaveDraftEntriesRequest struct {
	Entries []DraftEntryInput `json:"entries" validate:"dive"`
}

// DraftResponse returns a draft together with its entries.
type DraftResponse struct {
	Draft   models.Draft        `json:"draft"`
	Entries []models.DraftEntry `json:"entries"`
}

// ConflictReport lists every slot contested across the drafts of a session.
type ConflictReport struct {
	SessionID   string                `json:"sessionId"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Conflicts   []models.SlotConflict `json:"conflicts"`
}

// ApplyDraftResponse summarises a live schedule replacement.
type ApplyDraftResponse struct {
	SessionID        string                `json:"sessionId"`
	DraftID          string                `json:"draftId"`
	SchedulesWritten int                   `json:"schedulesWritten"`
	Status           models.ScheduleStatus `json:"status"`
}

// UpdateScheduleStatusRequest moves the live schedule to a new status.
type UpdateScheduleStatusRequest struct {
	Status models.ScheduleStatus `json:"status" validate:"required,oneof=draft submitted published"`
}

// ScheduleStatusResponse reports a successful status transition.
type ScheduleStatusResponse struct {
	SessionID string                `json:"sessionId"`
	Previous  models.ScheduleStatus `json:"previous"`
	Status    models.ScheduleStatus `json:"status"`
}
