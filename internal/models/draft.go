package models

import "time"

// Draft is a named, per-creator working copy of a session schedule.
type Draft struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"sessionId"`
	CreatorID   string    `db:"creator_id" json:"creatorId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// DraftSummary is the list view of a draft.
type DraftSummary struct {
	Draft
	CreatorName string `db:"creator_name" json:"creatorName"`
	EntryCount  int    `db:"entry_count" json:"entryCount"`
}

// DraftEntry places a class into a slot within a draft.
type DraftEntry struct {
	ID                     string    `db:"id" json:"id"`
	DraftID                string    `db:"draft_id" json:"draftId"`
	ClassTeachingRequestID string    `db:"class_teaching_request_id" json:"classTeachingRequestId"`
	ClassroomID            string    `db:"classroom_id" json:"classroomId"`
	Period                 Period    `db:"period" json:"period"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
}

// Slot returns the slot key claimed by the entry.
func (e DraftEntry) Slot() SlotKey {
	return NewSlotKey(e.ClassroomID, e.Period)
}

// DraftSelection remembers the draft a user last opened for a session.
type DraftSelection struct {
	CreatorID string    `db:"creator_id" json:"creatorId"`
	SessionID string    `db:"session_id" json:"sessionId"`
	DraftID   string    `db:"draft_id" json:"draftId"`
	OpenedAt  time.Time `db:"opened_at" json:"openedAt"`
}

// DraftEntryClaim is a draft entry joined with its draft, creator and class.
type DraftEntryClaim struct {
	DraftID                string `db:"draft_id"`
	DraftName              string `db:"draft_name"`
	CreatorName            string `db:"creator_name"`
	ClassTeachingRequestID string `db:"class_teaching_request_id"`
	ClassName              string `db:"class_name"`
	ClassroomID            string `db:"classroom_id"`
	Period                 Period `db:"period"`
}

// ConflictingDraft identifies one claimant of a contested slot.
type ConflictingDraft struct {
	DraftID                string `json:"draftId"`
	DraftName              string `json:"draftName"`
	CreatorName            string `json:"creatorName"`
	ClassTeachingRequestID string `json:"classTeachingRequestId"`
	ClassName              string `json:"className"`
}

// SlotConflict is a slot claimed by more than one draft entry.
type SlotConflict struct {
	ClassroomID       string             `json:"classroomId"`
	Period            Period             `json:"period"`
	ConflictingDrafts []ConflictingDraft `json:"conflictingDrafts"`
}
