package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coop-registration-api/internal/models"
)

const draftColumns = `d.id, d.session_id, d.creator_id, d.name, d.description, d.is_active, d.created_at, d.updated_at`

// DraftRepository persists draft schedules, their entries and per-user selections.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs the repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func (r *DraftRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// DeactivateByCreator clears the active flag on the creator's drafts for a session.
func (r *DraftRepository) DeactivateByCreator(ctx context.Context, exec sqlx.ExtContext, sessionID, creatorID string) error {
	const query = `UPDATE drafts SET is_active = FALSE WHERE session_id = $1 AND creator_id = $2 AND is_active`
	if _, err := r.exec(exec).ExecContext(ctx, query, sessionID, creatorID); err != nil {
		return fmt.Errorf("deactivate drafts: %w", err)
	}
	return nil
}

// Create inserts a draft.
func (r *DraftRepository) Create(ctx context.Context, exec sqlx.ExtContext, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	const query = `INSERT INTO drafts (id, session_id, creator_id, name, description, is_active, created_at, updated_at)
VALUES (:id, :session_id, :creator_id, :name, :description, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, draft); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

// List returns drafts of a session, newest update first. An empty creatorID lists every creator.
func (r *DraftRepository) List(ctx context.Context, sessionID, creatorID string) ([]models.DraftSummary, error) {
	query := `
SELECT ` + draftColumns + `, COALESCE(g.full_name, '') AS creator_name, COUNT(de.id) AS entry_count
FROM drafts d
LEFT JOIN guardians g ON g.id = d.creator_id
LEFT JOIN draft_entries de ON de.draft_id = d.id
WHERE d.session_id = $1 AND ($2 = '' OR d.creator_id = $2)
GROUP BY d.id, g.full_name
ORDER BY d.updated_at DESC`
	var drafts []models.DraftSummary
	if err := r.db.SelectContext(ctx, &drafts, query, sessionID, creatorID); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

// FindByID returns a draft or sql.ErrNoRows.
func (r *DraftRepository) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts d WHERE d.id = $1`
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find draft: %w", err)
	}
	return &draft, nil
}

// FindActiveByCreator returns the creator's active draft for the session or sql.ErrNoRows.
func (r *DraftRepository) FindActiveByCreator(ctx context.Context, sessionID, creatorID string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts d
WHERE d.session_id = $1 AND d.creator_id = $2 AND d.is_active
ORDER BY d.updated_at DESC LIMIT 1`
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, sessionID, creatorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active draft: %w", err)
	}
	return &draft, nil
}

// FindMostRecent returns the session draft updated last or sql.ErrNoRows.
func (r *DraftRepository) FindMostRecent(ctx context.Context, sessionID string) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts d WHERE d.session_id = $1 ORDER BY d.updated_at DESC LIMIT 1`
	var draft models.Draft
	if err := r.db.GetContext(ctx, &draft, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find most recent draft: %w", err)
	}
	return &draft, nil
}

// ListEntries returns the entries of a draft ordered by slot.
func (r *DraftRepository) ListEntries(ctx context.Context, exec sqlx.ExtContext, draftID string) ([]models.DraftEntry, error) {
	const query = `SELECT id, draft_id, class_teaching_request_id, classroom_id, period, created_at
FROM draft_entries WHERE draft_id = $1 ORDER BY classroom_id, period`
	var entries []models.DraftEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, draftID); err != nil {
		return nil, fmt.Errorf("list draft entries: %w", err)
	}
	return entries, nil
}

// ReplaceEntries deletes every entry of the draft, inserts the given set and bumps updated_at.
func (r *DraftRepository) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, draftID string, entries []models.DraftEntry) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM draft_entries WHERE draft_id = $1`, draftID); err != nil {
		return fmt.Errorf("clear draft entries: %w", err)
	}
	now := time.Now().UTC()
	const insert = `INSERT INTO draft_entries (id, draft_id, class_teaching_request_id, classroom_id, period, created_at)
VALUES (:id, :draft_id, :class_teaching_request_id, :classroom_id, :period, :created_at)`
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.DraftID = draftID
		entry.CreatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, insert, entry); err != nil {
			return fmt.Errorf("insert draft entry: %w", err)
		}
	}
	result, err := target.ExecContext(ctx, `UPDATE drafts SET updated_at = $2 WHERE id = $1`, draftID, now)
	if err != nil {
		return fmt.Errorf("touch draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check touched draft rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a draft; entries and selections cascade.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted draft rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListClaimsForSession joins every entry of every draft in the session with its draft, creator and class.
// Entries whose draft or class no longer exists fall out of the inner joins.
func (r *DraftRepository) ListClaimsForSession(ctx context.Context, sessionID string) ([]models.DraftEntryClaim, error) {
	const query = `
SELECT de.draft_id, d.name AS draft_name, COALESCE(g.full_name, '') AS creator_name,
       de.class_teaching_request_id, ctr.name AS class_name, de.classroom_id, de.period
FROM draft_entries de
JOIN drafts d ON d.id = de.draft_id
JOIN class_teaching_requests ctr ON ctr.id = de.class_teaching_request_id
LEFT JOIN guardians g ON g.id = d.creator_id
WHERE d.session_id = $1
ORDER BY de.created_at, de.id`
	var claims []models.DraftEntryClaim
	if err := r.db.SelectContext(ctx, &claims, query, sessionID); err != nil {
		return nil, fmt.Errorf("list draft claims: %w", err)
	}
	return claims, nil
}

// UpsertSelection records the draft a user last opened for a session.
func (r *DraftRepository) UpsertSelection(ctx context.Context, selection *models.DraftSelection) error {
	if selection.OpenedAt.IsZero() {
		selection.OpenedAt = time.Now().UTC()
	}
	const query = `INSERT INTO draft_selections (creator_id, session_id, draft_id, opened_at)
VALUES (:creator_id, :session_id, :draft_id, :opened_at)
ON CONFLICT (creator_id, session_id) DO UPDATE SET draft_id = EXCLUDED.draft_id, opened_at = EXCLUDED.opened_at`
	if _, err := r.db.NamedExecContext(ctx, query, selection); err != nil {
		return fmt.Errorf("upsert draft selection: %w", err)
	}
	return nil
}

// FindSelection returns the user's selection for the session or sql.ErrNoRows.
func (r *DraftRepository) FindSelection(ctx context.Context, sessionID, creatorID string) (*models.DraftSelection, error) {
	const query = `SELECT creator_id, session_id, draft_id, opened_at FROM draft_selections WHERE session_id = $1 AND creator_id = $2`
	var selection models.DraftSelection
	if err := r.db.GetContext(ctx, &selection, query, sessionID, creatorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find draft selection: %w", err)
	}
	return &selection, nil
}
