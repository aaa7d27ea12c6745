package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type draftStore interface {
	DeactivateByCreator(ctx context.Context, exec sqlx.ExtContext, sessionID, creatorID string) error
	Create(ctx context.Context, exec sqlx.ExtContext, draft *models.Draft) error
	List(ctx context.Context, sessionID, creatorID string) ([]models.DraftSummary, error)
	FindByID(ctx context.Context, id string) (*models.Draft, error)
	FindActiveByCreator(ctx context.Context, sessionID, creatorID string) (*models.Draft, error)
	FindMostRecent(ctx context.Context, sessionID string) (*models.Draft, error)
	ListEntries(ctx context.Context, exec sqlx.ExtContext, draftID string) ([]models.DraftEntry, error)
	ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, draftID string, entries []models.DraftEntry) error
	Delete(ctx context.Context, id string) error
	UpsertSelection(ctx context.Context, selection *models.DraftSelection) error
	FindSelection(ctx context.Context, sessionID, creatorID string) (*models.DraftSelection, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type classRequestReader interface {
	ListApprovedByIDs(ctx context.Context, sessionID string, ids []string) ([]models.ClassTeachingRequest, error)
}

// DraftService manages per-user draft schedules.
type DraftService struct {
	drafts    draftStore
	sessions  sessionReader
	classes   classRequestReader
	tx        txRunner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDraftService constructs a draft service.
func NewDraftService(drafts draftStore, sessions sessionReader, classes classRequestReader, tx txRunner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DraftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		drafts:    drafts,
		sessions:  sessions,
		classes:   classes,
		tx:        tx,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Create deactivates the creator's active draft for the session and inserts a new empty, active one.
func (s *DraftService) Create(ctx context.Context, sessionID, creatorID string, req dto.CreateDraftRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}

	draft := &models.Draft{
		SessionID:   sessionID,
		CreatorID:   creatorID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsActive:    true,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.drafts.DeactivateByCreator(ctx, exec, sessionID, creatorID); err != nil {
			return err
		}
		return s.drafts.Create(ctx, exec, draft)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft")
	}
	s.invalidateConflicts(ctx, sessionID)
	return draft, nil
}

// List returns the session's drafts, optionally filtered by creator, newest first.
func (s *DraftService) List(ctx context.Context, sessionID, creatorID string) ([]models.DraftSummary, error) {
	drafts, err := s.drafts.List(ctx, sessionID, creatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	if drafts == nil {
		drafts = []models.DraftSummary{}
	}
	return drafts, nil
}

// Open loads a draft with its entries and remembers it as the caller's selection.
func (s *DraftService) Open(ctx context.Context, sessionID, draftID, userID string) (*dto.DraftResponse, error) {
	draft, err := s.findInSession(ctx, sessionID, draftID)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.UpsertSelection(ctx, &models.DraftSelection{CreatorID: userID, SessionID: sessionID, DraftID: draft.ID}); err != nil {
		s.logger.Warn("failed to record draft selection", zap.String("draft_id", draft.ID), zap.String("user_id", userID), zap.Error(err))
	}
	return s.withEntries(ctx, draft)
}

// Current resolves the draft to show on load: the last opened one, else the caller's active draft,
// else the most recently updated draft of the session.
func (s *DraftService) Current(ctx context.Context, sessionID, userID string) (*dto.DraftResponse, error) {
	selection, err := s.drafts.FindSelection(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft selection")
	}
	if selection != nil {
		draft, err := s.drafts.FindByID(ctx, selection.DraftID)
		switch {
		case err == nil && draft.SessionID == sessionID:
			return s.withEntries(ctx, draft)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
		}
	}

	draft, err := s.drafts.FindActiveByCreator(ctx, sessionID, userID)
	if err == nil {
		return s.withEntries(ctx, draft)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active draft")
	}

	draft, err = s.drafts.FindMostRecent(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "no drafts for this session", "failed to load latest draft")
	}
	return s.withEntries(ctx, draft)
}

// SaveEntries replaces every entry of the draft. Duplicate slots collapse to the last occurrence.
func (s *DraftService) SaveEntries(ctx context.Context, sessionID, draftID, userID string, req dto.SaveDraftEntriesRequest) (*dto.DraftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft entries")
	}
	draft, err := s.findInSession(ctx, sessionID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.CreatorID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the draft creator can edit it")
	}

	entries := CollapseDraftEntries(req.Entries)
	if err := s.ensureClassesApproved(ctx, sessionID, entries); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		return s.drafts.ReplaceEntries(ctx, exec, draft.ID, entries)
	})
	if err != nil {
		return nil, lookupError(err, "draft not found", "failed to save draft entries")
	}
	s.invalidateConflicts(ctx, sessionID)

	updated, err := s.drafts.FindByID(ctx, draft.ID)
	if err != nil {
		return nil, lookupError(err, "draft not found", "failed to reload draft")
	}
	return s.withEntries(ctx, updated)
}

// Delete removes a draft owned by the caller.
func (s *DraftService) Delete(ctx context.Context, sessionID, draftID, userID string) error {
	draft, err := s.findInSession(ctx, sessionID, draftID)
	if err != nil {
		return err
	}
	if draft.CreatorID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the draft creator can delete it")
	}
	if err := s.drafts.Delete(ctx, draft.ID); err != nil {
		return lookupError(err, "draft not found", "failed to delete draft")
	}
	s.invalidateConflicts(ctx, sessionID)
	return nil
}

// CollapseDraftEntries turns inputs into entries keyed by slot; a later duplicate replaces an earlier one in place.
func CollapseDraftEntries(inputs []dto.DraftEntryInput) []models.DraftEntry {
	index := make(map[models.SlotKey]int, len(inputs))
	entries := make([]models.DraftEntry, 0, len(inputs))
	for _, input := range inputs {
		entry := models.DraftEntry{
			ClassTeachingRequestID: input.ClassTeachingRequestID,
			ClassroomID:            strings.TrimSpace(input.ClassroomID),
			Period:                 input.Period,
		}
		key := entry.Slot()
		if i, ok := index[key]; ok {
			entries[i] = entry
			continue
		}
		index[key] = len(entries)
		entries = append(entries, entry)
	}
	return entries
}

func (s *DraftService) ensureClassesApproved(ctx context.Context, sessionID string, entries []models.DraftEntry) error {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.ClassTeachingRequestID]; ok {
			continue
		}
		seen[entry.ClassTeachingRequestID] = struct{}{}
		ids = append(ids, entry.ClassTeachingRequestID)
	}
	if len(ids) == 0 {
		return nil
	}
	approved, err := s.classes.ListApprovedByIDs(ctx, sessionID, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class requests")
	}
	for _, class := range approved {
		delete(seen, class.ID)
	}
	if len(seen) == 0 {
		return nil
	}
	unknown := make([]string, 0, len(seen))
	for id := range seen {
		unknown = append(unknown, id)
	}
	sort.Strings(unknown)
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("classes are not approved for this session: %s", strings.Join(unknown, ", ")))
}

func (s *DraftService) findInSession(ctx context.Context, sessionID, draftID string) (*models.Draft, error) {
	draft, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, lookupError(err, "draft not found", "failed to load draft")
	}
	if draft.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	return draft, nil
}

func (s *DraftService) withEntries(ctx context.Context, draft *models.Draft) (*dto.DraftResponse, error) {
	entries, err := s.drafts.ListEntries(ctx, nil, draft.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft entries")
	}
	if entries == nil {
		entries = []models.DraftEntry{}
	}
	return &dto.DraftResponse{Draft: *draft, Entries: entries}, nil
}

// invalidateConflicts never fails the write. The cache keeps a failed key stale and retries on read.
func (s *DraftService) invalidateConflicts(ctx context.Context, sessionID string) {
	if err := s.cache.Invalidate(ctx, ConflictReportKey(sessionID)); err != nil {
		s.logger.Warn("conflict report invalidation deferred to next read",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
