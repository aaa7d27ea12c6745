package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type sessionStatusStore interface {
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error)
	UpdateScheduleStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus) error
}

type liveScheduleWriter interface {
	ReplaceForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string, status models.ScheduleStatus, entries []models.DraftEntry) (int, error)
	UpdateStatusForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string, status models.ScheduleStatus) error
}

type draftEntryReader interface {
	FindByID(ctx context.Context, id string) (*models.Draft, error)
	ListEntries(ctx context.Context, exec sqlx.ExtContext, draftID string) ([]models.DraftEntry, error)
}

// ScheduleService publishes drafts into the live schedule and drives its status.
type ScheduleService struct {
	sessions  sessionStatusStore
	schedules liveScheduleWriter
	drafts    draftEntryReader
	tx        txRunner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a schedule service.
func NewScheduleService(sessions sessionStatusStore, schedules liveScheduleWriter, drafts draftEntryReader, tx txRunner, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{sessions: sessions, schedules: schedules, drafts: drafts, tx: tx, validator: validate, logger: logger}
}

// ApplyDraft replaces the session's live schedule rows with the draft's entries in one transaction.
// A published schedule cannot be replaced.
func (s *ScheduleService) ApplyDraft(ctx context.Context, sessionID, draftID string) (*dto.ApplyDraftResponse, error) {
	draft, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, lookupError(err, "draft not found", "failed to load draft")
	}
	if draft.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}

	resp := &dto.ApplyDraftResponse{SessionID: sessionID, DraftID: draftID}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		session, err := s.sessions.FindForUpdate(ctx, exec, sessionID)
		if err != nil {
			return lookupError(err, "session not found", "failed to lock session")
		}
		if session.ScheduleStatus == models.ScheduleStatusPublished {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "published schedule cannot be replaced")
		}
		entries, err := s.drafts.ListEntries(ctx, exec, draftID)
		if err != nil {
			return err
		}
		written, err := s.schedules.ReplaceForSession(ctx, exec, sessionID, session.ScheduleStatus, entries)
		if err != nil {
			return err
		}
		resp.SchedulesWritten = written
		resp.Status = session.ScheduleStatus
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to apply draft")
	}
	s.logger.Info("draft applied to live schedule",
		zap.String("session_id", sessionID),
		zap.String("draft_id", draftID),
		zap.Int("rows", resp.SchedulesWritten))
	return resp, nil
}

// Transition moves the session's live schedule to the requested status.
func (s *ScheduleService) Transition(ctx context.Context, sessionID string, req dto.UpdateScheduleStatusRequest) (*dto.ScheduleStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule status")
	}
	resp := &dto.ScheduleStatusResponse{SessionID: sessionID, Status: req.Status}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		session, err := s.sessions.FindForUpdate(ctx, exec, sessionID)
		if err != nil {
			return lookupError(err, "session not found", "failed to lock session")
		}
		resp.Previous = session.ScheduleStatus
		if !session.ScheduleStatus.CanTransitionTo(req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				"schedule cannot move from "+string(session.ScheduleStatus)+" to "+string(req.Status))
		}
		if err := s.sessions.UpdateScheduleStatus(ctx, exec, sessionID, req.Status); err != nil {
			return err
		}
		return s.schedules.UpdateStatusForSession(ctx, exec, sessionID, req.Status)
	})
	if err != nil {
		return nil, passThrough(err, "failed to update schedule status")
	}
	return resp, nil
}
