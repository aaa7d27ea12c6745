package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type overrideStore interface {
	Find(ctx context.Context, familyID, sessionID string) (*models.FamilyRegistrationStatus, error)
	Decide(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, decision models.FamilyStatus, adminID string, at time.Time) (bool, error)
	ListPending(ctx context.Context, sessionID string) ([]models.OverrideRequest, error)
}

type pendingRegistrations interface {
	UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.RegistrationStatus) (int64, error)
}

type pendingAssignments interface {
	UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.AssignmentStatus) (int64, error)
}

// OverrideDeps groups the collaborators of OverrideService.
type OverrideDeps struct {
	Statuses      overrideStore
	Registrations pendingRegistrations
	Assignments   pendingAssignments
	Sessions      sessionReader
	Fees          feeRecalculator
	Tx            txRunner
}

// OverrideService lets admins review volunteer-hour override requests.
type OverrideService struct {
	statuses      overrideStore
	registrations pendingRegistrations
	assignments   pendingAssignments
	sessions      sessionReader
	fees          feeRecalculator
	tx            txRunner
	logger        *zap.Logger
	now           func() time.Time
}

// NewOverrideService constructs the service.
func NewOverrideService(deps OverrideDeps, logger *zap.Logger) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		statuses:      deps.Statuses,
		registrations: deps.Registrations,
		assignments:   deps.Assignments,
		sessions:      deps.Sessions,
		fees:          deps.Fees,
		tx:            deps.Tx,
		logger:        logger,
		now:           time.Now,
	}
}

// ListPending returns the session's override requests awaiting a decision.
func (s *OverrideService) ListPending(ctx context.Context, sessionID string) ([]models.OverrideRequest, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	pending, err := s.statuses.ListPending(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list override requests")
	}
	if pending == nil {
		pending = []models.OverrideRequest{}
	}
	return pending, nil
}

// Approve grants the family a standing bypass of the hour check for the session
// and confirms every selection held pending review.
func (s *OverrideService) Approve(ctx context.Context, sessionID, familyID, adminID string) (*models.FamilyRegistrationStatus, error) {
	return s.decide(ctx, sessionID, familyID, adminID, models.FamilyStatusApproved)
}

// Deny rejects the pending request and releases the seats and slots it held.
func (s *OverrideService) Deny(ctx context.Context, sessionID, familyID, adminID string) (*models.FamilyRegistrationStatus, error) {
	return s.decide(ctx, sessionID, familyID, adminID, models.FamilyStatusDenied)
}

func (s *OverrideService) decide(ctx context.Context, sessionID, familyID, adminID string, decision models.FamilyStatus) (*models.FamilyRegistrationStatus, error) {
	regStatus, volStatus := models.RegistrationStatusRegistered, models.AssignmentStatusAssigned
	if decision == models.FamilyStatusDenied {
		regStatus, volStatus = models.RegistrationStatusCancelled, models.AssignmentStatusCancelled
	}

	var decided bool
	var seats, slots int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		ok, err := s.statuses.Decide(ctx, exec, familyID, sessionID, decision, adminID, s.now().UTC())
		if err != nil || !ok {
			return err
		}
		if seats, err = s.registrations.UpdatePendingForFamily(ctx, exec, familyID, sessionID, regStatus); err != nil {
			return err
		}
		if slots, err = s.assignments.UpdatePendingForFamily(ctx, exec, familyID, sessionID, volStatus); err != nil {
			return err
		}
		decided = true
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record override decision")
	}
	status, err := s.statuses.Find(ctx, familyID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no override request for this family")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration status")
	}
	if !decided {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "override request is "+string(status.Status)+", not pending review")
	}
	s.logger.Info("override decided",
		zap.String("session_id", sessionID),
		zap.String("family_id", familyID),
		zap.String("admin_id", adminID),
		zap.String("decision", string(decision)),
		zap.Int64("registrations_updated", seats),
		zap.Int64("assignments_updated", slots))

	if s.fees != nil {
		if _, err := s.fees.Recalculate(ctx, sessionID, familyID); err != nil {
			s.logger.Error("fee recalculation failed",
				zap.String("session_id", sessionID),
				zap.String("family_id", familyID),
				zap.Error(err))
		}
	}
	return status, nil
}
