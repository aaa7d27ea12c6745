package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type feeStore interface {
	SumClassFees(ctx context.Context, sessionID, familyID string) (float64, error)
	Upsert(ctx context.Context, fee *models.FamilySessionFee) error
}

// FeeService recalculates the class fees a family owes for a session.
type FeeService struct {
	fees   feeStore
	logger *zap.Logger
}

// NewFeeService constructs a fee service.
func NewFeeService(fees feeStore, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{fees: fees, logger: logger}
}

// Recalculate totals the fee-bearing registrations holding a seat and stores the result.
func (s *FeeService) Recalculate(ctx context.Context, sessionID, familyID string) (*models.FamilySessionFee, error) {
	classFees, err := s.fees.SumClassFees(ctx, sessionID, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum class fees")
	}
	fee := &models.FamilySessionFee{
		FamilyID:  familyID,
		SessionID: sessionID,
		ClassFees: classFees,
		TotalFee:  classFees,
	}
	if err := s.fees.Upsert(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store family fee")
	}
	s.logger.Debug("family session fee recalculated",
		zap.String("session_id", sessionID),
		zap.String("family_id", familyID),
		zap.Float64("total_fee", fee.TotalFee))
	return fee, nil
}
