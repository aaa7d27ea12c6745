package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

// itemRejection is a re-check failure inside an item transaction; its text is shown to the family.
type itemRejection struct {
	reason string
}

func (e *itemRejection) Error() string { return e.reason }

func reject(format string, args ...interface{}) error {
	return &itemRejection{reason: fmt.Sprintf(format, args...)}
}

// commitWithOverride opens the override request, then holds every seat and slot as pending.
func (s *RegistrationService) commitWithOverride(ctx context.Context, plan *batchPlan, hours models.VolunteerHours) (*dto.BatchRegistrationResponse, error) {
	if err := s.statuses.UpsertOverrideRequest(ctx, nil, plan.family.ID, plan.session.ID, overrideReason(hours)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to request admin override")
	}
	resp := s.commitItems(ctx, plan, models.RegistrationStatusPending, models.AssignmentStatusPending)
	resp.AdminOverrideRequested = true
	resp.Message = fmt.Sprintf("Admin override requested: %d of %d volunteer hours fulfilled. Your selections are held pending review.",
		hours.FulfilledHours, hours.RequiredHours)
	s.recalculateFees(ctx, plan)
	return resp, nil
}

// commit registers every item and records completion when hours were met without a grant.
func (s *RegistrationService) commit(ctx context.Context, plan *batchPlan, eval *batchEvaluation) *dto.BatchRegistrationResponse {
	resp := s.commitItems(ctx, plan, models.RegistrationStatusRegistered, models.AssignmentStatusAssigned)
	if resp.FailedCount == 0 {
		resp.Message = "Registration complete"
	} else {
		resp.Message = fmt.Sprintf("Registration saved with %d item(s) that could not be committed", resp.FailedCount)
	}
	if eval.hours.Met && !eval.grant && resp.FailedCount == 0 {
		if err := s.statuses.MarkCompleted(ctx, nil, plan.family.ID, plan.session.ID); err != nil {
			s.logger.Warn("failed to mark registration completed",
				zap.String("family_id", plan.family.ID),
				zap.String("session_id", plan.session.ID),
				zap.Error(err))
		}
	}
	s.recalculateFees(ctx, plan)
	return resp
}

// commitItems runs each item in its own transaction and keeps going past failures.
func (s *RegistrationService) commitItems(ctx context.Context, plan *batchPlan, regStatus models.RegistrationStatus, volStatus models.AssignmentStatus) *dto.BatchRegistrationResponse {
	resp := &dto.BatchRegistrationResponse{Items: make([]dto.ItemResult, 0, len(plan.registrations)+len(plan.volunteers))}
	for _, reg := range plan.registrations {
		item := s.commitRegistration(ctx, plan, reg, regStatus)
		if item.Status == dto.ItemStatusFailed {
			resp.FailedCount++
		} else {
			resp.RegisteredCount++
		}
		resp.Items = append(resp.Items, item)
	}
	for _, vol := range plan.volunteers {
		item := s.commitVolunteer(ctx, plan, vol, volStatus)
		if item.Status == dto.ItemStatusFailed {
			resp.FailedCount++
		} else {
			resp.VolunteerCount++
		}
		resp.Items = append(resp.Items, item)
	}
	resp.Success = resp.FailedCount == 0
	return resp
}

func (s *RegistrationService) commitRegistration(ctx context.Context, plan *batchPlan, reg plannedRegistration, status models.RegistrationStatus) dto.ItemResult {
	result := dto.ItemResult{Kind: dto.ItemKindRegistration, ScheduleID: reg.schedule.ID, ChildID: reg.child.ID}
	final := status
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		schedule, err := s.schedules.LockDetail(ctx, exec, reg.schedule.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reject("%s is no longer on the schedule", reg.schedule.ClassName)
			}
			return err
		}
		if schedule.Status != models.ScheduleStatusPublished {
			return reject("%s is no longer published", schedule.ClassName)
		}
		if err := s.registrations.LockChild(ctx, exec, reg.child.ID); err != nil {
			return err
		}
		existing, err := s.registrations.FindChildPeriodRegistration(ctx, exec, plan.session.ID, reg.child.ID, schedule.Period)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if existing != nil {
			if !holdsRegistration(existing, plan.family.ID, schedule.ID) {
				return reject("%s already has a class during %s period", reg.child.FullName, schedule.Period)
			}
			final = existing.Status
			if existing.Status == models.RegistrationStatusPending && status == models.RegistrationStatusRegistered {
				if err := s.registrations.UpdateStatus(ctx, exec, existing.ID, status); err != nil {
					return err
				}
				final = status
			}
			return nil
		}
		inserted, err := s.registrations.InsertIfCapacity(ctx, exec, &models.ClassRegistration{
			SessionID:    plan.session.ID,
			ScheduleID:   schedule.ID,
			ChildID:      reg.child.ID,
			FamilyID:     plan.family.ID,
			RegisteredBy: plan.guardian.ID,
			Status:       status,
		}, schedule.MaxStudents)
		if err != nil {
			return err
		}
		if !inserted {
			return reject("%s filled up before this registration was saved", schedule.ClassName)
		}
		return nil
	})
	return s.finishItem(result, string(final), err)
}

func (s *RegistrationService) commitVolunteer(ctx context.Context, plan *batchPlan, vol plannedVolunteer, status models.AssignmentStatus) dto.ItemResult {
	result := dto.ItemResult{Kind: dto.ItemKindVolunteer, GuardianID: vol.guardian.ID}
	if vol.schedule != nil {
		result.ScheduleID = vol.schedule.ID
	}
	if vol.job != nil {
		result.VolunteerJobID = vol.job.ID
	}
	final := status
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.volunteers.LockGuardian(ctx, exec, vol.guardian.ID); err != nil {
			return err
		}
		assignment := &models.VolunteerAssignment{
			SessionID:     plan.session.ID,
			GuardianID:    vol.guardian.ID,
			FamilyID:      plan.family.ID,
			Period:        vol.period,
			VolunteerType: vol.item.VolunteerType,
			Status:        status,
		}
		var schedule *models.ScheduleDetail
		if vol.schedule != nil {
			var err error
			schedule, err = s.schedules.LockDetail(ctx, exec, vol.schedule.ID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return reject("%s is no longer on the schedule", vol.schedule.ClassName)
				}
				return err
			}
			if schedule.Status != models.ScheduleStatusPublished {
				return reject("%s is no longer published", schedule.ClassName)
			}
			assignment.Period = schedule.Period
			assignment.ScheduleID = &schedule.ID
		}
		if vol.job != nil {
			assignment.VolunteerJobID = &vol.job.ID
		}

		existing, err := s.volunteers.FindGuardianPeriodAssignment(ctx, exec, plan.session.ID, vol.guardian.ID, assignment.Period)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if existing != nil {
			if !holdsAssignment(existing, plan.family.ID, assignment.VolunteerType, stringValue(assignment.ScheduleID), stringValue(assignment.VolunteerJobID)) {
				return reject("%s already volunteers during %s", vol.guardian.FullName, describePeriod(assignment.Period))
			}
			final = existing.Status
			if existing.Status == models.AssignmentStatusPending && status == models.AssignmentStatusAssigned {
				if err := s.volunteers.UpdateStatus(ctx, exec, existing.ID, status); err != nil {
					return err
				}
				final = status
			}
			return nil
		}

		if vol.item.VolunteerType == models.VolunteerTypeHelper && schedule != nil {
			inserted, err := s.volunteers.InsertHelperIfCapacity(ctx, exec, assignment, schedule.HelpersNeeded)
			if err != nil {
				return err
			}
			if !inserted {
				return reject("%s filled its helper spots before this assignment was saved", schedule.ClassName)
			}
			return nil
		}
		return s.volunteers.Insert(ctx, exec, assignment)
	})
	return s.finishItem(result, string(final), err)
}

func (s *RegistrationService) finishItem(result dto.ItemResult, status string, err error) dto.ItemResult {
	if err == nil {
		result.Status = status
		s.metrics.RecordCommitItem(string(result.Kind), true)
		return result
	}
	result.Status = dto.ItemStatusFailed
	var rejection *itemRejection
	if errors.As(err, &rejection) {
		result.Reason = rejection.reason
	} else {
		result.Reason = "this item could not be saved, please try again"
		s.logger.Error("batch item commit failed",
			zap.String("kind", string(result.Kind)),
			zap.String("schedule_id", result.ScheduleID),
			zap.String("volunteer_job_id", result.VolunteerJobID),
			zap.String("child_id", result.ChildID),
			zap.String("guardian_id", result.GuardianID),
			zap.Error(err))
	}
	s.metrics.RecordCommitItem(string(result.Kind), false)
	return result
}

// recalculateFees never fails the registration; errors are logged and counted.
func (s *RegistrationService) recalculateFees(ctx context.Context, plan *batchPlan) {
	if s.fees == nil {
		return
	}
	if _, err := s.fees.Recalculate(ctx, plan.session.ID, plan.family.ID); err != nil {
		s.metrics.RecordFeeFailure()
		s.logger.Error("fee recalculation failed",
			zap.String("session_id", plan.session.ID),
			zap.String("family_id", plan.family.ID),
			zap.Error(err))
	}
}
