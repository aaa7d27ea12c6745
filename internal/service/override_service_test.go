package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

// shortBatch registers two periods but volunteers for one, so it always needs an override.
func shortBatch() dto.BatchRegistrationRequest {
	return dto.BatchRegistrationRequest{
		SessionID:     "s1",
		Registrations: []dto.RegistrationItem{
			registrationItem("art", "c1"),
			{ScheduleID: "science", ChildID: "c2", Period: models.PeriodSecond},
		},
		VolunteerAssignments: []dto.VolunteerItem{helperItem("art", "g1")},
	}
}

func overrideWorld() *coopWorld {
	w := baseWorld()
	w.addSchedule("science", "s1", "room-4", models.PeriodSecond, 10, 2)
	return w
}

func TestOverrideServiceApproveConfirmsHeldSelections(t *testing.T) {
	w := overrideWorld()
	registration := w.service()
	overrides := w.overrides()
	ctx := context.Background()

	req := shortBatch()
	req.RequestAdminOverride = true
	result, err := registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	require.Equal(t, OutcomeOverrideRequested, result.Outcome)
	regs, vols := w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusPending}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusPending}, vols)

	pending, err := overrides.ListPending(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "f1", pending[0].FamilyID)
	assert.Equal(t, "Family f1", pending[0].FamilyName)

	feesBefore := w.feeCalls
	status, err := overrides.Approve(ctx, "s1", "f1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.FamilyStatusApproved, status.Status)
	require.NotNil(t, status.OverriddenBy)
	assert.Equal(t, "admin-1", *status.OverriddenBy)
	require.NotNil(t, status.OverriddenAt)
	assert.True(t, status.OverriddenAt.Equal(worldNow))
	assert.Equal(t, feesBefore+1, w.feeCalls)

	regs, vols = w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusRegistered, models.RegistrationStatusRegistered}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusAssigned}, vols)

	pending, err = overrides.ListPending(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOverrideServiceResubmitAfterApprovalCommits(t *testing.T) {
	w := overrideWorld()
	registration := w.service()
	ctx := context.Background()

	req := shortBatch()
	req.RequestAdminOverride = true
	_, err := registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	_, err = w.overrides().Approve(ctx, "s1", "f1", "admin-1")
	require.NoError(t, err)

	req.RequestAdminOverride = false
	result, err := registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, result.Outcome)
	assert.Empty(t, result.Conflicts)
	assert.False(t, result.Hours.Met)
	assert.Equal(t, 2, result.Commit.RegisteredCount)
	assert.Equal(t, 1, result.Commit.VolunteerCount)
	assert.Zero(t, result.Commit.FailedCount)
	for _, item := range result.Commit.Items {
		assert.NotEqual(t, dto.ItemStatusFailed, item.Status)
	}

	regs, vols := w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusRegistered, models.RegistrationStatusRegistered}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusAssigned}, vols)
	assert.Equal(t, models.FamilyStatusApproved, w.statuses[statusKey("f1", "s1")].Status)

	req.Registrations = []dto.RegistrationItem{registrationItem("music", "c1")}
	req.VolunteerAssignments = nil
	result, err = registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	require.Equal(t, OutcomeConflicts, result.Outcome)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictChild, result.Conflicts[0].Type)
}

func TestOverrideServiceDenyReleasesHeldSeats(t *testing.T) {
	w := overrideWorld()
	w.schedules["art"].MaxStudents = 1
	w.addFamily("f2", "g2", "c3")
	registration := w.service()
	ctx := context.Background()

	_, err := registration.Submit(ctx, "g1", dto.BatchRegistrationRequest{
		SessionID:            "s1",
		Registrations:        []dto.RegistrationItem{registrationItem("art", "c1")},
		RequestAdminOverride: true,
	})
	require.NoError(t, err)

	status, err := w.overrides().Deny(ctx, "s1", "f1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.FamilyStatusDenied, status.Status)
	regs, _ := w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusCancelled}, regs)

	result, err := registration.Submit(ctx, "g2", dto.BatchRegistrationRequest{
		SessionID:            "s1",
		Registrations:        []dto.RegistrationItem{registrationItem("art", "c3")},
		VolunteerAssignments: []dto.VolunteerItem{helperItem("art", "g2")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, result.Outcome)
	assert.Empty(t, result.Conflicts)
	regs, vols := w.familyRows("f2")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusRegistered}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusAssigned}, vols)

	_, err = w.overrides().Approve(ctx, "s1", "f1", "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestOverrideServiceDeniedFamilyMayRequestAgain(t *testing.T) {
	w := overrideWorld()
	registration := w.service()
	ctx := context.Background()

	req := shortBatch()
	req.RequestAdminOverride = true
	_, err := registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	_, err = w.overrides().Deny(ctx, "s1", "f1", "admin-1")
	require.NoError(t, err)
	regs, vols := w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationStatusCancelled, models.RegistrationStatusCancelled}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusCancelled}, vols)

	req.RequestAdminOverride = false
	result, err := registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHoursUnmet, result.Outcome)
	assert.Empty(t, result.Conflicts)

	req.RequestAdminOverride = true
	result, err = registration.Submit(ctx, "g1", req)
	require.NoError(t, err)
	require.Equal(t, OutcomeOverrideRequested, result.Outcome)
	assert.Empty(t, result.Conflicts)
	assert.Zero(t, result.Commit.FailedCount)
	assert.Equal(t, models.FamilyStatusAdminOverride, w.statuses[statusKey("f1", "s1")].Status)

	regs, vols = w.familyRows("f1")
	assert.Equal(t, []models.RegistrationStatus{
		models.RegistrationStatusCancelled, models.RegistrationStatusCancelled,
		models.RegistrationStatusPending, models.RegistrationStatusPending,
	}, regs)
	assert.Equal(t, []models.AssignmentStatus{models.AssignmentStatusCancelled, models.AssignmentStatusPending}, vols)
}

func TestOverrideServiceMissingRequest(t *testing.T) {
	w := baseWorld()
	overrides := w.overrides()

	_, err := overrides.Approve(context.Background(), "s1", "f1", "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = overrides.ListPending(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestOverrideServiceListPendingNeverNil(t *testing.T) {
	overrides := baseWorld().overrides()

	pending, err := overrides.ListPending(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotNil(t, pending)
}
