package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type familyReader interface {
	FindByID(ctx context.Context, id string) (*models.Family, error)
	FindGuardian(ctx context.Context, id string) (*models.Guardian, error)
	FindChild(ctx context.Context, id string) (*models.Child, error)
}

type scheduleLocker interface {
	FindDetail(ctx context.Context, id string) (*models.ScheduleDetail, error)
	LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduleDetail, error)
}

type registrationStore interface {
	CountActiveBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error)
	FindChildPeriodRegistration(ctx context.Context, exec sqlx.ExtContext, sessionID, childID string, period models.Period) (*models.ClassRegistration, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus) error
	LockChild(ctx context.Context, exec sqlx.ExtContext, childID string) error
	InsertIfCapacity(ctx context.Context, exec sqlx.ExtContext, registration *models.ClassRegistration, maxStudents int) (bool, error)
}

type volunteerStore interface {
	FindJob(ctx context.Context, id string) (*models.VolunteerJob, error)
	FindGuardianPeriodAssignment(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string, period models.Period) (*models.VolunteerAssignment, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus) error
	CountHelpers(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error)
	LockGuardian(ctx context.Context, exec sqlx.ExtContext, guardianID string) error
	Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment) error
	InsertHelperIfCapacity(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment, helpersNeeded int) (bool, error)
	ListTeachingPeriods(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string) ([]models.Period, error)
}

type sessionTeacherChecker interface {
	IsTeacherInSession(ctx context.Context, sessionID, guardianID string) (bool, error)
}

type registrationStatusStore interface {
	Find(ctx context.Context, familyID, sessionID string) (*models.FamilyRegistrationStatus, error)
	UpsertOverrideRequest(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID, reason string) error
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string) error
}

type feeRecalculator interface {
	Recalculate(ctx context.Context, sessionID, familyID string) (*models.FamilySessionFee, error)
}

// RegistrationOutcome names the result path taken by a batch submission.
type RegistrationOutcome string

const (
	OutcomeConflicts         RegistrationOutcome = "conflicts"
	OutcomeHoursUnmet        RegistrationOutcome = "hours_unmet"
	OutcomeOverrideRequested RegistrationOutcome = "override_requested"
	OutcomeCommitted         RegistrationOutcome = "committed"
)

// BatchResult is the outcome of a batch submission. Commit is set for the two committing paths.
type BatchResult struct {
	Outcome   RegistrationOutcome
	Conflicts []models.RegistrationConflict
	Hours     models.VolunteerHours
	Commit    *dto.BatchRegistrationResponse
}

// RegistrationDeps groups the collaborators of RegistrationService.
type RegistrationDeps struct {
	Sessions      sessionReader
	Families      familyReader
	Schedules     scheduleLocker
	Registrations registrationStore
	Volunteers    volunteerStore
	Teachers      sessionTeacherChecker
	Statuses      registrationStatusStore
	Fees          feeRecalculator
	Tx            txRunner
	Metrics       *MetricsService
}

// RegistrationService validates and commits family batch registrations.
type RegistrationService struct {
	sessions      sessionReader
	families      familyReader
	schedules     scheduleLocker
	registrations registrationStore
	volunteers    volunteerStore
	teachers      sessionTeacherChecker
	statuses      registrationStatusStore
	fees          feeRecalculator
	tx            txRunner
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationDeps, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		sessions:      deps.Sessions,
		families:      deps.Families,
		schedules:     deps.Schedules,
		registrations: deps.Registrations,
		volunteers:    deps.Volunteers,
		teachers:      deps.Teachers,
		statuses:      deps.Statuses,
		fees:          deps.Fees,
		tx:            deps.Tx,
		metrics:       deps.Metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

type plannedRegistration struct {
	item     dto.RegistrationItem
	child    *models.Child
	schedule *models.ScheduleDetail
}

type plannedVolunteer struct {
	item     dto.VolunteerItem
	guardian *models.Guardian
	period   models.Period
	schedule *models.ScheduleDetail
	job      *models.VolunteerJob
}

type batchPlan struct {
	session       *models.Session
	guardian      *models.Guardian
	family        *models.Family
	registrations []plannedRegistration
	volunteers    []plannedVolunteer
}

type batchEvaluation struct {
	conflicts []models.RegistrationConflict
	hours     models.VolunteerHours
	grant     bool
}

// Preflight runs every validation step without committing.
func (s *RegistrationService) Preflight(ctx context.Context, guardianID string, req dto.BatchRegistrationRequest) (*dto.PreflightResponse, error) {
	plan, err := s.prepare(ctx, guardianID, req)
	if err != nil {
		return nil, err
	}
	eval, err := s.evaluate(ctx, plan)
	if err != nil {
		return nil, err
	}
	clean := len(eval.conflicts) == 0
	return &dto.PreflightResponse{
		Conflicts:                eval.conflicts,
		RequiredHours:            eval.hours.RequiredHours,
		FulfilledHours:           eval.hours.FulfilledHours,
		VolunteerRequirementsMet: eval.hours.Met,
		HasApprovedOverride:      eval.grant,
		CanCommit:                clean && (eval.hours.Met || eval.grant),
		CanRequestOverride:       clean && !eval.hours.Met && !eval.grant,
	}, nil
}

// Submit validates the batch and, depending on the result path, commits it.
func (s *RegistrationService) Submit(ctx context.Context, guardianID string, req dto.BatchRegistrationRequest) (*BatchResult, error) {
	plan, err := s.prepare(ctx, guardianID, req)
	if err != nil {
		return nil, err
	}
	eval, err := s.evaluate(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Conflicts: eval.conflicts, Hours: eval.hours}
	switch {
	case len(eval.conflicts) > 0:
		result.Outcome = OutcomeConflicts
	case !eval.hours.Met && !eval.grant && !req.RequestAdminOverride:
		result.Outcome = OutcomeHoursUnmet
	case !eval.hours.Met && !eval.grant:
		result.Outcome = OutcomeOverrideRequested
		result.Commit, err = s.commitWithOverride(ctx, plan, eval.hours)
	default:
		result.Outcome = OutcomeCommitted
		result.Commit = s.commit(ctx, plan, eval)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRegistrationOutcome(result.Outcome)
	s.logger.Info("batch registration evaluated",
		zap.String("session_id", plan.session.ID),
		zap.String("family_id", plan.family.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("required_hours", eval.hours.RequiredHours),
		zap.Int("fulfilled_hours", eval.hours.FulfilledHours))
	return result, nil
}

// Status returns the caller's family registration state for a session.
func (s *RegistrationService) Status(ctx context.Context, guardianID, sessionID string) (*dto.RegistrationStatusResponse, error) {
	_, family, err := s.resolveFamily(ctx, guardianID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	resp := &dto.RegistrationStatusResponse{SessionID: sessionID, FamilyID: family.ID, Status: models.FamilyStatusInProgress}
	status, err := s.statuses.Find(ctx, family.ID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resp, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration status")
	}
	resp.Status = status.Status
	resp.VolunteerRequirementsMet = status.VolunteerRequirementsMet
	resp.AdminOverride = status.AdminOverride
	resp.AdminOverrideReason = status.AdminOverrideReason
	return resp, nil
}

// prepare loads and checks every referenced record. Input and authorization problems fail fast.
func (s *RegistrationService) prepare(ctx context.Context, guardianID string, req dto.BatchRegistrationRequest) (*batchPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if len(req.Registrations) == 0 && len(req.VolunteerAssignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch has no registrations or volunteer assignments")
	}

	guardian, family, err := s.resolveFamily(ctx, guardianID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, lookupError(err, "session not found", "failed to load session")
	}
	if err := s.checkWindow(ctx, session, guardian.ID); err != nil {
		return nil, err
	}
	if session.ScheduleStatus != models.ScheduleStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrScheduleNotPublished, "the schedule for this session is not published yet")
	}

	plan := &batchPlan{session: session, guardian: guardian, family: family}
	for _, item := range req.Registrations {
		schedule, err := s.publishedSchedule(ctx, session.ID, item.ScheduleID)
		if err != nil {
			return nil, err
		}
		child, err := s.families.FindChild(ctx, item.ChildID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
		}
		if child == nil || child.FamilyID != family.ID {
			return nil, appErrors.Clone(appErrors.ErrChildNotInFamily, fmt.Sprintf("child %s does not belong to this family", item.ChildID))
		}
		plan.registrations = append(plan.registrations, plannedRegistration{item: item, child: child, schedule: schedule})
	}

	for _, item := range req.VolunteerAssignments {
		planned, err := s.planVolunteer(ctx, session.ID, family.ID, item)
		if err != nil {
			return nil, err
		}
		plan.volunteers = append(plan.volunteers, *planned)
	}
	return plan, nil
}

func (s *RegistrationService) resolveFamily(ctx context.Context, guardianID string) (*models.Guardian, *models.Family, error) {
	guardian, err := s.families.FindGuardian(ctx, guardianID)
	if err != nil {
		return nil, nil, lookupError(err, "family not found", "failed to load guardian")
	}
	family, err := s.families.FindByID(ctx, guardian.FamilyID)
	if err != nil {
		return nil, nil, lookupError(err, "family not found", "failed to load family")
	}
	return guardian, family, nil
}

func (s *RegistrationService) checkWindow(ctx context.Context, session *models.Session, guardianID string) error {
	now := s.now()
	teaches := false
	if now.Before(session.RegistrationStart) && session.TeacherRegistrationStart != nil {
		var err error
		teaches, err = s.teachers.IsTeacherInSession(ctx, session.ID, guardianID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher access")
		}
	}
	return CheckRegistrationWindow(now, session, teaches)
}

func (s *RegistrationService) publishedSchedule(ctx context.Context, sessionID, scheduleID string) (*models.ScheduleDetail, error) {
	schedule, err := s.schedules.FindDetail(ctx, scheduleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule == nil || schedule.SessionID != sessionID || schedule.Status != models.ScheduleStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrScheduleNotPublished, fmt.Sprintf("schedule %s is not published for this session", scheduleID))
	}
	return schedule, nil
}

func (s *RegistrationService) planVolunteer(ctx context.Context, sessionID, familyID string, item dto.VolunteerItem) (*plannedVolunteer, error) {
	guardian, err := s.families.FindGuardian(ctx, item.GuardianID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	if guardian == nil || guardian.FamilyID != familyID {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("guardian %s does not belong to this family", item.GuardianID))
	}

	planned := &plannedVolunteer{item: item, guardian: guardian, period: item.Period}
	if item.VolunteerType == models.VolunteerTypeVolunteerJob {
		if item.VolunteerJobID == nil || *item.VolunteerJobID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "volunteer job assignments need a volunteerJobId")
		}
		job, err := s.volunteers.FindJob(ctx, *item.VolunteerJobID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load volunteer job")
		}
		if job == nil || job.SessionID != sessionID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("volunteer job %s is not offered in this session", *item.VolunteerJobID))
		}
		planned.job = job
		planned.period = job.Period
		return planned, nil
	}

	if item.ScheduleID == nil || *item.ScheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s assignments need a scheduleId", item.VolunteerType))
	}
	schedule, err := s.publishedSchedule(ctx, sessionID, *item.ScheduleID)
	if err != nil {
		return nil, err
	}
	planned.schedule = schedule
	planned.period = schedule.Period
	return planned, nil
}

// evaluate collects every conflict against committed data and earlier batch items, then computes hours.
func (s *RegistrationService) evaluate(ctx context.Context, plan *batchPlan) (*batchEvaluation, error) {
	eval := &batchEvaluation{conflicts: []models.RegistrationConflict{}}
	sessionID := plan.session.ID

	seats := make(map[string]int)
	childSlots := make(map[string]struct{})
	registrationPeriods := make([]models.Period, 0, len(plan.registrations))
	for _, reg := range plan.registrations {
		schedule := reg.schedule
		period := schedule.Period
		registrationPeriods = append(registrationPeriods, period)

		slot := reg.child.ID + "|" + string(period)
		clash, held := false, false
		if _, booked := childSlots[slot]; booked {
			clash = true
		} else {
			existing, err := s.registrations.FindChildPeriodRegistration(ctx, nil, sessionID, reg.child.ID, period)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check child schedule")
			}
			held = holdsRegistration(existing, plan.family.ID, schedule.ID)
			clash = existing != nil && !held
		}
		childSlots[slot] = struct{}{}

		// A seat the family already holds is counted in the active total.
		if !held {
			taken, ok := seats[schedule.ID]
			if !ok {
				count, err := s.registrations.CountActiveBySchedule(ctx, nil, schedule.ID)
				if err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
				}
				taken = count
			}
			if taken >= schedule.MaxStudents {
				eval.conflicts = append(eval.conflicts, models.RegistrationConflict{
					Type:       models.ConflictClassFull,
					Message:    fmt.Sprintf("%s is full (%d of %d seats taken)", schedule.ClassName, taken, schedule.MaxStudents),
					ScheduleID: schedule.ID,
					ChildID:    reg.child.ID,
					Period:     period,
					ClassName:  schedule.ClassName,
				})
			}
			seats[schedule.ID] = taken + 1
		}
		if clash {
			eval.conflicts = append(eval.conflicts, models.RegistrationConflict{
				Type:       models.ConflictChild,
				Message:    fmt.Sprintf("%s already has a class during %s period", reg.child.FullName, period),
				ScheduleID: schedule.ID,
				ChildID:    reg.child.ID,
				Period:     period,
				ClassName:  schedule.ClassName,
			})
		}
	}

	helpers := make(map[string]int)
	guardianSlots := make(map[string]struct{})
	assignmentPeriods := make([]models.Period, 0, len(plan.volunteers))
	for _, vol := range plan.volunteers {
		assignmentPeriods = append(assignmentPeriods, vol.period)

		slot := vol.guardian.ID + "|" + string(vol.period)
		clash, held := false, false
		if _, booked := guardianSlots[slot]; booked {
			clash = true
		} else {
			existing, err := s.volunteers.FindGuardianPeriodAssignment(ctx, nil, sessionID, vol.guardian.ID, vol.period)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check guardian schedule")
			}
			held = holdsAssignment(existing, plan.family.ID, vol.item.VolunteerType, scheduleIDOf(vol.schedule), jobIDOf(vol.job))
			clash = existing != nil && !held
		}
		guardianSlots[slot] = struct{}{}
		if clash {
			eval.conflicts = append(eval.conflicts, volunteerConflict(vol, models.ConflictGuardian,
				fmt.Sprintf("%s already volunteers during %s", vol.guardian.FullName, describePeriod(vol.period))))
		}

		if held || vol.item.VolunteerType != models.VolunteerTypeHelper || vol.schedule == nil {
			continue
		}
		booked, ok := helpers[vol.schedule.ID]
		if !ok {
			count, err := s.volunteers.CountHelpers(ctx, nil, vol.schedule.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count helpers")
			}
			booked = count
		}
		if booked >= vol.schedule.HelpersNeeded {
			eval.conflicts = append(eval.conflicts, volunteerConflict(vol, models.ConflictVolunteerFull,
				fmt.Sprintf("%s already has all %d helpers it needs", vol.schedule.ClassName, vol.schedule.HelpersNeeded)))
		}
		helpers[vol.schedule.ID] = booked + 1
	}

	teaching, err := s.volunteers.ListTeachingPeriods(ctx, nil, sessionID, plan.guardian.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching assignments")
	}
	eval.hours = ComputeVolunteerHours(registrationPeriods, assignmentPeriods, teaching)

	status, err := s.statuses.Find(ctx, plan.family.ID, sessionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration status")
	}
	eval.grant = status.HasStandingGrant()
	return eval, nil
}

func volunteerConflict(vol plannedVolunteer, kind models.ConflictType, message string) models.RegistrationConflict {
	conflict := models.RegistrationConflict{
		Type:       kind,
		Message:    message,
		GuardianID: vol.guardian.ID,
		Period:     vol.period,
	}
	if vol.schedule != nil {
		conflict.ScheduleID = vol.schedule.ID
		conflict.ClassName = vol.schedule.ClassName
	}
	if vol.job != nil {
		conflict.VolunteerJobID = vol.job.ID
	}
	return conflict
}

func describePeriod(period models.Period) string {
	if period == models.PeriodNonPeriod {
		return "a non-period job"
	}
	return string(period) + " period"
}

// holdsRegistration reports whether existing is the family's own seat in the requested classroom.
func holdsRegistration(existing *models.ClassRegistration, familyID, scheduleID string) bool {
	return existing != nil && existing.FamilyID == familyID && existing.ScheduleID == scheduleID
}

// holdsAssignment reports whether existing is the family's own booking of the same volunteer slot.
func holdsAssignment(existing *models.VolunteerAssignment, familyID string, kind models.VolunteerType, scheduleID, jobID string) bool {
	if existing == nil || existing.FamilyID != familyID || existing.VolunteerType != kind {
		return false
	}
	return stringValue(existing.ScheduleID) == scheduleID && stringValue(existing.VolunteerJobID) == jobID
}

func scheduleIDOf(schedule *models.ScheduleDetail) string {
	if schedule == nil {
		return ""
	}
	return schedule.ID
}

func jobIDOf(job *models.VolunteerJob) string {
	if job == nil {
		return ""
	}
	return job.ID
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// overrideReason is stored on the status row for admin review.
func overrideReason(hours models.VolunteerHours) string {
	return fmt.Sprintf("Volunteer hours not met: fulfilled %d of %d required", hours.FulfilledHours, hours.RequiredHours)
}
