package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coop-registration-api/internal/models"
	"github.com/noah-isme/coop-registration-api/pkg/database"
)

// coopWorld is an in-memory stand-in for the registration tables. Every method takes the lock,
// so conditional inserts behave atomically like their SQL counterparts.
type coopWorld struct {
	mu            sync.Mutex
	sessions      map[string]*models.Session
	families      map[string]*models.Family
	guardians     map[string]*models.Guardian
	children      map[string]*models.Child
	schedules     map[string]*models.ScheduleDetail
	jobs          map[string]*models.VolunteerJob
	teaching      map[string][]models.Period
	statuses      map[string]*models.FamilyRegistrationStatus
	registrations []models.ClassRegistration
	assignments   []models.VolunteerAssignment
	insertErrs    map[string]error
	feeErr        error
	feeCalls      int
	txCalls       int
}

func newCoopWorld() *coopWorld {
	return &coopWorld{
		sessions:   map[string]*models.Session{},
		families:   map[string]*models.Family{},
		guardians:  map[string]*models.Guardian{},
		children:   map[string]*models.Child{},
		schedules:  map[string]*models.ScheduleDetail{},
		jobs:       map[string]*models.VolunteerJob{},
		teaching:   map[string][]models.Period{},
		statuses:   map[string]*models.FamilyRegistrationStatus{},
		insertErrs: map[string]error{},
	}
}

var worldNow = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

func (w *coopWorld) addSession(id string) *models.Session {
	session := &models.Session{
		ID:                id,
		Name:              "Fall",
		RegistrationStart: worldNow.AddDate(0, 0, -3),
		RegistrationEnd:   worldNow.AddDate(0, 0, 10),
		ScheduleStatus:    models.ScheduleStatusPublished,
	}
	w.sessions[id] = session
	return session
}

func (w *coopWorld) addFamily(familyID, guardianID string, childIDs ...string) {
	w.families[familyID] = &models.Family{ID: familyID, Name: "Family " + familyID}
	w.guardians[guardianID] = &models.Guardian{ID: guardianID, FamilyID: familyID, FullName: "Guardian " + guardianID}
	for _, id := range childIDs {
		w.children[id] = &models.Child{ID: id, FamilyID: familyID, FullName: "Child " + id}
	}
}

func (w *coopWorld) addSchedule(id, sessionID, classroom string, period models.Period, maxStudents, helpers int) {
	w.schedules[id] = &models.ScheduleDetail{
		Schedule: models.Schedule{
			ID:                     id,
			SessionID:              sessionID,
			ClassTeachingRequestID: "class-" + id,
			ClassroomID:            classroom,
			Period:                 period,
			Status:                 models.ScheduleStatusPublished,
		},
		ClassName:     "Class " + id,
		MaxStudents:   maxStudents,
		HelpersNeeded: helpers,
	}
}

func (w *coopWorld) seedRegistrations(scheduleID string, count int) {
	for i := 0; i < count; i++ {
		w.registrations = append(w.registrations, models.ClassRegistration{
			ScheduleID: scheduleID,
			ChildID:    "seed-child",
			SessionID:  w.schedules[scheduleID].SessionID,
			Status:     models.RegistrationStatusRegistered,
		})
	}
}

func (w *coopWorld) registrationsFor(scheduleID string) []models.ClassRegistration {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.ClassRegistration
	for _, reg := range w.registrations {
		if reg.ScheduleID == scheduleID {
			out = append(out, reg)
		}
	}
	return out
}

// familyRows reports the family's registration and assignment statuses in insertion order.
func (w *coopWorld) familyRows(familyID string) ([]models.RegistrationStatus, []models.AssignmentStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var regs []models.RegistrationStatus
	for _, reg := range w.registrations {
		if reg.FamilyID == familyID {
			regs = append(regs, reg.Status)
		}
	}
	var vols []models.AssignmentStatus
	for _, a := range w.assignments {
		if a.FamilyID == familyID {
			vols = append(vols, a.Status)
		}
	}
	return regs, vols
}

func (w *coopWorld) overrides() *OverrideService {
	svc := NewOverrideService(OverrideDeps{
		Statuses:      worldStatuses{w},
		Registrations: worldRegistrations{w},
		Assignments:   worldVolunteers{w},
		Sessions:      worldSessions{w},
		Fees:          worldFees{w},
		Tx:            worldTx{w},
	}, nil)
	svc.now = func() time.Time { return worldNow }
	return svc
}

func (w *coopWorld) service() *RegistrationService {
	svc := NewRegistrationService(RegistrationDeps{
		Sessions:      worldSessions{w},
		Families:      worldFamilies{w},
		Schedules:     worldSchedules{w},
		Registrations: worldRegistrations{w},
		Volunteers:    worldVolunteers{w},
		Teachers:      worldTeachers{w},
		Statuses:      worldStatuses{w},
		Fees:          worldFees{w},
		Tx:            worldTx{w},
	}, nil, nil)
	svc.now = func() time.Time { return worldNow }
	return svc
}

type worldTx struct{ w *coopWorld }

func (t worldTx) WithinTx(ctx context.Context, fn database.TxFunc) error {
	t.w.mu.Lock()
	t.w.txCalls++
	t.w.mu.Unlock()
	return fn(ctx, nil)
}

type worldSessions struct{ w *coopWorld }

func (s worldSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if session, ok := s.w.sessions[id]; ok {
		cp := *session
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type worldFamilies struct{ w *coopWorld }

func (f worldFamilies) FindByID(ctx context.Context, id string) (*models.Family, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if family, ok := f.w.families[id]; ok {
		return family, nil
	}
	return nil, sql.ErrNoRows
}

func (f worldFamilies) FindGuardian(ctx context.Context, id string) (*models.Guardian, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if guardian, ok := f.w.guardians[id]; ok {
		return guardian, nil
	}
	return nil, sql.ErrNoRows
}

func (f worldFamilies) FindChild(ctx context.Context, id string) (*models.Child, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if child, ok := f.w.children[id]; ok {
		return child, nil
	}
	return nil, sql.ErrNoRows
}

type worldSchedules struct{ w *coopWorld }

func (s worldSchedules) FindDetail(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if detail, ok := s.w.schedules[id]; ok {
		cp := *detail
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s worldSchedules) LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduleDetail, error) {
	return s.FindDetail(ctx, id)
}

type worldRegistrations struct{ w *coopWorld }

func (r worldRegistrations) countLocked(scheduleID string) int {
	count := 0
	for _, reg := range r.w.registrations {
		if reg.ScheduleID == scheduleID && reg.Status != models.RegistrationStatusCancelled {
			count++
		}
	}
	return count
}

func (r worldRegistrations) CountActiveBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return r.countLocked(scheduleID), nil
}

func (r worldRegistrations) FindChildPeriodRegistration(ctx context.Context, exec sqlx.ExtContext, sessionID, childID string, period models.Period) (*models.ClassRegistration, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, reg := range r.w.registrations {
		schedule := r.w.schedules[reg.ScheduleID]
		if reg.SessionID == sessionID && reg.ChildID == childID && schedule != nil && schedule.Period == period && reg.Status != models.RegistrationStatusCancelled {
			cp := reg
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r worldRegistrations) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for i := range r.w.registrations {
		if r.w.registrations[i].ID == id {
			r.w.registrations[i].Status = status
		}
	}
	return nil
}

func (r worldRegistrations) UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.RegistrationStatus) (int64, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var affected int64
	for i := range r.w.registrations {
		reg := &r.w.registrations[i]
		if reg.FamilyID == familyID && reg.SessionID == sessionID && reg.Status == models.RegistrationStatusPending {
			reg.Status = status
			affected++
		}
	}
	return affected, nil
}

func (r worldRegistrations) LockChild(ctx context.Context, exec sqlx.ExtContext, childID string) error {
	return nil
}

func (r worldRegistrations) InsertIfCapacity(ctx context.Context, exec sqlx.ExtContext, registration *models.ClassRegistration, maxStudents int) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if err := r.w.insertErrs[registration.ScheduleID]; err != nil {
		return false, err
	}
	if r.countLocked(registration.ScheduleID) >= maxStudents {
		return false, nil
	}
	registration.ID = fmt.Sprintf("reg-%d", len(r.w.registrations)+1)
	r.w.registrations = append(r.w.registrations, *registration)
	return true, nil
}

type worldVolunteers struct{ w *coopWorld }

func (v worldVolunteers) FindJob(ctx context.Context, id string) (*models.VolunteerJob, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	if job, ok := v.w.jobs[id]; ok {
		return job, nil
	}
	return nil, sql.ErrNoRows
}

func (v worldVolunteers) FindGuardianPeriodAssignment(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string, period models.Period) (*models.VolunteerAssignment, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	for _, a := range v.w.assignments {
		if a.SessionID == sessionID && a.GuardianID == guardianID && a.Period == period && a.Status != models.AssignmentStatusCancelled {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (v worldVolunteers) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus) error {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	for i := range v.w.assignments {
		if v.w.assignments[i].ID == id {
			v.w.assignments[i].Status = status
		}
	}
	return nil
}

func (v worldVolunteers) UpdatePendingForFamily(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, status models.AssignmentStatus) (int64, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	var affected int64
	for i := range v.w.assignments {
		a := &v.w.assignments[i]
		if a.FamilyID == familyID && a.SessionID == sessionID && a.Status == models.AssignmentStatusPending {
			a.Status = status
			affected++
		}
	}
	return affected, nil
}

func (v worldVolunteers) helpersLocked(scheduleID string) int {
	count := 0
	for _, a := range v.w.assignments {
		if a.ScheduleID != nil && *a.ScheduleID == scheduleID && a.VolunteerType == models.VolunteerTypeHelper && a.Status != models.AssignmentStatusCancelled {
			count++
		}
	}
	return count
}

func (v worldVolunteers) CountHelpers(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	return v.helpersLocked(scheduleID), nil
}

func (v worldVolunteers) LockGuardian(ctx context.Context, exec sqlx.ExtContext, guardianID string) error {
	return nil
}

func (v worldVolunteers) Insert(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment) error {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	assignment.ID = fmt.Sprintf("va-%d", len(v.w.assignments)+1)
	v.w.assignments = append(v.w.assignments, *assignment)
	return nil
}

func (v worldVolunteers) InsertHelperIfCapacity(ctx context.Context, exec sqlx.ExtContext, assignment *models.VolunteerAssignment, helpersNeeded int) (bool, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	if v.helpersLocked(*assignment.ScheduleID) >= helpersNeeded {
		return false, nil
	}
	assignment.ID = fmt.Sprintf("va-%d", len(v.w.assignments)+1)
	v.w.assignments = append(v.w.assignments, *assignment)
	return true, nil
}

func (v worldVolunteers) ListTeachingPeriods(ctx context.Context, exec sqlx.ExtContext, sessionID, guardianID string) ([]models.Period, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	return v.w.teaching[guardianID], nil
}

type worldTeachers struct{ w *coopWorld }

func (t worldTeachers) IsTeacherInSession(ctx context.Context, sessionID, guardianID string) (bool, error) {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()
	return len(t.w.teaching[guardianID]) > 0, nil
}

type worldStatuses struct{ w *coopWorld }

func statusKey(familyID, sessionID string) string { return familyID + "|" + sessionID }

func (s worldStatuses) Find(ctx context.Context, familyID, sessionID string) (*models.FamilyRegistrationStatus, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if status, ok := s.w.statuses[statusKey(familyID, sessionID)]; ok {
		cp := *status
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s worldStatuses) UpsertOverrideRequest(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID, reason string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	key := statusKey(familyID, sessionID)
	if existing, ok := s.w.statuses[key]; ok && existing.Status == models.FamilyStatusApproved {
		return nil
	}
	s.w.statuses[key] = &models.FamilyRegistrationStatus{
		FamilyID:            familyID,
		SessionID:           sessionID,
		Status:              models.FamilyStatusAdminOverride,
		AdminOverride:       true,
		AdminOverrideReason: &reason,
	}
	return nil
}

func (s worldStatuses) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	key := statusKey(familyID, sessionID)
	if existing, ok := s.w.statuses[key]; ok && existing.Status == models.FamilyStatusApproved {
		return nil
	}
	s.w.statuses[key] = &models.FamilyRegistrationStatus{
		FamilyID:                 familyID,
		SessionID:                sessionID,
		Status:                   models.FamilyStatusCompleted,
		VolunteerRequirementsMet: true,
	}
	return nil
}

func (s worldStatuses) Decide(ctx context.Context, exec sqlx.ExtContext, familyID, sessionID string, decision models.FamilyStatus, adminID string, at time.Time) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	status, ok := s.w.statuses[statusKey(familyID, sessionID)]
	if !ok || status.Status != models.FamilyStatusAdminOverride {
		return false, nil
	}
	status.Status = decision
	status.OverriddenBy = &adminID
	status.OverriddenAt = &at
	return true, nil
}

func (s worldStatuses) ListPending(ctx context.Context, sessionID string) ([]models.OverrideRequest, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var pending []models.OverrideRequest
	for _, status := range s.w.statuses {
		if status.SessionID == sessionID && status.Status == models.FamilyStatusAdminOverride {
			pending = append(pending, models.OverrideRequest{FamilyRegistrationStatus: *status, FamilyName: s.w.families[status.FamilyID].Name})
		}
	}
	return pending, nil
}

type worldFees struct{ w *coopWorld }

func (f worldFees) Recalculate(ctx context.Context, sessionID, familyID string) (*models.FamilySessionFee, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.feeCalls++
	if f.w.feeErr != nil {
		return nil, f.w.feeErr
	}
	return &models.FamilySessionFee{FamilyID: familyID, SessionID: sessionID}, nil
}

var errBoom = errors.New("boom")
