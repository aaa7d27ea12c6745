package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type fakeLiveSchedule struct {
	applied *dto.ApplyDraftResponse
	status  *dto.ScheduleStatusResponse
	err     error

	draftID string
	target  models.ScheduleStatus
}

func (f *fakeLiveSchedule) ApplyDraft(_ context.Context, _, draftID string) (*dto.ApplyDraftResponse, error) {
	f.draftID = draftID
	return f.applied, f.err
}

func (f *fakeLiveSchedule) Transition(_ context.Context, _ string, req dto.UpdateScheduleStatusRequest) (*dto.ScheduleStatusResponse, error) {
	f.target = req.Status
	return f.status, f.err
}

func scheduleRouter(fake *fakeLiveSchedule) http.Handler {
	h := &ScheduleHandler{service: fake}
	r := newTestRouter()
	r.POST("/admin/sessions/:sessionId/drafts/:draftId/apply", h.Apply)
	r.POST("/admin/sessions/:sessionId/schedule/status", h.UpdateStatus)
	return r
}

func TestScheduleApply(t *testing.T) {
	fake := &fakeLiveSchedule{applied: &dto.ApplyDraftResponse{SessionID: "s1", DraftID: "d1", SchedulesWritten: 3, Status: models.ScheduleStatusDraft}}

	w := performRequest(scheduleRouter(fake), newRequest(http.MethodPost, "/admin/sessions/s1/drafts/d1/apply", "", models.RoleAdmin))

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.ApplyDraftResponse
	decodeData(t, w, &body)
	assert.Equal(t, 3, body.SchedulesWritten)
	assert.Equal(t, "d1", fake.draftID)
}

func TestScheduleUpdateStatus(t *testing.T) {
	t.Run("publishes", func(t *testing.T) {
		fake := &fakeLiveSchedule{status: &dto.ScheduleStatusResponse{SessionID: "s1", Previous: models.ScheduleStatusSubmitted, Status: models.ScheduleStatusPublished}}
		w := performRequest(scheduleRouter(fake), newRequest(http.MethodPost, "/admin/sessions/s1/schedule/status", `{"status":"published"}`, models.RoleAdmin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ScheduleStatusPublished, fake.target)
	})

	t.Run("invalid transition", func(t *testing.T) {
		fake := &fakeLiveSchedule{err: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move from published to draft")}
		w := performRequest(scheduleRouter(fake), newRequest(http.MethodPost, "/admin/sessions/s1/schedule/status", `{"status":"draft"}`, models.RoleAdmin))
		require.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	})
}
