package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/service"
	"github.com/noah-isme/coop-registration-api/pkg/response"
)

type liveScheduleManager interface {
	ApplyDraft(ctx context.Context, sessionID, draftID string) (*dto.ApplyDraftResponse, error)
	Transition(ctx context.Context, sessionID string, req dto.UpdateScheduleStatusRequest) (*dto.ScheduleStatusResponse, error)
}

// ScheduleHandler exposes live schedule endpoints.
type ScheduleHandler struct {
	service liveScheduleManager
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Apply godoc
// @Summary Replace the live schedule with a draft
// @Tags Schedule
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param draftId path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts/{draftId}/apply [post]
func (h *ScheduleHandler) Apply(c *gin.Context) {
	result, err := h.service.ApplyDraft(c.Request.Context(), c.Param("sessionId"), c.Param("draftId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateStatus godoc
// @Summary Move the live schedule to draft, submitted or published
// @Tags Schedule
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param payload body dto.UpdateScheduleStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/schedule/status [post]
func (h *ScheduleHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateScheduleStatusRequest
	if !bindJSON(c, &req, "invalid schedule status payload") {
		return
	}
	result, err := h.service.Transition(c.Request.Context(), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
