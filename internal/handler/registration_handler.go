package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/service"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
	"github.com/noah-isme/coop-registration-api/pkg/response"
)

type batchRegistrar interface {
	Preflight(ctx context.Context, guardianID string, req dto.BatchRegistrationRequest) (*dto.PreflightResponse, error)
	Submit(ctx context.Context, guardianID string, req dto.BatchRegistrationRequest) (*service.BatchResult, error)
	Status(ctx context.Context, guardianID, sessionID string) (*dto.RegistrationStatusResponse, error)
}

// RegistrationHandler exposes family registration endpoints.
type RegistrationHandler struct {
	service batchRegistrar
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Batch godoc
// @Summary Submit class registrations and volunteer assignments
// @Description 409 carries the conflict list, 400 the volunteer hour shortfall, 200 the per-item commit results.
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.BatchRegistrationRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registration/batch [post]
func (h *RegistrationHandler) Batch(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.BatchRegistrationRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), user.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeConflicts:
		response.JSON(c, http.StatusConflict, dto.ConflictResponse{
			Success:   false,
			Message:   "Some selections conflict with existing registrations",
			Conflicts: result.Conflicts,
		}, nil)
	case service.OutcomeHoursUnmet:
		response.JSON(c, http.StatusBadRequest, dto.HoursUnmetResponse{
			Success:                  false,
			Message:                  "Volunteer hour requirement not met",
			VolunteerRequirementsMet: false,
			RequiredHours:            result.Hours.RequiredHours,
			FulfilledHours:           result.Hours.FulfilledHours,
			CanRequestOverride:       true,
		}, nil)
	default:
		response.JSON(c, http.StatusOK, result.Commit, nil)
	}
}

// Preflight godoc
// @Summary Validate a batch without committing it
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.BatchRegistrationRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /registration/preflight [post]
func (h *RegistrationHandler) Preflight(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.BatchRegistrationRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	result, err := h.service.Preflight(c.Request.Context(), user.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Registration and override state of the caller's family
// @Tags Registration
// @Produce json
// @Param sessionId query string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /registration/status [get]
func (h *RegistrationHandler) Status(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sessionId is required"))
		return
	}
	result, err := h.service.Status(c.Request.Context(), user.UserID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
