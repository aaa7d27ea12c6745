package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-registration-api/internal/models"
	"github.com/noah-isme/coop-registration-api/internal/service"
	"github.com/noah-isme/coop-registration-api/pkg/response"
)

type overrideReviewer interface {
	ListPending(ctx context.Context, sessionID string) ([]models.OverrideRequest, error)
	Approve(ctx context.Context, sessionID, familyID, adminID string) (*models.FamilyRegistrationStatus, error)
	Deny(ctx context.Context, sessionID, familyID, adminID string) (*models.FamilyRegistrationStatus, error)
}

// OverrideHandler exposes the admin review of volunteer-hour overrides.
type OverrideHandler struct {
	service overrideReviewer
}

// NewOverrideHandler constructs the handler.
func NewOverrideHandler(svc *service.OverrideService) *OverrideHandler {
	return &OverrideHandler{service: svc}
}

// List godoc
// @Summary Override requests awaiting review
// @Tags Overrides
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/overrides [get]
func (h *OverrideHandler) List(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Approve godoc
// @Summary Approve a family's override request
// @Tags Overrides
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/overrides/{familyId}/approve [post]
func (h *OverrideHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Deny godoc
// @Summary Deny a family's override request
// @Tags Overrides
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/overrides/{familyId}/deny [post]
func (h *OverrideHandler) Deny(c *gin.Context) {
	h.decide(c, h.service.Deny)
}

func (h *OverrideHandler) decide(c *gin.Context, decide func(ctx context.Context, sessionID, familyID, adminID string) (*models.FamilyRegistrationStatus, error)) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := decide(c.Request.Context(), c.Param("sessionId"), c.Param("familyId"), user.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
