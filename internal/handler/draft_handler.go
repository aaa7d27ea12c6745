package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-registration-api/internal/dto"
	"github.com/noah-isme/coop-registration-api/internal/models"
	"github.com/noah-isme/coop-registration-api/internal/service"
	"github.com/noah-isme/coop-registration-api/pkg/response"
)

type draftManager interface {
	Create(ctx context.Context, sessionID, creatorID string, req dto.CreateDraftRequest) (*models.Draft, error)
	List(ctx context.Context, sessionID, creatorID string) ([]models.DraftSummary, error)
	Open(ctx context.Context, sessionID, draftID, userID string) (*dto.DraftResponse, error)
	Current(ctx context.Context, sessionID, userID string) (*dto.DraftResponse, error)
	SaveEntries(ctx context.Context, sessionID, draftID, userID string, req dto.SaveDraftEntriesRequest) (*dto.DraftResponse, error)
	Delete(ctx context.Context, sessionID, draftID, userID string) error
}

type conflictReporter interface {
	Detect(ctx context.Context, sessionID string) (*dto.ConflictReport, error)
	Export(ctx context.Context, sessionID string) ([]byte, string, error)
}

// DraftHandler exposes draft schedule endpoints for administrators.
type DraftHandler struct {
	drafts    draftManager
	conflicts conflictReporter
}

// NewDraftHandler constructs the handler.
func NewDraftHandler(drafts *service.DraftService, conflicts *service.DraftConflictService) *DraftHandler {
	return &DraftHandler{drafts: drafts, conflicts: conflicts}
}

// Create godoc
// @Summary Create a draft schedule
// @Description Creates an empty draft owned by the caller and makes it their active draft.
// @Tags Drafts
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param payload body dto.CreateDraftRequest true "Draft payload"
// @Success 201 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateDraftRequest
	if !bindJSON(c, &req, "invalid draft payload") {
		return
	}
	draft, err := h.drafts.Create(c.Request.Context(), c.Param("sessionId"), user.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, draft)
}

// List godoc
// @Summary List drafts of a session
// @Tags Drafts
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param creatorId query string false "Only drafts of this creator"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts [get]
func (h *DraftHandler) List(c *gin.Context) {
	drafts, err := h.drafts.List(c.Request.Context(), c.Param("sessionId"), c.Query("creatorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drafts, nil)
}

// Current godoc
// @Summary Resolve the draft to show on load
// @Description Last opened draft, else the caller's active draft, else the most recently updated one.
// @Tags Drafts
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts/current [get]
func (h *DraftHandler) Current(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	draft, err := h.drafts.Current(c.Request.Context(), c.Param("sessionId"), user.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Get godoc
// @Summary Open a draft with its entries
// @Tags Drafts
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param draftId path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts/{draftId} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	draft, err := h.drafts.Open(c.Request.Context(), c.Param("sessionId"), c.Param("draftId"), user.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// SaveEntries godoc
// @Summary Replace every entry of a draft
// @Tags Drafts
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param draftId path string true "Draft ID"
// @Param payload body dto.SaveDraftEntriesRequest true "Entries"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts/{draftId}/entries [put]
func (h *DraftHandler) SaveEntries(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.SaveDraftEntriesRequest
	if !bindJSON(c, &req, "invalid draft entries") {
		return
	}
	draft, err := h.drafts.SaveEntries(c.Request.Context(), c.Param("sessionId"), c.Param("draftId"), user.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Delete godoc
// @Summary Delete a draft
// @Tags Drafts
// @Param sessionId path string true "Session ID"
// @Param draftId path string true "Draft ID"
// @Success 204
// @Router /admin/sessions/{sessionId}/drafts/{draftId} [delete]
func (h *DraftHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.drafts.Delete(c.Request.Context(), c.Param("sessionId"), c.Param("draftId"), user.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary Slots claimed by more than one draft entry
// @Tags Drafts
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{sessionId}/drafts/conflicts [get]
func (h *DraftHandler) Conflicts(c *gin.Context) {
	report, err := h.conflicts.Detect(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportConflicts godoc
// @Summary Download the conflict report as PDF
// @Tags Drafts
// @Produce application/pdf
// @Param sessionId path string true "Session ID"
// @Success 200 {file} file
// @Router /admin/sessions/{sessionId}/drafts/conflicts/export [get]
func (h *DraftHandler) ExportConflicts(c *gin.Context) {
	payload, filename, err := h.conflicts.Export(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", payload)
}
