package handler

import (
	"net/http"

	"followup_backend/internal/followups/service"
	"followup_backend/internal/followups/transport"
	"followup_backend/platform/apperr"
	"followup_backend/platform/httpkit"
	"followup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid follow-up id"
)

// Handler handles HTTP requests for follow-ups
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new follow-ups handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the follow-up routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/outcomes", h.Outcomes)
	rg.GET("/stats", h.Stats)
	rg.POST("/bulk-delete", h.BulkDelete)

	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/chain", h.Chain)
	rg.PATCH("/:id", h.Reschedule)
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/archive", h.Archive)
	rg.POST("/:id/restore", h.Restore)
	rg.DELETE("/:id", h.Purge)
}

// List handles GET /api/v1/followups
func (h *Handler) List(c *gin.Context) {
	var req transport.ListFollowUpsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.List(c.Request.Context(), identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Stats handles GET /api/v1/followups/stats
func (h *Handler) Stats(c *gin.Context) {
	var req transport.ListFollowUpsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Stats(c.Request.Context(), identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Outcomes handles GET /api/v1/followups/outcomes
func (h *Handler) Outcomes(c *gin.Context) {
	httpkit.OK(c, h.svc.Outcomes())
}

// Create handles POST /api/v1/followups
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateFollowUpRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetByID handles GET /api/v1/followups/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Chain handles GET /api/v1/followups/:id/chain
func (h *Handler) Chain(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Chain(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reschedule handles PATCH /api/v1/followups/:id
func (h *Handler) Reschedule(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.RescheduleFollowUpRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Reschedule(c.Request.Context(), id, identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Start handles POST /api/v1/followups/:id/start
func (h *Handler) Start(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Start(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Complete handles POST /api/v1/followups/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	var req transport.CompleteFollowUpRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Complete(c.Request.Context(), id, identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Cancel handles POST /api/v1/followups/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Cancel(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Archive handles POST /api/v1/followups/:id/archive
func (h *Handler) Archive(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Archive(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())) {
		return
	}
	httpkit.OK(c, gin.H{"id": id, "archived": true})
}

// Restore handles POST /api/v1/followups/:id/restore
func (h *Handler) Restore(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.svc.Restore(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Purge handles DELETE /api/v1/followups/:id
func (h *Handler) Purge(c *gin.Context) {
	id, identity, ok := h.target(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Purge(c.Request.Context(), id, identity.UserID(), identity.IsAdmin())) {
		return
	}
	httpkit.OK(c, gin.H{"id": id, "purged": true})
}

// BulkDelete handles POST /api/v1/followups/bulk-delete
func (h *Handler) BulkDelete(c *gin.Context) {
	var req transport.BulkDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.BulkDelete(c.Request.Context(), identity.UserID(), identity.IsAdmin(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// target parses the :id path parameter and the caller's identity.
func (h *Handler) target(c *gin.Context) (uuid.UUID, httpkit.Identity, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.KindValidation, msgInvalidID)
		return uuid.Nil, nil, false
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, nil, false
	}
	return id, identity, true
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.KindValidation, msgInvalidRequest)
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, apperr.KindValidation, msgInvalidRequest)
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) validate(c *gin.Context, req any) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgInvalidRequest).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}
