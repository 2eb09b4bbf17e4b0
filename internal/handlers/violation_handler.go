package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/services"
)

// ViolationHandler handles violation lifecycle requests.
type ViolationHandler struct {
	service services.ViolationService
}

// NewViolationHandler creates a new ViolationHandler instance.
func NewViolationHandler(service services.ViolationService) *ViolationHandler {
	return &ViolationHandler{service: service}
}

// CreateViolationRequest represents the body of POST /properties/:id/violations.
type CreateViolationRequest struct {
	EvidenceRef  *string `json:"evidence_ref" binding:"omitempty,max=500"`
	Category     string  `json:"category" binding:"required,oneof=landscaping trash parking structural noise pets signage other"`
	Severity     string  `json:"severity" binding:"required,oneof=low medium high"`
	Description  string  `json:"description" binding:"required,max=2000"`
	RuleCited    string  `json:"rule_cited" binding:"max=500"`
	Remediation  string  `json:"remediation" binding:"max=2000"`
	DeadlineDays int     `json:"deadline_days" binding:"omitempty,min=1,max=365"`
	SendNotice   bool    `json:"send_notice"`
}

// EditViolationRequest represents the body of PUT /violations/:id. Omitted
// fields are left unchanged.
type EditViolationRequest struct {
	Category     *string `json:"category" binding:"omitempty,oneof=landscaping trash parking structural noise pets signage other"`
	Severity     *string `json:"severity" binding:"omitempty,oneof=low medium high"`
	Description  *string `json:"description" binding:"omitempty,min=1,max=2000"`
	RuleCited    *string `json:"rule_cited" binding:"omitempty,max=500"`
	Remediation  *string `json:"remediation" binding:"omitempty,max=2000"`
	DeadlineDays *int    `json:"deadline_days" binding:"omitempty,min=1,max=365"`
}

// FlagFixedRequest represents the optional body of the flag-fixed endpoint.
type FlagFixedRequest struct {
	EvidenceRef *string `json:"evidence_ref" binding:"omitempty,max=500"`
}

// DraftRequest represents the body of POST /properties/:id/violations/draft.
type DraftRequest struct {
	EvidenceRef string `json:"evidence_ref" binding:"required,max=500"`
	Hint        string `json:"hint" binding:"max=500"`
}

// ViolationListResponse represents a list of violations.
type ViolationListResponse struct {
	Violations []models.Violation `json:"violations"`
	Count      int                `json:"count"`
}

// TimelineResponse represents the community violation timeline.
type TimelineResponse struct {
	Entries []models.TimelineEntry `json:"entries"`
	Count   int                    `json:"count"`
}

// Create handles POST /api/v1/properties/:id/violations.
func (h *ViolationHandler) Create(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateViolationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.Create(c.Request.Context(), services.CreateViolationInput{
		EvidenceRef:  req.EvidenceRef,
		Category:     models.Category(req.Category),
		Severity:     models.Severity(req.Severity),
		Description:  req.Description,
		RuleCited:    req.RuleCited,
		Remediation:  req.Remediation,
		DeadlineDays: req.DeadlineDays,
		PropertyID:   propertyID,
		SendNotice:   req.SendNotice,
	})
	if err != nil {
		respondError(c, err, "Failed to create violation")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListByProperty handles GET /api/v1/properties/:id/violations.
func (h *ViolationHandler) ListByProperty(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	list, err := h.service.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, err, "Failed to list violations")
		return
	}

	c.JSON(http.StatusOK, ViolationListResponse{Violations: list, Count: len(list)})
}

// FlagFixed handles PATCH /api/v1/properties/:id/violations/:violationId/flag-fixed.
// The body is optional.
func (h *ViolationHandler) FlagFixed(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	violationID, ok := pathID(c, "violationId")
	if !ok {
		return
	}

	var req FlagFixedRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.service.FlagFixed(c.Request.Context(), violationID, propertyID, req.EvidenceRef)
	if err != nil {
		respondError(c, err, "Failed to flag violation fixed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/v1/violations/:id.
func (h *ViolationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	v, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to load violation")
		return
	}

	c.JSON(http.StatusOK, v)
}

// Resolve handles PATCH /api/v1/violations/:id/resolve.
func (h *ViolationHandler) Resolve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.ConfirmResolved(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to resolve violation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Reopen handles PATCH /api/v1/violations/:id/reopen.
func (h *ViolationHandler) Reopen(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.RejectFix(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to reopen violation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Edit handles PUT /api/v1/violations/:id.
func (h *ViolationHandler) Edit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EditViolationRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.EditViolationInput{
		Description:  req.Description,
		RuleCited:    req.RuleCited,
		Remediation:  req.Remediation,
		DeadlineDays: req.DeadlineDays,
	}
	if req.Category != nil {
		category := models.Category(*req.Category)
		in.Category = &category
	}
	if req.Severity != nil {
		severity := models.Severity(*req.Severity)
		in.Severity = &severity
	}

	result, err := h.service.Edit(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err, "Failed to edit violation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// SendNotice handles POST /api/v1/violations/:id/notice. A failed delivery is
// reported in the body, not as an error status.
func (h *ViolationHandler) SendNotice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.SendNotice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to send notice")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Timeline handles GET /api/v1/violations/timeline.
func (h *ViolationHandler) Timeline(c *gin.Context) {
	entries, err := h.service.Timeline(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load violation timeline")
		return
	}

	c.JSON(http.StatusOK, TimelineResponse{Entries: entries, Count: len(entries)})
}

// Draft handles POST /api/v1/properties/:id/violations/draft. Nothing is saved.
func (h *ViolationHandler) Draft(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req DraftRequest
	if !bindJSON(c, &req) {
		return
	}

	draft, err := h.service.Draft(c.Request.Context(), propertyID, req.EvidenceRef, req.Hint)
	if err != nil {
		respondError(c, err, "Failed to draft violation")
		return
	}

	c.JSON(http.StatusOK, draft)
}
