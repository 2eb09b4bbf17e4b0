package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/services"
)

// BillHandler handles monthly billing requests.
type BillHandler struct {
	service services.BillingService
}

// NewBillHandler creates a new BillHandler instance.
func NewBillHandler(service services.BillingService) *BillHandler {
	return &BillHandler{service: service}
}

// BillListResponse represents a property's bills.
type BillListResponse struct {
	Bills []models.MonthlyBill `json:"bills"`
	Count int                  `json:"count"`
}

// EnsureCurrent handles POST /api/v1/properties/:id/bills/current.
func (h *BillHandler) EnsureCurrent(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.service.EnsureCurrentBill(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, err, "Failed to refresh current bill")
		return
	}

	c.JSON(http.StatusOK, bill)
}

// ListByProperty handles GET /api/v1/properties/:id/bills, newest first.
func (h *BillHandler) ListByProperty(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bills, err := h.service.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, err, "Failed to list bills")
		return
	}

	c.JSON(http.StatusOK, BillListResponse{Bills: bills, Count: len(bills)})
}

// Pay handles PATCH /api/v1/bills/:id/pay.
func (h *BillHandler) Pay(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.service.PayBill(c.Request.Context(), billID, nil)
	if err != nil {
		respondError(c, err, "Failed to pay bill")
		return
	}

	c.JSON(http.StatusOK, bill)
}

// PayForProperty handles PATCH /api/v1/properties/:id/bills/:billId/pay. The
// bill must belong to the property in the path.
func (h *BillHandler) PayForProperty(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	billID, ok := pathID(c, "billId")
	if !ok {
		return
	}

	bill, err := h.service.PayBill(c.Request.Context(), billID, &propertyID)
	if err != nil {
		respondError(c, err, "Failed to pay bill")
		return
	}

	c.JSON(http.StatusOK, bill)
}

// FinanceSummary handles GET /api/v1/finance/summary.
func (h *BillHandler) FinanceSummary(c *gin.Context) {
	summary, err := h.service.FinanceSummary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build finance summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}
