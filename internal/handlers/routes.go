package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every API handler.
type Handlers struct {
	Properties *PropertyHandler
	Violations *ViolationHandler
	Bills      *BillHandler
}

// RegisterRoutes mounts the API v1 routes on rg.
func RegisterRoutes(rg *gin.RouterGroup, h Handlers) {
	properties := rg.Group("/properties")
	{
		properties.POST("", h.Properties.Create)
		properties.GET("", h.Properties.List)
		properties.GET("/:id", h.Properties.Get)
		properties.DELETE("/:id", h.Properties.Delete)
		properties.POST("/:id/score/recalculate", h.Properties.Recalculate)

		properties.POST("/:id/violations", h.Violations.Create)
		properties.GET("/:id/violations", h.Violations.ListByProperty)
		properties.POST("/:id/violations/draft", h.Violations.Draft)
		properties.PATCH("/:id/violations/:violationId/flag-fixed", h.Violations.FlagFixed)

		properties.POST("/:id/bills/current", h.Bills.EnsureCurrent)
		properties.GET("/:id/bills", h.Bills.ListByProperty)
		properties.PATCH("/:id/bills/:billId/pay", h.Bills.PayForProperty)
	}

	violations := rg.Group("/violations")
	{
		violations.GET("/timeline", h.Violations.Timeline)
		violations.GET("/:id", h.Violations.Get)
		violations.PUT("/:id", h.Violations.Edit)
		violations.PATCH("/:id/resolve", h.Violations.Resolve)
		violations.PATCH("/:id/reopen", h.Violations.Reopen)
		violations.POST("/:id/notice", h.Violations.SendNotice)
	}

	rg.PATCH("/bills/:id/pay", h.Bills.Pay)
	rg.GET("/finance/summary", h.Bills.FinanceSummary)
}
