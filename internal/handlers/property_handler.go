package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/middleware"
	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/services"
)

// PropertyHandler handles property registry and score requests.
type PropertyHandler struct {
	properties services.PropertyService
	scoring    services.ScoringService
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(properties services.PropertyService, scoring services.ScoringService) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		scoring:    scoring,
	}
}

// LocationRequest is a map pin in decimal degrees.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// CreatePropertyRequest represents the body of POST /properties.
type CreatePropertyRequest struct {
	Location     *LocationRequest `json:"location"`
	OwnerPhone   *string          `json:"owner_phone" binding:"omitempty,max=40"`
	Address      string           `json:"address" binding:"required,max=300"`
	OwnerName    string           `json:"owner_name" binding:"required,max=200"`
	OwnerEmail   string           `json:"owner_email" binding:"required,email"`
	LandAreaSqft float64          `json:"land_area_sqft" binding:"required,gt=0"`
}

// PropertyListResponse represents the response for GET /properties.
type PropertyListResponse struct {
	Properties []models.PropertySummary `json:"properties"`
	Count      int                      `json:"count"`
}

// Create handles POST /api/v1/properties.
func (h *PropertyHandler) Create(c *gin.Context) {
	var req CreatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.CreatePropertyInput{
		OwnerPhone:   req.OwnerPhone,
		Address:      req.Address,
		OwnerName:    req.OwnerName,
		OwnerEmail:   req.OwnerEmail,
		LandAreaSqft: req.LandAreaSqft,
	}
	if req.Location != nil {
		in.Location = &models.Location{
			Latitude:  *req.Location.Latitude,
			Longitude: *req.Location.Longitude,
		}
	}

	property, err := h.properties.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "Failed to create property")
		return
	}

	c.JSON(http.StatusCreated, property)
}

// List handles GET /api/v1/properties, lowest compliance score first.
func (h *PropertyHandler) List(c *gin.Context) {
	list, err := h.properties.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list properties")
		return
	}

	c.JSON(http.StatusOK, PropertyListResponse{
		Properties: list,
		Count:      len(list),
	})
}

// Get handles GET /api/v1/properties/:id.
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.properties.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to load property")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Delete handles DELETE /api/v1/properties/:id.
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.properties.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete property")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Property deleted via API", map[string]interface{}{
			"property_id": id,
		})
	}
	c.Status(http.StatusNoContent)
}

// Recalculate handles POST /api/v1/properties/:id/score/recalculate.
func (h *PropertyHandler) Recalculate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	scores, err := h.scoring.Recalculate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to recalculate scores")
		return
	}

	c.JSON(http.StatusOK, scores)
}
