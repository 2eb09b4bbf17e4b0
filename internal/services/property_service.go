package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/models"
)

// Land area validation constants
const (
	MinLandAreaSqft = 1.0
	MaxLandAreaSqft = 10_000_000.0
)

// CreatePropertyInput describes a new lot and its owner.
type CreatePropertyInput struct {
	Location     *models.Location
	OwnerPhone   *string
	Address      string
	OwnerName    string
	OwnerEmail   string
	LandAreaSqft float64
}

// PropertyDetail is a property together with its violations.
type PropertyDetail struct {
	models.Property
	Violations []models.Violation `json:"violations"`
}

// PropertyService defines the property registry operations.
type PropertyService interface {
	// Create registers a property with perfect scores.
	// Returns ErrInvalidProperty if any field fails validation.
	Create(ctx context.Context, in CreatePropertyInput) (*models.Property, error)

	// Get returns the property with its violations, newest first.
	// Returns ErrPropertyNotFound if the property does not exist.
	Get(ctx context.Context, id uuid.UUID) (*PropertyDetail, error)

	// List returns every property, lowest compliance score first.
	List(ctx context.Context) ([]models.PropertySummary, error)

	// Delete removes the property with its violations and bills.
	// Returns ErrPropertyNotFound if the property does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// propertyService is the concrete implementation of PropertyService.
type propertyService struct {
	Deps
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(deps Deps) PropertyService {
	return &propertyService{Deps: deps.withDefaults("properties")}
}

func validateProperty(in CreatePropertyInput) error {
	if strings.TrimSpace(in.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidProperty)
	}
	if strings.TrimSpace(in.OwnerName) == "" {
		return fmt.Errorf("%w: owner name is required", ErrInvalidProperty)
	}
	if _, err := mail.ParseAddress(in.OwnerEmail); err != nil {
		return fmt.Errorf("%w: owner email %q is not a valid address", ErrInvalidProperty, in.OwnerEmail)
	}
	if in.LandAreaSqft < MinLandAreaSqft || in.LandAreaSqft > MaxLandAreaSqft {
		return fmt.Errorf("%w: land area must be between %.0f and %.0f sqft, got %f",
			ErrInvalidProperty, MinLandAreaSqft, MaxLandAreaSqft, in.LandAreaSqft)
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
		}
	}
	return nil
}

// Create validates the input and inserts the property.
func (s *propertyService) Create(ctx context.Context, in CreatePropertyInput) (*models.Property, error) {
	if err := validateProperty(in); err != nil {
		s.Log.Warn("Rejected property", map[string]interface{}{
			"address": in.Address,
			"reason":  err.Error(),
		})
		return nil, err
	}

	p := &models.Property{
		CreatedAt:       s.now(),
		Location:        in.Location,
		OwnerPhone:      in.OwnerPhone,
		Address:         strings.TrimSpace(in.Address),
		OwnerName:       strings.TrimSpace(in.OwnerName),
		OwnerEmail:      strings.TrimSpace(in.OwnerEmail),
		LandAreaSqft:    in.LandAreaSqft,
		ComplianceScore: 100,
		FinancialScore:  100,
		CombinedScore:   100,
		ID:              uuid.New(),
	}

	if err := exec(ctx, s.Deps, func(ctx context.Context) error {
		return s.Store.Properties.Create(ctx, p)
	}); err != nil {
		s.Log.Error("Failed to create property", err, map[string]interface{}{
			"address": p.Address,
		})
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	s.Log.Info("Property created", map[string]interface{}{
		"property_id":    p.ID,
		"land_area_sqft": p.LandAreaSqft,
	})
	return p, nil
}

// Get loads the property and its violations.
func (s *propertyService) Get(ctx context.Context, id uuid.UUID) (*PropertyDetail, error) {
	p, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Property, error) {
		return s.Store.Properties.FindByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if p == nil {
		return nil, ErrPropertyNotFound
	}

	violations, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.Violation, error) {
		return s.Store.Violations.ListByProperty(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	if violations == nil {
		violations = []models.Violation{}
	}

	return &PropertyDetail{Property: *p, Violations: violations}, nil
}

// List returns the property summaries.
func (s *propertyService) List(ctx context.Context) ([]models.PropertySummary, error) {
	start := time.Now()

	list, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.PropertySummary, error) {
		return s.Store.Properties.List(ctx)
	})
	if err != nil {
		s.Log.Error("Failed to list properties", err, nil)
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	s.Log.Debug("Properties listed", map[string]interface{}{
		"count":       len(list),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return list, nil
}

// Delete removes the property and everything recorded against it.
func (s *propertyService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := call(ctx, s.Deps, func(ctx context.Context) (bool, error) {
		return s.Store.Properties.Delete(ctx, id)
	})
	if err != nil {
		s.Log.Error("Failed to delete property", err, map[string]interface{}{
			"property_id": id,
		})
		return fmt.Errorf("failed to delete property: %w", err)
	}
	if !deleted {
		return ErrPropertyNotFound
	}

	s.Log.Info("Property deleted", map[string]interface{}{
		"property_id": id,
	})
	return nil
}
