package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is a residential lot inside the community. Its score fields are
// written only by the scoring service.
type Property struct {
	CreatedAt       time.Time `json:"created_at"`
	Location        *Location `json:"location,omitempty"`
	OwnerPhone      *string   `json:"owner_phone,omitempty"`
	Address         string    `json:"address"`
	OwnerName       string    `json:"owner_name"`
	OwnerEmail      string    `json:"owner_email"`
	LandAreaSqft    float64   `json:"land_area_sqft"`
	ComplianceScore int       `json:"compliance_score"`
	FinancialScore  int       `json:"financial_score"`
	CombinedScore   int       `json:"combined_score"`
	ID              uuid.UUID `json:"id"`
}

// Scores is the score triple persisted onto a property in one write.
type Scores struct {
	ComplianceScore int `json:"compliance_score"`
	FinancialScore  int `json:"financial_score"`
	CombinedScore   int `json:"combined_score"`
}

// Scores returns the property's current score triple.
func (p *Property) Scores() Scores {
	return Scores{
		ComplianceScore: p.ComplianceScore,
		FinancialScore:  p.FinancialScore,
		CombinedScore:   p.CombinedScore,
	}
}

// PropertySummary is a property row enriched for list views.
type PropertySummary struct {
	LastActivity *time.Time `json:"last_activity,omitempty"`
	Property
	OpenViolations int `json:"open_violations"`
}
