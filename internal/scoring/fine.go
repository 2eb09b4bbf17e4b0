// Package scoring holds the pure pricing and scoring rules. Nothing in here
// touches a store, so every rule is testable with plain values.
package scoring

import (
	"math"

	"github.com/stwalsh4118/covenant/internal/models"
)

// Fine bases in currency units.
var fineBase = map[models.Severity]float64{
	models.SeverityLow:    50,
	models.SeverityMedium: 100,
	models.SeverityHigh:   200,
}

// Multiplier returns the fine multiplier for a property's combined score.
// Lower scores pay more.
func Multiplier(combinedScore int) float64 {
	switch {
	case combinedScore >= 80:
		return 1.0
	case combinedScore >= 60:
		return 1.25
	case combinedScore >= 40:
		return 1.5
	default:
		return 2.0
	}
}

// Fine prices a new violation from its severity and the property's combined
// score at the moment of creation. Unknown severities are priced as low.
func Fine(severity models.Severity, combinedScore int) float64 {
	base, ok := fineBase[severity]
	if !ok {
		base = fineBase[models.SeverityLow]
	}
	return RoundMoney(base * Multiplier(combinedScore))
}

// RoundMoney rounds an amount to two decimal places.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}
