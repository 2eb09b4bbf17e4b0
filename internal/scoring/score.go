package scoring

import (
	"math"
	"time"

	"github.com/stwalsh4118/covenant/internal/models"
)

const (
	maxScore = 100
	minScore = 0

	// decayDays is the age at which an open violation reaches its weight floor.
	decayDays   = 180.0
	minWeight   = 0.3
	overdueCost = 25

	complianceShare = 0.6
	financialShare  = 0.4
)

var severityDeduction = map[models.Severity]float64{
	models.SeverityLow:    5,
	models.SeverityMedium: 10,
	models.SeverityHigh:   20,
}

// Inputs is everything the score triple depends on.
type Inputs struct {
	OpenViolations []models.OpenViolation
	OverdueBills   int
}

// Weight returns how much an open violation of the given age counts.
// A new violation counts fully; the weight decays linearly to 0.3 at 180 days.
func Weight(age time.Duration) float64 {
	ageDays := age.Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Max(minWeight, 1-ageDays/decayDays)
}

// Deduction is the number of points a single open violation costs at now.
func Deduction(v models.OpenViolation, now time.Time) float64 {
	return severityDeduction[v.Severity] * Weight(now.Sub(v.CreatedAt))
}

// ComplianceScore derives the time-decayed compliance score from the open violations.
func ComplianceScore(open []models.OpenViolation, now time.Time) int {
	var total float64
	for _, v := range open {
		total += Deduction(v, now)
	}
	return clamp(int(math.Round(maxScore - total)))
}

// FinancialScore costs 25 points per overdue bill.
func FinancialScore(overdueBills int) int {
	return clamp(maxScore - overdueCost*overdueBills)
}

// CombinedScore blends 60% compliance with 40% financial.
func CombinedScore(compliance, financial int) int {
	return clamp(int(math.Round(complianceShare*float64(compliance) + financialShare*float64(financial))))
}

// Compute derives the full score triple.
func Compute(in Inputs, now time.Time) models.Scores {
	compliance := ComplianceScore(in.OpenViolations, now)
	financial := FinancialScore(in.OverdueBills)
	return models.Scores{
		ComplianceScore: compliance,
		FinancialScore:  financial,
		CombinedScore:   CombinedScore(compliance, financial),
	}
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
