package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// ScoringService defines the score recalculation operation.
type ScoringService interface {
	// Recalculate recomputes the property's compliance, financial and
	// combined scores from its open violations and overdue bills and
	// persists all three in one write.
	// Returns ErrPropertyNotFound if the property does not exist.
	Recalculate(ctx context.Context, propertyID uuid.UUID) (*models.Scores, error)
}

// scoringService is the concrete implementation of ScoringService.
type scoringService struct {
	Deps
}

// NewScoringService creates a new instance of ScoringService.
func NewScoringService(deps Deps) ScoringService {
	return &scoringService{Deps: deps.withDefaults("scoring")}
}

// Recalculate runs the read-compute-write under the property's row lock.
func (s *scoringService) Recalculate(ctx context.Context, propertyID uuid.UUID) (*models.Scores, error) {
	start := time.Now()

	scores, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Scores, error) {
		return s.Store.Properties.UpdateScores(ctx, propertyID, func(in scoring.Inputs) models.Scores {
			return scoring.Compute(in, s.Clock.Now())
		})
	})
	if err != nil {
		s.Log.Error("Failed to recalculate scores", err, map[string]interface{}{
			"property_id": propertyID,
		})
		return nil, fmt.Errorf("failed to recalculate scores: %w", err)
	}
	if scores == nil {
		return nil, ErrPropertyNotFound
	}

	s.Metrics.ObserveScoreRecalc(time.Since(start))
	s.Log.Debug("Scores recalculated", map[string]interface{}{
		"property_id":      propertyID,
		"compliance_score": scores.ComplianceScore,
		"financial_score":  scores.FinancialScore,
		"combined_score":   scores.CombinedScore,
	})

	return scores, nil
}
