package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/covenant/internal/clock"
	"github.com/stwalsh4118/covenant/internal/metrics"
	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/notify"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/repository/memory"
)

// March 10th: inside the billing month, before the 15th due date.
var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// MockNotifier is a mock implementation of notify.Notifier for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendViolationNotice(ctx context.Context, n notify.ViolationNotice) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotifier) SendOverdueReminder(ctx context.Context, r notify.OverdueReminder) error {
	return m.Called(ctx, r).Error(0)
}

// MockAnalyzer is a mock implementation of Analyzer for testing
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Proposal, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Proposal), args.Error(1)
}

type fixture struct {
	store      *repository.Store
	clock      *clock.Fake
	notifier   *MockNotifier
	analyzer   *MockAnalyzer
	metrics    *metrics.Metrics
	scoring    ScoringService
	billing    BillingService
	violations ViolationService
	properties PropertyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore())
}

func newFixtureWithStore(t *testing.T, store *repository.Store) *fixture {
	t.Helper()

	f := &fixture{
		store:    store,
		clock:    clock.NewFake(testNow),
		notifier: new(MockNotifier),
		analyzer: new(MockAnalyzer),
		metrics:  metrics.New(),
	}
	deps := Deps{
		Store:    store,
		Clock:    f.clock,
		Notifier: f.notifier,
		Metrics:  f.metrics,
	}
	f.scoring = NewScoringService(deps)
	f.billing = NewBillingService(deps, f.scoring, DefaultBaseRatePerSqft)
	f.violations = NewViolationService(deps, f.scoring, f.billing, f.analyzer)
	f.properties = NewPropertyService(deps)
	return f
}

func (f *fixture) createProperty(t *testing.T, address string, sqft float64) *models.Property {
	t.Helper()

	p, err := f.properties.Create(context.Background(), CreatePropertyInput{
		Address:      address,
		OwnerName:    "Owner of " + address,
		OwnerEmail:   "owner@example.com",
		LandAreaSqft: sqft,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) createViolation(t *testing.T, propertyID uuid.UUID, severity models.Severity) *ViolationResult {
	t.Helper()

	result, err := f.violations.Create(context.Background(), CreateViolationInput{
		Category:    models.CategoryLandscaping,
		Severity:    severity,
		Description: "Overgrown front lawn",
		RuleCited:   "CC&R 4.2",
		Remediation: "Mow the lawn",
		PropertyID:  propertyID,
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) property(t *testing.T, id uuid.UUID) *models.Property {
	t.Helper()

	p, err := f.store.Properties.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) bill(t *testing.T, id uuid.UUID) *models.MonthlyBill {
	t.Helper()

	b, err := f.store.Bills.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}
