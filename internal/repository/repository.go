package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/database"
	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// ScoreFunc derives a property's scores from its current open violations and
// overdue bills.
type ScoreFunc func(in scoring.Inputs) models.Scores

// PropertyRepository defines the data access operations for properties.
type PropertyRepository interface {
	// Create inserts a new property.
	Create(ctx context.Context, p *models.Property) error

	// FindByID returns nil, nil if the property does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)

	// List returns every property with its open violation count and last
	// violation activity, lowest compliance score first.
	List(ctx context.Context) ([]models.PropertySummary, error)

	// ListIDs returns the id of every property.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	// Delete removes the property together with its violations and bills.
	// It reports false if the property did not exist.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateScores reads the property's scoring inputs, computes the new
	// scores and writes them, all while holding the property's row lock.
	// Returns nil, nil if the property does not exist.
	UpdateScores(ctx context.Context, id uuid.UUID, compute ScoreFunc) (*models.Scores, error)
}

// TransitionRequest is a conditional status change of one violation. It only
// applies while the violation's status is one of From.
type TransitionRequest struct {
	At          time.Time
	PropertyID  *uuid.UUID
	EvidenceRef *string
	From        []models.ViolationStatus
	To          models.ViolationStatus
	ID          uuid.UUID
}

// ViolationEdit holds the correctable fields of a violation.
type ViolationEdit struct {
	Category     models.Category
	Severity     models.Severity
	Description  string
	RuleCited    string
	Remediation  string
	DeadlineDays int
}

// ViolationRepository defines the data access operations for violations.
type ViolationRepository interface {
	Create(ctx context.Context, v *models.Violation) error

	// FindByID returns nil, nil if the violation does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Violation, error)

	// ListByProperty returns the property's violations, newest first.
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Violation, error)

	// Timeline returns every violation with its property address, oldest first.
	Timeline(ctx context.Context) ([]models.TimelineEntry, error)

	// Transition applies req as a single conditional update. It returns
	// nil, nil when no row matched (missing, wrong property or wrong status).
	Transition(ctx context.Context, req TransitionRequest) (*models.Violation, error)

	// Update overwrites the correctable fields without touching status or
	// fine_amount. Returns nil, nil if the violation does not exist.
	Update(ctx context.Context, id uuid.UUID, edit ViolationEdit, at time.Time) (*models.Violation, error)

	// MarkNoticeSent stamps notice_sent_at.
	MarkNoticeSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// SumOpenFines totals fine_amount over the property's open violations
	// created in [from, to).
	SumOpenFines(ctx context.Context, propertyID uuid.UUID, from, to time.Time) (float64, error)
}

// BillRepository defines the data access operations for monthly bills.
type BillRepository interface {
	// Upsert inserts the bill for (propertyID, amounts.BillingMonth) or, if
	// one exists and is still pending, refreshes its amounts. A frozen bill
	// is returned unchanged.
	Upsert(ctx context.Context, id, propertyID uuid.UUID, amounts models.BillAmounts, at time.Time) (*models.MonthlyBill, error)

	// FindByID returns nil, nil if the bill does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*models.MonthlyBill, error)

	// ListByProperty returns the property's bills, newest billing month first.
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MonthlyBill, error)

	// ListAll returns every bill, newest billing month first.
	ListAll(ctx context.Context) ([]models.MonthlyBill, error)

	// FindOverdueCandidates returns pending bills due before asOf that have
	// not had a reminder, oldest due date first.
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.MonthlyBill, error)

	// MarkOverdue moves a pending, unreminded bill to overdue and stamps
	// reminder_sent_at in one conditional update. Returns nil, nil if the
	// bill no longer qualifies.
	MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (*models.MonthlyBill, error)

	// MarkPaid moves an unpaid bill to paid. A non-nil propertyID also
	// requires the bill to belong to that property. Returns nil, nil when
	// no row matched.
	MarkPaid(ctx context.Context, id uuid.UUID, propertyID *uuid.UUID, at time.Time) (*models.MonthlyBill, error)
}

// Store groups the repositories the services depend on.
type Store struct {
	Properties PropertyRepository
	Violations ViolationRepository
	Bills      BillRepository
}

// NewStore returns a Store backed by PostgreSQL.
func NewStore(db *database.Database) *Store {
	return &Store{
		Properties: NewPropertyRepository(db),
		Violations: NewViolationRepository(db),
		Bills:      NewBillRepository(db),
	}
}
