package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/notify"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// DefaultBaseRatePerSqft is the monthly assessment per square foot of land.
const DefaultBaseRatePerSqft = 0.05

const (
	// sweepBatchSize caps the bills one sweep run picks up; the rest wait
	// for the next tick.
	sweepBatchSize = 1000

	// finishTimeout bounds the follow-up work for a bill whose overdue
	// transition has committed, after the sweep itself was canceled.
	finishTimeout = 30 * time.Second
)

// SweepResult reports one overdue sweep run.
type SweepResult struct {
	Processed            int `json:"processed"`
	Skipped              int `json:"skipped"`
	Failed               int `json:"failed"`
	NotificationFailures int `json:"notification_failures"`
}

// BillingService defines the monthly billing operations.
type BillingService interface {
	// EnsureCurrentBill creates or refreshes the property's bill for the
	// current UTC month. A bill that has left pending is returned unchanged.
	// Returns ErrPropertyNotFound if the property does not exist.
	EnsureCurrentBill(ctx context.Context, propertyID uuid.UUID) (*models.MonthlyBill, error)

	// PayBill marks the bill paid and recalculates the owner's scores. A
	// non-nil propertyID restricts payment to that property's bills.
	// Returns ErrBillNotFound or ErrBillAlreadyPaid.
	PayBill(ctx context.Context, billID uuid.UUID, propertyID *uuid.UUID) (*models.MonthlyBill, error)

	// OverdueSweep ages past-due pending bills into overdue, rescoring each
	// owner and sending one reminder per bill. It returns the processed
	// count alongside ctx.Err() when canceled mid-batch.
	OverdueSweep(ctx context.Context) (SweepResult, error)

	// ListByProperty refreshes the current bill and lists the property's
	// bills, newest first.
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MonthlyBill, error)

	// FinanceSummary refreshes every property's current bill and reports
	// what each owes and what the community is owed.
	FinanceSummary(ctx context.Context) (*models.FinanceSummary, error)
}

// billingService is the concrete implementation of BillingService.
type billingService struct {
	Deps
	scoring  ScoringService
	baseRate float64
}

// NewBillingService creates a new instance of BillingService.
func NewBillingService(deps Deps, scoring ScoringService, baseRatePerSqft float64) BillingService {
	return &billingService{
		Deps:     deps.withDefaults("billing"),
		scoring:  scoring,
		baseRate: baseRatePerSqft,
	}
}

// amountsFor computes the current month's bill for a property.
func (s *billingService) amountsFor(ctx context.Context, p *models.Property, now time.Time) (models.BillAmounts, error) {
	month := models.BillingMonthOf(now)

	fines, err := call(ctx, s.Deps, func(ctx context.Context) (float64, error) {
		return s.Store.Violations.SumOpenFines(ctx, p.ID, month, month.AddDate(0, 1, 0))
	})
	if err != nil {
		return models.BillAmounts{}, err
	}

	base := scoring.RoundMoney(p.LandAreaSqft * s.baseRate)
	fines = scoring.RoundMoney(fines)
	return models.BillAmounts{
		BillingMonth:   month,
		DueDate:        models.DueDateOf(month),
		BaseAmount:     base,
		ViolationFines: fines,
		TotalAmount:    scoring.RoundMoney(base + fines),
	}, nil
}

// EnsureCurrentBill computes this month's amounts and upserts them. The
// freeze check lives in the store's conditional upsert, not here.
func (s *billingService) EnsureCurrentBill(ctx context.Context, propertyID uuid.UUID) (*models.MonthlyBill, error) {
	property, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Property, error) {
		return s.Store.Properties.FindByID(ctx, propertyID)
	})
	if err != nil {
		s.Log.Error("Failed to load property for billing", err, map[string]interface{}{
			"property_id": propertyID,
		})
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return nil, ErrPropertyNotFound
	}

	now := s.now()
	amounts, err := s.amountsFor(ctx, property, now)
	if err != nil {
		s.Log.Error("Failed to compute bill amounts", err, map[string]interface{}{
			"property_id": propertyID,
		})
		return nil, fmt.Errorf("failed to compute bill amounts: %w", err)
	}

	newID := uuid.New()
	bill, err := call(ctx, s.Deps, func(ctx context.Context) (*models.MonthlyBill, error) {
		return s.Store.Bills.Upsert(ctx, newID, propertyID, amounts, now)
	})
	if err != nil {
		s.Log.Error("Failed to upsert current bill", err, map[string]interface{}{
			"property_id":   propertyID,
			"billing_month": amounts.BillingMonth.Format("2006-01"),
		})
		return nil, fmt.Errorf("failed to upsert current bill: %w", err)
	}

	switch {
	case bill.Status.Frozen():
		s.Metrics.IncrementBillRefresh("frozen")
	case !bill.Matches(amounts):
		s.Log.Error("Pending bill does not carry the amounts just written", ErrInvariant, map[string]interface{}{
			"bill_id":        bill.ID,
			"property_id":    propertyID,
			"stored_total":   bill.TotalAmount,
			"computed_total": amounts.TotalAmount,
			"stored_fines":   bill.ViolationFines,
			"computed_fines": amounts.ViolationFines,
		})
		return nil, fmt.Errorf("%w: bill %s", ErrInvariant, bill.ID)
	case bill.ID == newID:
		s.Metrics.IncrementBillRefresh("created")
	default:
		s.Metrics.IncrementBillRefresh("refreshed")
	}

	return bill, nil
}

// PayBill performs the conditional paid transition, then rescores.
func (s *billingService) PayBill(ctx context.Context, billID uuid.UUID, propertyID *uuid.UUID) (*models.MonthlyBill, error) {
	now := s.now()

	bill, err := call(ctx, s.Deps, func(ctx context.Context) (*models.MonthlyBill, error) {
		return s.Store.Bills.MarkPaid(ctx, billID, propertyID, now)
	})
	if err != nil {
		s.Log.Error("Failed to mark bill paid", err, map[string]interface{}{
			"bill_id": billID,
		})
		return nil, fmt.Errorf("failed to pay bill: %w", err)
	}

	if bill == nil {
		existing, err := call(ctx, s.Deps, func(ctx context.Context) (*models.MonthlyBill, error) {
			return s.Store.Bills.FindByID(ctx, billID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load bill: %w", err)
		}
		switch {
		case existing == nil:
			return nil, ErrBillNotFound
		case propertyID != nil && existing.PropertyID != *propertyID:
			return nil, ErrBillNotFound
		case existing.Status != models.BillPaid:
			return nil, fmt.Errorf("%w: bill %s is %s but could not be paid", ErrInvariant, billID, existing.Status)
		case existing.PaidAt == nil || !existing.PaidAt.Equal(now):
			return nil, ErrBillAlreadyPaid
		}
		// A retried attempt found the payment an earlier attempt committed.
		bill = existing
	}

	s.Metrics.IncrementBillsPaid()
	s.Log.Info("Bill paid", map[string]interface{}{
		"bill_id":     bill.ID,
		"property_id": bill.PropertyID,
		"amount":      bill.TotalAmount,
	})

	if _, err := s.scoring.Recalculate(ctx, bill.PropertyID); err != nil {
		return nil, fmt.Errorf("bill %s paid but score recalculation failed: %w", bill.ID, err)
	}

	return bill, nil
}

// OverdueSweep processes every qualifying bill independently. A failure on one
// bill is logged and leaves reminder_sent_at null so the next run retries it.
func (s *billingService) OverdueSweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	var result SweepResult

	candidates, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.MonthlyBill, error) {
		return s.Store.Bills.FindOverdueCandidates(ctx, s.now(), sweepBatchSize)
	})
	if err != nil {
		s.Log.Error("Failed to find overdue bills", err, nil)
		s.Metrics.ObserveSweep("error", time.Since(start))
		return result, fmt.Errorf("failed to find overdue bills: %w", err)
	}

	for _, bill := range candidates {
		if err := ctx.Err(); err != nil {
			s.Log.Warn("Overdue sweep canceled", map[string]interface{}{
				"processed": result.Processed,
				"remaining": len(candidates) - result.Processed - result.Skipped - result.Failed,
			})
			s.Metrics.ObserveSweep("canceled", time.Since(start))
			return result, err
		}
		s.sweepBill(ctx, bill, &result)
	}

	outcome := "ok"
	if result.Failed > 0 || result.NotificationFailures > 0 {
		outcome = "partial"
	}
	s.Metrics.ObserveSweep(outcome, time.Since(start))
	if len(candidates) > 0 {
		s.Log.Info("Overdue sweep complete", map[string]interface{}{
			"candidates":            len(candidates),
			"processed":             result.Processed,
			"skipped":               result.Skipped,
			"failed":                result.Failed,
			"notification_failures": result.NotificationFailures,
		})
	}

	return result, nil
}

// sweepBill moves one bill to overdue and then finishes its follow-up work on
// a context detached from the sweep's cancellation.
func (s *billingService) sweepBill(ctx context.Context, bill models.MonthlyBill, result *SweepResult) {
	fields := map[string]interface{}{
		"bill_id":     bill.ID,
		"property_id": bill.PropertyID,
	}

	now := s.now()
	marked, err := call(ctx, s.Deps, func(ctx context.Context) (*models.MonthlyBill, error) {
		return s.Store.Bills.MarkOverdue(ctx, bill.ID, now)
	})
	if err != nil {
		result.Failed++
		s.Log.Error("Failed to mark bill overdue", err, fields)
		return
	}
	if marked == nil {
		marked, err = s.retriedOverdue(ctx, bill.ID, now)
		if err != nil {
			result.Failed++
			s.Log.Error("Failed to reload bill after overdue transition", err, fields)
			return
		}
		if marked == nil {
			// Paid or swept by someone else since it was selected.
			result.Skipped++
			return
		}
	}
	result.Processed++
	s.Metrics.IncrementBillsOverdue()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	if _, err := s.scoring.Recalculate(fctx, marked.PropertyID); err != nil {
		s.Log.Error("Failed to recalculate scores after overdue", err, fields)
	}

	property, err := call(fctx, s.Deps, func(ctx context.Context) (*models.Property, error) {
		return s.Store.Properties.FindByID(ctx, marked.PropertyID)
	})
	if err != nil || property == nil {
		result.NotificationFailures++
		s.Metrics.IncrementNotificationFailures("overdue_reminder")
		s.Log.Error("Failed to load property for overdue reminder", err, fields)
		return
	}

	if err := s.sendReminder(fctx, property, marked); err != nil {
		result.NotificationFailures++
		s.Metrics.IncrementNotificationFailures("overdue_reminder")
		s.Log.Error("Overdue reminder not delivered", err, map[string]interface{}{
			"bill_id":     marked.ID,
			"property_id": marked.PropertyID,
			"recipient":   property.OwnerEmail,
		})
	}
}

// retriedOverdue returns the bill when an earlier attempt of this sweep's
// transition already committed with the same stamp, and nil otherwise.
func (s *billingService) retriedOverdue(ctx context.Context, billID uuid.UUID, at time.Time) (*models.MonthlyBill, error) {
	existing, err := call(ctx, s.Deps, func(ctx context.Context) (*models.MonthlyBill, error) {
		return s.Store.Bills.FindByID(ctx, billID)
	})
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != models.BillOverdue ||
		existing.ReminderSentAt == nil || !existing.ReminderSentAt.Equal(at) {
		return nil, nil
	}
	return existing, nil
}

func (s *billingService) sendReminder(ctx context.Context, property *models.Property, bill *models.MonthlyBill) error {
	if s.Notifier == nil {
		return errNotifierMissing
	}
	return s.Notifier.SendOverdueReminder(ctx, notify.OverdueReminder{
		SentAt:   s.now(),
		Property: *property,
		Bill:     *bill,
	})
}

// ListByProperty returns the property's bills after refreshing the current one.
func (s *billingService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MonthlyBill, error) {
	if _, err := s.EnsureCurrentBill(ctx, propertyID); err != nil {
		return nil, err
	}

	bills, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.MonthlyBill, error) {
		return s.Store.Bills.ListByProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

// FinanceSummary totals unpaid bills per property, most owed first.
func (s *billingService) FinanceSummary(ctx context.Context) (*models.FinanceSummary, error) {
	ids, err := call(ctx, s.Deps, func(ctx context.Context) ([]uuid.UUID, error) {
		return s.Store.Properties.ListIDs(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	for _, id := range ids {
		if _, err := s.EnsureCurrentBill(ctx, id); err != nil && !errors.Is(err, ErrPropertyNotFound) {
			return nil, err
		}
	}

	properties, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.PropertySummary, error) {
		return s.Store.Properties.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	bills, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.MonthlyBill, error) {
		return s.Store.Bills.ListAll(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	byProperty := make(map[uuid.UUID][]models.MonthlyBill, len(properties))
	for _, b := range bills {
		byProperty[b.PropertyID] = append(byProperty[b.PropertyID], b)
	}

	summary := &models.FinanceSummary{Properties: make([]models.PropertyFinance, 0, len(properties))}
	for _, p := range properties {
		row := models.PropertyFinance{
			Address:         p.Address,
			OwnerName:       p.OwnerName,
			OwnerEmail:      p.OwnerEmail,
			Bills:           byProperty[p.ID],
			ComplianceScore: p.ComplianceScore,
			CombinedScore:   p.CombinedScore,
			PropertyID:      p.ID,
		}
		if row.Bills == nil {
			row.Bills = []models.MonthlyBill{}
		}
		for _, b := range row.Bills {
			if b.Status != models.BillPaid {
				row.TotalOwed += b.TotalAmount
			}
			if b.Status == models.BillOverdue {
				row.OverdueCount++
			}
		}
		row.TotalOwed = scoring.RoundMoney(row.TotalOwed)

		summary.CommunityTotalOwed += row.TotalOwed
		summary.OverdueCount += row.OverdueCount
		summary.Properties = append(summary.Properties, row)
	}
	summary.CommunityTotalOwed = scoring.RoundMoney(summary.CommunityTotalOwed)

	sort.SliceStable(summary.Properties, func(i, j int) bool {
		return summary.Properties[i].TotalOwed > summary.Properties[j].TotalOwed
	})

	return summary, nil
}
