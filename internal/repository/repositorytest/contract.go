// Package repositorytest holds behavior tests every repository.Store
// implementation must pass.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// NewStoreFunc returns an empty store for one test.
type NewStoreFunc func(t *testing.T) *repository.Store

var (
	month = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	now   = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
)

// Run executes the full behavior suite against stores built by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("PropertyCRUD", func(t *testing.T) { testPropertyCRUD(t, newStore(t)) })
	t.Run("PropertyListOrder", func(t *testing.T) { testPropertyListOrder(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("UpdateScores", func(t *testing.T) { testUpdateScores(t, newStore(t)) })
	t.Run("ViolationTransitions", func(t *testing.T) { testViolationTransitions(t, newStore(t)) })
	t.Run("ViolationOrderTiebreak", func(t *testing.T) { testViolationOrderTiebreak(t, newStore(t)) })
	t.Run("ViolationUpdateKeepsFine", func(t *testing.T) { testViolationUpdate(t, newStore(t)) })
	t.Run("SumOpenFines", func(t *testing.T) { testSumOpenFines(t, newStore(t)) })
	t.Run("UpsertRefreshesPending", func(t *testing.T) { testUpsertRefreshesPending(t, newStore(t)) })
	t.Run("UpsertLeavesFrozen", func(t *testing.T) { testUpsertLeavesFrozen(t, newStore(t)) })
	t.Run("ConcurrentUpsertSingleRow", func(t *testing.T) { testConcurrentUpsert(t, newStore(t)) })
	t.Run("OverdueCompareAndSet", func(t *testing.T) { testOverdueCAS(t, newStore(t)) })
	t.Run("MarkPaid", func(t *testing.T) { testMarkPaid(t, newStore(t)) })
}

// NewProperty inserts a property with perfect scores.
func NewProperty(t *testing.T, s *repository.Store, address string, sqft float64) *models.Property {
	t.Helper()
	p := &models.Property{
		CreatedAt:       now,
		Address:         address,
		OwnerName:       "Owner of " + address,
		OwnerEmail:      "owner@example.com",
		LandAreaSqft:    sqft,
		ComplianceScore: 100,
		FinancialScore:  100,
		CombinedScore:   100,
		ID:              uuid.New(),
	}
	require.NoError(t, s.Properties.Create(context.Background(), p))
	return p
}

// NewViolation inserts an open violation created at createdAt.
func NewViolation(t *testing.T, s *repository.Store, propertyID uuid.UUID, sev models.Severity, fine float64, createdAt time.Time) *models.Violation {
	t.Helper()
	v := &models.Violation{
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		Category:     models.CategoryLandscaping,
		Severity:     sev,
		Description:  "Overgrown lawn",
		RuleCited:    "Section 4.2",
		Remediation:  "Mow the lawn",
		Status:       models.ViolationOpen,
		FineAmount:   fine,
		DeadlineDays: 14,
		ID:           uuid.New(),
		PropertyID:   propertyID,
	}
	require.NoError(t, s.Violations.Create(context.Background(), v))
	return v
}

func amounts(base, fines float64) models.BillAmounts {
	return models.BillAmounts{
		BillingMonth:   month,
		DueDate:        models.DueDateOf(month),
		BaseAmount:     base,
		ViolationFines: fines,
		TotalAmount:    scoring.RoundMoney(base + fines),
	}
}

func testPropertyCRUD(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	phone := "555-0100"
	p := &models.Property{
		CreatedAt:       now,
		Location:        &models.Location{Latitude: 30.1, Longitude: -95.4},
		OwnerPhone:      &phone,
		Address:         "12 Oak Lane",
		OwnerName:       "Dana Smith",
		OwnerEmail:      "dana@example.com",
		LandAreaSqft:    1250.5,
		ComplianceScore: 100,
		FinancialScore:  100,
		CombinedScore:   100,
		ID:              uuid.New(),
	}
	require.NoError(t, s.Properties.Create(ctx, p))

	got, err := s.Properties.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Address, got.Address)
	assert.Equal(t, p.LandAreaSqft, got.LandAreaSqft)
	require.NotNil(t, got.Location)
	assert.InDelta(t, 30.1, got.Location.Latitude, 1e-9)
	assert.InDelta(t, -95.4, got.Location.Longitude, 1e-9)
	require.NotNil(t, got.OwnerPhone)
	assert.Equal(t, phone, *got.OwnerPhone)

	missing, err := s.Properties.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := s.Properties.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, ids)
}

func testPropertyListOrder(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	clean := NewProperty(t, s, "1 Clean St", 1000)
	messy := NewProperty(t, s, "2 Messy St", 1000)
	NewViolation(t, s, messy.ID, models.SeverityHigh, 200, now)
	NewViolation(t, s, messy.ID, models.SeverityLow, 50, now)

	_, err := s.Properties.UpdateScores(ctx, messy.ID, func(in scoring.Inputs) models.Scores {
		return scoring.Compute(in, now)
	})
	require.NoError(t, err)

	list, err := s.Properties.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, messy.ID, list[0].ID, "lowest compliance first")
	assert.Equal(t, 2, list[0].OpenViolations)
	assert.NotNil(t, list[0].LastActivity)
	assert.Equal(t, clean.ID, list[1].ID)
	assert.Equal(t, 0, list[1].OpenViolations)
	assert.Nil(t, list[1].LastActivity)
}

func testDeleteCascades(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	p := NewProperty(t, s, "3 Gone Rd", 1000)
	v := NewViolation(t, s, p.ID, models.SeverityMedium, 100, now)
	bill, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 100), now)
	require.NoError(t, err)

	deleted, err := s.Properties.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	gotV, err := s.Violations.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, gotV)

	gotB, err := s.Bills.FindByID(ctx, bill.ID)
	require.NoError(t, err)
	assert.Nil(t, gotB)

	deleted, err = s.Properties.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testUpdateScores(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	p := NewProperty(t, s, "4 Score Ave", 1000)
	NewViolation(t, s, p.ID, models.SeverityHigh, 200, now)
	resolved := NewViolation(t, s, p.ID, models.SeverityHigh, 200, now)
	_, err := s.Violations.Transition(ctx, repository.TransitionRequest{
		ID: resolved.ID, From: []models.ViolationStatus{models.ViolationOpen}, To: models.ViolationResolved, At: now,
	})
	require.NoError(t, err)

	bill, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
	require.NoError(t, err)
	_, err = s.Bills.MarkOverdue(ctx, bill.ID, now)
	require.NoError(t, err)

	var seen scoring.Inputs
	scores, err := s.Properties.UpdateScores(ctx, p.ID, func(in scoring.Inputs) models.Scores {
		seen = in
		return scoring.Compute(in, now)
	})
	require.NoError(t, err)
	require.NotNil(t, scores)

	assert.Len(t, seen.OpenViolations, 1, "only open violations count")
	assert.Equal(t, 1, seen.OverdueBills)
	assert.Equal(t, models.Scores{ComplianceScore: 80, FinancialScore: 75, CombinedScore: 78}, *scores)

	got, err := s.Properties.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *scores, got.Scores())

	missing, err := s.Properties.UpdateScores(ctx, uuid.New(), func(in scoring.Inputs) models.Scores {
		return scoring.Compute(in, now)
	})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testViolationTransitions(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	p := NewProperty(t, s, "5 Flag Ct", 1000)
	other := NewProperty(t, s, "6 Other Ct", 1000)
	v := NewViolation(t, s, p.ID, models.SeverityLow, 50, now)

	flag := func(propertyID uuid.UUID) (*models.Violation, error) {
		evidence := "photos/fixed.jpg"
		return s.Violations.Transition(ctx, repository.TransitionRequest{
			At:          now.Add(time.Hour),
			PropertyID:  &propertyID,
			EvidenceRef: &evidence,
			From:        []models.ViolationStatus{models.ViolationOpen},
			To:          models.ViolationPendingReview,
			ID:          v.ID,
		})
	}

	got, err := flag(other.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "scoped to owning property")

	got, err = flag(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ViolationPendingReview, got.Status)
	require.NotNil(t, got.EvidenceRef)
	assert.Equal(t, "photos/fixed.jpg", *got.EvidenceRef)

	got, err = flag(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "second flag loses the compare-and-set")

	resolved, err := s.Violations.Transition(ctx, repository.TransitionRequest{
		At:   now.Add(2 * time.Hour),
		From: []models.ViolationStatus{models.ViolationOpen, models.ViolationPendingReview},
		To:   models.ViolationResolved,
		ID:   v.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, models.ViolationResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(now.Add(2*time.Hour)))
	assert.Equal(t, "photos/fixed.jpg", *resolved.EvidenceRef, "evidence kept when not supplied")

	require.NoError(t, s.Violations.MarkNoticeSent(ctx, v.ID, now))
	found, err := s.Violations.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, found.NoticeSentAt)

	timeline, err := s.Violations.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, p.Address, timeline[0].PropertyAddress)
}

func testViolationOrderTiebreak(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "8 Same Second Ct", 1000)

	earlier := NewViolation(t, s, p.ID, models.SeverityLow, 50, now.Add(-time.Hour))
	tied := make([]string, 4)
	for i := range tied {
		tied[i] = NewViolation(t, s, p.ID, models.SeverityLow, 50, now).ID.String()
	}
	sort.Strings(tied)

	list, err := s.Violations.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, id := range tied {
		assert.Equal(t, id, list[i].ID.String(), "newest first, ties by id")
	}
	assert.Equal(t, earlier.ID, list[4].ID)

	timeline, err := s.Violations.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, timeline, 5)
	assert.Equal(t, earlier.ID, timeline[0].ID, "oldest first")
	for i, id := range tied {
		assert.Equal(t, id, timeline[i+1].ID.String(), "ties by id")
	}
}

func testViolationUpdate(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	p := NewProperty(t, s, "7 Edit Way", 1000)
	v := NewViolation(t, s, p.ID, models.SeverityLow, 50, now)

	got, err := s.Violations.Update(ctx, v.ID, repository.ViolationEdit{
		Category:     models.CategoryTrash,
		Severity:     models.SeverityHigh,
		Description:  "Bins left out",
		RuleCited:    "Section 7",
		Remediation:  "Store bins",
		DeadlineDays: 7,
	}, now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, models.CategoryTrash, got.Category)
	assert.Equal(t, 7, got.DeadlineDays)
	assert.Equal(t, 50.0, got.FineAmount, "fine never repriced")
	assert.Equal(t, models.ViolationOpen, got.Status)

	missing, err := s.Violations.Update(ctx, uuid.New(), repository.ViolationEdit{
		Category: models.CategoryTrash, Severity: models.SeverityLow, Description: "x", DeadlineDays: 1,
	}, now)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := s.Violations.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testSumOpenFines(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	p := NewProperty(t, s, "8 Fine St", 1000)
	NewViolation(t, s, p.ID, models.SeverityMedium, 100, now)
	NewViolation(t, s, p.ID, models.SeverityHigh, 250, month)
	NewViolation(t, s, p.ID, models.SeverityLow, 50, month.Add(-time.Second)) // previous month
	closed := NewViolation(t, s, p.ID, models.SeverityLow, 62.5, now)
	_, err := s.Violations.Transition(ctx, repository.TransitionRequest{
		ID: closed.ID, From: []models.ViolationStatus{models.ViolationOpen}, To: models.ViolationPendingReview, At: now,
	})
	require.NoError(t, err)

	total, err := s.Violations.SumOpenFines(ctx, p.ID, month, month.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 350.0, total)
}

func testUpsertRefreshesPending(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "9 Bill Blvd", 1000)

	first, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
	require.NoError(t, err)
	assert.Equal(t, models.BillPending, first.Status)
	assert.True(t, first.BillingMonth.Equal(month))
	assert.True(t, first.DueDate.Equal(models.DueDateOf(month)))

	second, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 100), now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one bill per property and month")
	assert.Equal(t, 100.0, second.ViolationFines)
	assert.Equal(t, 150.0, second.TotalAmount)
}

func testUpsertLeavesFrozen(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "10 Frozen Pl", 1000)

	bill, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
	require.NoError(t, err)
	_, err = s.Bills.MarkPaid(ctx, bill.ID, nil, now)
	require.NoError(t, err)

	after, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 200), now)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, after.ID)
	assert.Equal(t, models.BillPaid, after.Status)
	assert.Equal(t, 0.0, after.ViolationFines)
	assert.Equal(t, 50.0, after.TotalAmount)
}

func testConcurrentUpsert(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "11 Race Row", 1000)

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
			errs[i] = err
			if b != nil {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	bills, err := s.Bills.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func testOverdueCAS(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "12 Late Ln", 1000)

	bill, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
	require.NoError(t, err)

	candidates, err := s.Bills.FindOverdueCandidates(ctx, models.DueDateOf(month), 100)
	require.NoError(t, err)
	assert.Empty(t, candidates, "not overdue at the due instant")

	pastDue := models.DueDateOf(month).Add(time.Minute)
	candidates, err = s.Bills.FindOverdueCandidates(ctx, pastDue, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, bill.ID, candidates[0].ID)

	dayAfter := models.DueDateOf(month).AddDate(0, 0, 1)

	marked, err := s.Bills.MarkOverdue(ctx, bill.ID, dayAfter)
	require.NoError(t, err)
	require.NotNil(t, marked)
	assert.Equal(t, models.BillOverdue, marked.Status)
	require.NotNil(t, marked.ReminderSentAt)

	again, err := s.Bills.MarkOverdue(ctx, bill.ID, dayAfter.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, again)

	candidates, err = s.Bills.FindOverdueCandidates(ctx, dayAfter, 100)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	stored, err := s.Bills.FindByID(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSentAt.Equal(dayAfter), "reminder stamp unchanged")
}

func testMarkPaid(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	p := NewProperty(t, s, "13 Paid Pkwy", 1000)
	other := NewProperty(t, s, "14 Other Pkwy", 1000)

	bill, err := s.Bills.Upsert(ctx, uuid.New(), p.ID, amounts(50, 0), now)
	require.NoError(t, err)

	wrong, err := s.Bills.MarkPaid(ctx, bill.ID, &other.ID, now)
	require.NoError(t, err)
	assert.Nil(t, wrong)

	paid, err := s.Bills.MarkPaid(ctx, bill.ID, &p.ID, now)
	require.NoError(t, err)
	require.NotNil(t, paid)
	assert.Equal(t, models.BillPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	twice, err := s.Bills.MarkPaid(ctx, bill.ID, nil, now)
	require.NoError(t, err)
	assert.Nil(t, twice)

	missing, err := s.Bills.MarkPaid(ctx, uuid.New(), nil, now)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
