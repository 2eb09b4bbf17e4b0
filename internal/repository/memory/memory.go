// Package memory is an in-process implementation of the repositories. It
// applies the same conditional-update rules as the PostgreSQL store and is
// used by service tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

type billKey struct {
	propertyID uuid.UUID
	month      time.Time
}

// state is the shared table set. One mutex guards every table, which also
// serializes score updates per property.
type state struct {
	mu         sync.Mutex
	properties map[uuid.UUID]models.Property
	violations map[uuid.UUID]models.Violation
	bills      map[uuid.UUID]models.MonthlyBill
	billIndex  map[billKey]uuid.UUID
}

// NewStore returns an empty in-memory Store.
func NewStore() *repository.Store {
	s := &state{
		properties: make(map[uuid.UUID]models.Property),
		violations: make(map[uuid.UUID]models.Violation),
		bills:      make(map[uuid.UUID]models.MonthlyBill),
		billIndex:  make(map[billKey]uuid.UUID),
	}
	return &repository.Store{
		Properties: &propertyRepository{s: s},
		Violations: &violationRepository{s: s},
		Bills:      &billRepository{s: s},
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneProperty(p models.Property) models.Property {
	p.OwnerPhone = copyString(p.OwnerPhone)
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return p
}

func cloneViolation(v models.Violation) models.Violation {
	v.EvidenceRef = copyString(v.EvidenceRef)
	v.NoticeSentAt = copyTime(v.NoticeSentAt)
	v.ResolvedAt = copyTime(v.ResolvedAt)
	return v
}

func cloneBill(b models.MonthlyBill) models.MonthlyBill {
	b.ReminderSentAt = copyTime(b.ReminderSentAt)
	b.PaidAt = copyTime(b.PaidAt)
	return b
}

type propertyRepository struct {
	s *state
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.properties[p.ID]; exists {
		return fmt.Errorf("property %s already exists", p.ID)
	}
	r.s.properties[p.ID] = cloneProperty(*p)
	return nil
}

func (r *propertyRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.properties[id]
	if !ok {
		return nil, nil
	}
	p = cloneProperty(p)
	return &p, nil
}

func (r *propertyRepository) List(ctx context.Context) ([]models.PropertySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	results := make([]models.PropertySummary, 0, len(r.s.properties))
	for _, p := range r.s.properties {
		summary := models.PropertySummary{Property: cloneProperty(p)}
		for _, v := range r.s.violations {
			if v.PropertyID != p.ID {
				continue
			}
			if v.Status == models.ViolationOpen {
				summary.OpenViolations++
			}
			if summary.LastActivity == nil || v.UpdatedAt.After(*summary.LastActivity) {
				summary.LastActivity = copyTime(&v.UpdatedAt)
			}
		}
		results = append(results, summary)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ComplianceScore != results[j].ComplianceScore {
			return results[i].ComplianceScore < results[j].ComplianceScore
		}
		return results[i].Address < results[j].Address
	})
	return results, nil
}

func (r *propertyRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	props := make([]models.Property, 0, len(r.s.properties))
	for _, p := range r.s.properties {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool {
		if !props[i].CreatedAt.Equal(props[j].CreatedAt) {
			return props[i].CreatedAt.Before(props[j].CreatedAt)
		}
		return props[i].ID.String() < props[j].ID.String()
	})

	ids := make([]uuid.UUID, len(props))
	for i, p := range props {
		ids[i] = p.ID
	}
	return ids, nil
}

func (r *propertyRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.properties[id]; !ok {
		return false, nil
	}
	for bid, b := range r.s.bills {
		if b.PropertyID == id {
			delete(r.s.billIndex, billKey{propertyID: id, month: b.BillingMonth})
			delete(r.s.bills, bid)
		}
	}
	for vid, v := range r.s.violations {
		if v.PropertyID == id {
			delete(r.s.violations, vid)
		}
	}
	delete(r.s.properties, id)
	return true, nil
}

func (r *propertyRepository) UpdateScores(ctx context.Context, id uuid.UUID, compute repository.ScoreFunc) (*models.Scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.properties[id]
	if !ok {
		return nil, nil
	}

	var in scoring.Inputs
	for _, v := range r.s.violations {
		if v.PropertyID == id && v.Status == models.ViolationOpen {
			in.OpenViolations = append(in.OpenViolations, models.OpenViolation{
				CreatedAt: v.CreatedAt,
				Severity:  v.Severity,
			})
		}
	}
	for _, b := range r.s.bills {
		if b.PropertyID == id && b.Status == models.BillOverdue {
			in.OverdueBills++
		}
	}

	scores := compute(in)
	p.ComplianceScore = scores.ComplianceScore
	p.FinancialScore = scores.FinancialScore
	p.CombinedScore = scores.CombinedScore
	r.s.properties[id] = p
	return &scores, nil
}

type violationRepository struct {
	s *state
}

func (r *violationRepository) Create(ctx context.Context, v *models.Violation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.properties[v.PropertyID]; !ok {
		return fmt.Errorf("property %s does not exist", v.PropertyID)
	}
	if _, exists := r.s.violations[v.ID]; exists {
		return fmt.Errorf("violation %s already exists", v.ID)
	}
	r.s.violations[v.ID] = cloneViolation(*v)
	return nil
}

func (r *violationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.violations[id]
	if !ok {
		return nil, nil
	}
	v = cloneViolation(v)
	return &v, nil
}

func (r *violationRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	results := []models.Violation{}
	for _, v := range r.s.violations {
		if v.PropertyID == propertyID {
			results = append(results, cloneViolation(v))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	return results, nil
}

func (r *violationRepository) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	results := []models.TimelineEntry{}
	for _, v := range r.s.violations {
		results = append(results, models.TimelineEntry{
			CreatedAt:       v.CreatedAt,
			Severity:        v.Severity,
			Category:        v.Category,
			Status:          v.Status,
			PropertyAddress: r.s.properties[v.PropertyID].Address,
			ID:              v.ID,
			PropertyID:      v.PropertyID,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	return results, nil
}

func (r *violationRepository) Transition(ctx context.Context, req repository.TransitionRequest) (*models.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.violations[req.ID]
	if !ok {
		return nil, nil
	}
	if req.PropertyID != nil && v.PropertyID != *req.PropertyID {
		return nil, nil
	}
	matched := false
	for _, from := range req.From {
		if v.Status == from {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	v.Status = req.To
	v.UpdatedAt = req.At
	v.ResolvedAt = nil
	if req.To == models.ViolationResolved {
		v.ResolvedAt = copyTime(&req.At)
	}
	if req.EvidenceRef != nil {
		v.EvidenceRef = copyString(req.EvidenceRef)
	}
	r.s.violations[v.ID] = v

	out := cloneViolation(v)
	return &out, nil
}

func (r *violationRepository) Update(ctx context.Context, id uuid.UUID, edit repository.ViolationEdit, at time.Time) (*models.Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.violations[id]
	if !ok {
		return nil, nil
	}
	v.Category = edit.Category
	v.Severity = edit.Severity
	v.Description = edit.Description
	v.RuleCited = edit.RuleCited
	v.Remediation = edit.Remediation
	v.DeadlineDays = edit.DeadlineDays
	v.UpdatedAt = at
	r.s.violations[id] = v

	out := cloneViolation(v)
	return &out, nil
}

func (r *violationRepository) MarkNoticeSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if v, ok := r.s.violations[id]; ok {
		v.NoticeSentAt = copyTime(&at)
		r.s.violations[id] = v
	}
	return nil
}

func (r *violationRepository) SumOpenFines(ctx context.Context, propertyID uuid.UUID, from, to time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var total float64
	for _, v := range r.s.violations {
		if v.PropertyID != propertyID || v.Status != models.ViolationOpen {
			continue
		}
		if v.CreatedAt.Before(from) || !v.CreatedAt.Before(to) {
			continue
		}
		total += v.FineAmount
	}
	return scoring.RoundMoney(total), nil
}

type billRepository struct {
	s *state
}

func (r *billRepository) Upsert(ctx context.Context, id, propertyID uuid.UUID, amounts models.BillAmounts, at time.Time) (*models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.properties[propertyID]; !ok {
		return nil, fmt.Errorf("property %s does not exist", propertyID)
	}

	key := billKey{propertyID: propertyID, month: amounts.BillingMonth}
	if existingID, ok := r.s.billIndex[key]; ok {
		b := r.s.bills[existingID]
		if b.Status == models.BillPending {
			b.BaseAmount = amounts.BaseAmount
			b.ViolationFines = amounts.ViolationFines
			b.TotalAmount = amounts.TotalAmount
			r.s.bills[existingID] = b
		}
		out := cloneBill(b)
		return &out, nil
	}

	b := models.MonthlyBill{
		BillingMonth:   amounts.BillingMonth,
		DueDate:        amounts.DueDate,
		CreatedAt:      at,
		Status:         models.BillPending,
		BaseAmount:     amounts.BaseAmount,
		ViolationFines: amounts.ViolationFines,
		TotalAmount:    amounts.TotalAmount,
		ID:             id,
		PropertyID:     propertyID,
	}
	r.s.bills[id] = b
	r.s.billIndex[key] = id

	out := cloneBill(b)
	return &out, nil
}

func (r *billRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bills[id]
	if !ok {
		return nil, nil
	}
	b = cloneBill(b)
	return &b, nil
}

func (r *billRepository) list(match func(models.MonthlyBill) bool) []models.MonthlyBill {
	results := []models.MonthlyBill{}
	for _, b := range r.s.bills {
		if match(b) {
			results = append(results, cloneBill(b))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].BillingMonth.Equal(results[j].BillingMonth) {
			return results[i].BillingMonth.After(results[j].BillingMonth)
		}
		return results[i].PropertyID.String() < results[j].PropertyID.String()
	})
	return results
}

func (r *billRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.list(func(b models.MonthlyBill) bool { return b.PropertyID == propertyID }), nil
}

func (r *billRepository) ListAll(ctx context.Context) ([]models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.list(func(models.MonthlyBill) bool { return true }), nil
}

func (r *billRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	results := []models.MonthlyBill{}
	for _, b := range r.s.bills {
		if b.Status == models.BillPending && b.ReminderSentAt == nil && b.DueDate.Before(asOf) {
			results = append(results, cloneBill(b))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].DueDate.Equal(results[j].DueDate) {
			return results[i].DueDate.Before(results[j].DueDate)
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *billRepository) MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (*models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bills[id]
	if !ok || b.Status != models.BillPending || b.ReminderSentAt != nil {
		return nil, nil
	}
	b.Status = models.BillOverdue
	b.ReminderSentAt = copyTime(&at)
	r.s.bills[id] = b

	out := cloneBill(b)
	return &out, nil
}

func (r *billRepository) MarkPaid(ctx context.Context, id uuid.UUID, propertyID *uuid.UUID, at time.Time) (*models.MonthlyBill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bills[id]
	if !ok || b.Status == models.BillPaid {
		return nil, nil
	}
	if propertyID != nil && b.PropertyID != *propertyID {
		return nil, nil
	}
	b.Status = models.BillPaid
	b.PaidAt = copyTime(&at)
	r.s.bills[id] = b

	out := cloneBill(b)
	return &out, nil
}
