package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/notify"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// Deadline validation constants
const (
	DefaultDeadlineDays = 14
	MinDeadlineDays     = 1
	MaxDeadlineDays     = 365
)

// CreateViolationInput carries the operator-reviewed fields of a new violation.
type CreateViolationInput struct {
	EvidenceRef  *string         `json:"evidence_ref,omitempty"`
	Category     models.Category `json:"category"`
	Severity     models.Severity `json:"severity"`
	Description  string          `json:"description"`
	RuleCited    string          `json:"rule_cited"`
	Remediation  string          `json:"remediation"`
	DeadlineDays int             `json:"deadline_days"`
	PropertyID   uuid.UUID       `json:"property_id"`
	SendNotice   bool            `json:"send_notice"`
}

// EditViolationInput holds corrections; nil fields are left unchanged.
type EditViolationInput struct {
	Category     *models.Category
	Severity     *models.Severity
	Description  *string
	RuleCited    *string
	Remediation  *string
	DeadlineDays *int
}

// NoticeStatus reports a notification attempt. Failure never fails the
// operation that triggered it.
type NoticeStatus struct {
	Error     string `json:"error,omitempty"`
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
}

// ViolationResult is a violation after a state change together with the
// scores and current bill that change produced.
type ViolationResult struct {
	Violation *models.Violation   `json:"violation"`
	Scores    *models.Scores      `json:"scores,omitempty"`
	Bill      *models.MonthlyBill `json:"bill,omitempty"`
	Notice    *NoticeStatus       `json:"notice,omitempty"`
}

// AnalysisRequest asks the analysis collaborator about one piece of evidence.
type AnalysisRequest struct {
	EvidenceRef string
	Hint        string
	Property    models.Property
}

// Proposal is the analysis collaborator's suggestion for a new violation.
type Proposal struct {
	Category     string
	Severity     string
	Description  string
	RuleCited    string
	Remediation  string
	DeadlineDays int
}

// Analyzer proposes violation fields from evidence such as a photo.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Proposal, error)
}

// ViolationService defines the violation lifecycle operations.
type ViolationService interface {
	// Create prices and records a new open violation, then rescores the
	// property and refreshes its current bill.
	Create(ctx context.Context, in CreateViolationInput) (*ViolationResult, error)

	// FlagFixed moves an open violation of the given property to
	// pending_review, then rescores the property and refreshes its current
	// bill. Returns ErrViolationNotActionable otherwise.
	FlagFixed(ctx context.Context, violationID, propertyID uuid.UUID, evidenceRef *string) (*ViolationResult, error)

	// ConfirmResolved resolves an open or pending_review violation.
	ConfirmResolved(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error)

	// RejectFix reopens a pending_review violation.
	RejectFix(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error)

	// Edit corrects a violation's descriptive fields without changing its
	// status or fine.
	Edit(ctx context.Context, violationID uuid.UUID, in EditViolationInput) (*ViolationResult, error)

	// SendNotice (re)sends the compliance notice for a violation.
	SendNotice(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error)

	Get(ctx context.Context, violationID uuid.UUID) (*models.Violation, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Violation, error)
	Timeline(ctx context.Context) ([]models.TimelineEntry, error)

	// Draft turns an analysis proposal into an editable input. Nothing is
	// persisted.
	Draft(ctx context.Context, propertyID uuid.UUID, evidenceRef, hint string) (*CreateViolationInput, error)
}

// violationService is the concrete implementation of ViolationService.
type violationService struct {
	Deps
	scoring  ScoringService
	billing  BillingService
	analyzer Analyzer
}

// NewViolationService creates a new instance of ViolationService. analyzer may
// be nil, in which case Draft returns ErrAnalysisUnavailable.
func NewViolationService(deps Deps, scoring ScoringService, billing BillingService, analyzer Analyzer) ViolationService {
	return &violationService{
		Deps:     deps.withDefaults("violations"),
		scoring:  scoring,
		billing:  billing,
		analyzer: analyzer,
	}
}

func validateViolationFields(category models.Category, severity models.Severity, description string, deadlineDays int) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidViolation, category)
	}
	if !severity.Valid() {
		return fmt.Errorf("%w: severity must be low, medium or high, got %q", ErrInvalidViolation, severity)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidViolation)
	}
	if deadlineDays < MinDeadlineDays || deadlineDays > MaxDeadlineDays {
		return fmt.Errorf("%w: deadline must be between %d and %d days, got %d",
			ErrInvalidViolation, MinDeadlineDays, MaxDeadlineDays, deadlineDays)
	}
	return nil
}

func (s *violationService) loadProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	property, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Property, error) {
		return s.Store.Properties.FindByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return nil, ErrPropertyNotFound
	}
	return property, nil
}

func (s *violationService) loadViolation(ctx context.Context, id uuid.UUID) (*models.Violation, error) {
	v, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Violation, error) {
		return s.Store.Violations.FindByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load violation: %w", err)
	}
	if v == nil {
		return nil, ErrViolationNotFound
	}
	return v, nil
}

// Create records the violation priced at the property's current combined score.
func (s *violationService) Create(ctx context.Context, in CreateViolationInput) (*ViolationResult, error) {
	if in.DeadlineDays == 0 {
		in.DeadlineDays = DefaultDeadlineDays
	}
	if err := validateViolationFields(in.Category, in.Severity, in.Description, in.DeadlineDays); err != nil {
		s.Log.Warn("Rejected violation", map[string]interface{}{
			"property_id": in.PropertyID,
			"reason":      err.Error(),
		})
		return nil, err
	}

	property, err := s.loadProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	v := &models.Violation{
		CreatedAt:    now,
		UpdatedAt:    now,
		EvidenceRef:  in.EvidenceRef,
		Category:     in.Category,
		Severity:     in.Severity,
		Description:  strings.TrimSpace(in.Description),
		RuleCited:    strings.TrimSpace(in.RuleCited),
		Remediation:  strings.TrimSpace(in.Remediation),
		Status:       models.ViolationOpen,
		FineAmount:   scoring.Fine(in.Severity, property.CombinedScore),
		DeadlineDays: in.DeadlineDays,
		ID:           uuid.New(),
		PropertyID:   property.ID,
	}

	if err := exec(ctx, s.Deps, func(ctx context.Context) error {
		return s.Store.Violations.Create(ctx, v)
	}); err != nil {
		s.Log.Error("Failed to create violation", err, map[string]interface{}{
			"property_id": property.ID,
		})
		return nil, fmt.Errorf("failed to create violation: %w", err)
	}

	s.Metrics.IncrementViolationsCreated(string(v.Severity))
	s.Log.Info("Violation created", map[string]interface{}{
		"violation_id":   v.ID,
		"property_id":    property.ID,
		"severity":       v.Severity,
		"fine_amount":    v.FineAmount,
		"combined_score": property.CombinedScore,
	})

	result, err := s.refresh(ctx, v)
	if err != nil {
		return nil, err
	}
	if in.SendNotice {
		result.Notice = s.notify(ctx, v, result.Bill)
	}
	return result, nil
}

// refresh rescores the violation's property and then refreshes its current
// bill, in that order, so the bill reflects the change.
func (s *violationService) refresh(ctx context.Context, v *models.Violation) (*ViolationResult, error) {
	scores, err := s.scoring.Recalculate(ctx, v.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("violation %s saved but rescoring failed: %w", v.ID, err)
	}
	bill, err := s.billing.EnsureCurrentBill(ctx, v.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("violation %s saved but bill refresh failed: %w", v.ID, err)
	}
	return &ViolationResult{Violation: v, Scores: scores, Bill: bill}, nil
}

// notify sends the compliance notice after every state change has committed
// and records the outcome instead of returning an error.
func (s *violationService) notify(ctx context.Context, v *models.Violation, bill *models.MonthlyBill) *NoticeStatus {
	status := &NoticeStatus{Attempted: true}

	fields := map[string]interface{}{
		"violation_id": v.ID,
		"property_id":  v.PropertyID,
	}

	property, err := s.loadProperty(ctx, v.PropertyID)
	if err == nil && s.Notifier == nil {
		err = errNotifierMissing
	}
	if err == nil {
		fields["recipient"] = property.OwnerEmail
		err = s.Notifier.SendViolationNotice(ctx, notify.ViolationNotice{
			SentAt:    s.now(),
			Bill:      bill,
			Property:  *property,
			Violation: *v,
		})
	}
	if err != nil {
		status.Error = err.Error()
		s.Metrics.IncrementNotificationFailures("violation_notice")
		s.Log.Error("Violation notice not delivered", err, fields)
		return status
	}

	sentAt := s.now()
	if err := exec(ctx, s.Deps, func(ctx context.Context) error {
		return s.Store.Violations.MarkNoticeSent(ctx, v.ID, sentAt)
	}); err != nil {
		s.Log.Error("Notice sent but not recorded", err, fields)
	} else {
		v.NoticeSentAt = &sentAt
	}

	status.Sent = true
	s.Log.Info("Violation notice sent", fields)
	return status
}

// FlagFixed records a tenant's claim that the violation has been remedied.
// A pending_review violation no longer counts as open, so the property is
// rescored and its current bill refreshed.
func (s *violationService) FlagFixed(ctx context.Context, violationID, propertyID uuid.UUID, evidenceRef *string) (*ViolationResult, error) {
	v, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Violation, error) {
		return s.Store.Violations.Transition(ctx, repository.TransitionRequest{
			At:          s.now(),
			PropertyID:  &propertyID,
			EvidenceRef: evidenceRef,
			From:        []models.ViolationStatus{models.ViolationOpen},
			To:          models.ViolationPendingReview,
			ID:          violationID,
		})
	})
	if err != nil {
		s.Log.Error("Failed to flag violation fixed", err, map[string]interface{}{
			"violation_id": violationID,
			"property_id":  propertyID,
		})
		return nil, fmt.Errorf("failed to flag violation fixed: %w", err)
	}
	if v == nil {
		return nil, ErrViolationNotActionable
	}

	s.Metrics.IncrementViolationTransition(string(models.ViolationPendingReview))
	s.Log.Info("Violation flagged fixed", map[string]interface{}{
		"violation_id": violationID,
		"property_id":  propertyID,
	})
	return s.refresh(ctx, v)
}

// transition applies an admin status change and, if it took effect, rescores
// and refreshes the bill. wrongState is returned when the violation exists but
// is not in one of from.
func (s *violationService) transition(ctx context.Context, violationID uuid.UUID, from []models.ViolationStatus, to models.ViolationStatus, wrongState error) (*ViolationResult, error) {
	v, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Violation, error) {
		return s.Store.Violations.Transition(ctx, repository.TransitionRequest{
			At:   s.now(),
			From: from,
			To:   to,
			ID:   violationID,
		})
	})
	if err != nil {
		s.Log.Error("Failed to transition violation", err, map[string]interface{}{
			"violation_id": violationID,
			"to":           to,
		})
		return nil, fmt.Errorf("failed to transition violation: %w", err)
	}
	if v == nil {
		current, err := s.loadViolation(ctx, violationID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: violation is %s", wrongState, current.Status)
	}

	s.Metrics.IncrementViolationTransition(string(to))
	s.Log.Info("Violation status changed", map[string]interface{}{
		"violation_id": v.ID,
		"property_id":  v.PropertyID,
		"to":           to,
	})

	return s.refresh(ctx, v)
}

// ConfirmResolved closes the violation; it stops counting against the score.
func (s *violationService) ConfirmResolved(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error) {
	return s.transition(ctx, violationID,
		[]models.ViolationStatus{models.ViolationOpen, models.ViolationPendingReview},
		models.ViolationResolved, ErrInvalidTransition)
}

// RejectFix returns a flagged violation to open.
func (s *violationService) RejectFix(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error) {
	return s.transition(ctx, violationID,
		[]models.ViolationStatus{models.ViolationPendingReview},
		models.ViolationOpen, ErrNotPendingReview)
}

// Edit merges the corrections over the stored violation. The fine stays as
// priced at creation.
func (s *violationService) Edit(ctx context.Context, violationID uuid.UUID, in EditViolationInput) (*ViolationResult, error) {
	current, err := s.loadViolation(ctx, violationID)
	if err != nil {
		return nil, err
	}

	edit := repository.ViolationEdit{
		Category:     current.Category,
		Severity:     current.Severity,
		Description:  current.Description,
		RuleCited:    current.RuleCited,
		Remediation:  current.Remediation,
		DeadlineDays: current.DeadlineDays,
	}
	if in.Category != nil {
		edit.Category = *in.Category
	}
	if in.Severity != nil {
		edit.Severity = *in.Severity
	}
	if in.Description != nil {
		edit.Description = strings.TrimSpace(*in.Description)
	}
	if in.RuleCited != nil {
		edit.RuleCited = strings.TrimSpace(*in.RuleCited)
	}
	if in.Remediation != nil {
		edit.Remediation = strings.TrimSpace(*in.Remediation)
	}
	if in.DeadlineDays != nil {
		edit.DeadlineDays = *in.DeadlineDays
	}
	if err := validateViolationFields(edit.Category, edit.Severity, edit.Description, edit.DeadlineDays); err != nil {
		return nil, err
	}

	v, err := call(ctx, s.Deps, func(ctx context.Context) (*models.Violation, error) {
		return s.Store.Violations.Update(ctx, violationID, edit, s.now())
	})
	if err != nil {
		s.Log.Error("Failed to edit violation", err, map[string]interface{}{
			"violation_id": violationID,
		})
		return nil, fmt.Errorf("failed to edit violation: %w", err)
	}
	if v == nil {
		return nil, ErrViolationNotFound
	}

	s.Log.Info("Violation edited", map[string]interface{}{
		"violation_id": v.ID,
		"property_id":  v.PropertyID,
		"severity":     v.Severity,
	})

	return s.refresh(ctx, v)
}

// SendNotice resends the notice for an existing violation, including the
// current bill in the financial summary.
func (s *violationService) SendNotice(ctx context.Context, violationID uuid.UUID) (*ViolationResult, error) {
	v, err := s.loadViolation(ctx, violationID)
	if err != nil {
		return nil, err
	}
	bill, err := s.billing.EnsureCurrentBill(ctx, v.PropertyID)
	if err != nil {
		return nil, err
	}

	return &ViolationResult{
		Violation: v,
		Bill:      bill,
		Notice:    s.notify(ctx, v, bill),
	}, nil
}

// Get returns one violation.
func (s *violationService) Get(ctx context.Context, violationID uuid.UUID) (*models.Violation, error) {
	return s.loadViolation(ctx, violationID)
}

// ListByProperty returns the property's violations, newest first.
func (s *violationService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Violation, error) {
	if _, err := s.loadProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	list, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.Violation, error) {
		return s.Store.Violations.ListByProperty(ctx, propertyID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	return list, nil
}

// Timeline returns every violation in the community, oldest first.
func (s *violationService) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	entries, err := call(ctx, s.Deps, func(ctx context.Context) ([]models.TimelineEntry, error) {
		return s.Store.Violations.Timeline(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load violation timeline: %w", err)
	}
	return entries, nil
}

// Draft asks the analyzer for a proposal and normalizes it into input the
// operator can review. Unknown categories become "other" and unknown
// severities "low".
func (s *violationService) Draft(ctx context.Context, propertyID uuid.UUID, evidenceRef, hint string) (*CreateViolationInput, error) {
	if s.analyzer == nil {
		return nil, ErrAnalysisUnavailable
	}
	property, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	proposal, err := s.analyzer.Analyze(ctx, AnalysisRequest{
		EvidenceRef: evidenceRef,
		Hint:        hint,
		Property:    *property,
	})
	if err != nil {
		s.Log.Error("Violation analysis failed", err, map[string]interface{}{
			"property_id":  propertyID,
			"evidence_ref": evidenceRef,
		})
		return nil, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}

	draft := &CreateViolationInput{
		Category:     models.CategoryOther,
		Severity:     models.SeverityLow,
		Description:  strings.TrimSpace(proposal.Description),
		RuleCited:    strings.TrimSpace(proposal.RuleCited),
		Remediation:  strings.TrimSpace(proposal.Remediation),
		DeadlineDays: proposal.DeadlineDays,
		PropertyID:   propertyID,
	}
	if c, err := models.ParseCategory(strings.ToLower(proposal.Category)); err == nil {
		draft.Category = c
	}
	if sev, err := models.ParseSeverity(strings.ToLower(proposal.Severity)); err == nil {
		draft.Severity = sev
	}
	if draft.DeadlineDays < MinDeadlineDays || draft.DeadlineDays > MaxDeadlineDays {
		draft.DeadlineDays = DefaultDeadlineDays
	}
	if evidenceRef != "" {
		draft.EvidenceRef = &evidenceRef
	}

	return draft, nil
}
