package models

import (
	"time"

	"github.com/google/uuid"
)

// Violation is a rule breach recorded against one property. FineAmount is
// priced once at creation and never recomputed.
type Violation struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	NoticeSentAt *time.Time      `json:"notice_sent_at,omitempty"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	EvidenceRef  *string         `json:"evidence_ref,omitempty"`
	Category     Category        `json:"category"`
	Severity     Severity        `json:"severity"`
	Description  string          `json:"description"`
	RuleCited    string          `json:"rule_cited"`
	Remediation  string          `json:"remediation"`
	Status       ViolationStatus `json:"status"`
	FineAmount   float64         `json:"fine_amount"`
	DeadlineDays int             `json:"deadline_days"`
	ID           uuid.UUID       `json:"id"`
	PropertyID   uuid.UUID       `json:"property_id"`
}

// Deadline is the date by which the violation must be remediated.
func (v Violation) Deadline() time.Time {
	return v.CreatedAt.AddDate(0, 0, v.DeadlineDays)
}

// OpenViolation is the slice of a violation the compliance score depends on.
type OpenViolation struct {
	CreatedAt time.Time
	Severity  Severity
}

// TimelineEntry is a violation row joined with its property's address.
type TimelineEntry struct {
	CreatedAt       time.Time       `json:"created_at"`
	Severity        Severity        `json:"severity"`
	Category        Category        `json:"category"`
	Status          ViolationStatus `json:"status"`
	PropertyAddress string          `json:"property_address"`
	ID              uuid.UUID       `json:"id"`
	PropertyID      uuid.UUID       `json:"property_id"`
}
