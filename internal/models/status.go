package models

import "fmt"

// Severity grades a violation. It drives both the fine base and the score deduction.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ParseSeverity converts a stored or user supplied string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Category tags the kind of rule a violation breaks.
type Category string

const (
	CategoryLandscaping Category = "landscaping"
	CategoryTrash       Category = "trash"
	CategoryParking     Category = "parking"
	CategoryStructural  Category = "structural"
	CategoryNoise       Category = "noise"
	CategoryPets        Category = "pets"
	CategorySignage     Category = "signage"
	CategoryOther       Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLandscaping, CategoryTrash, CategoryParking, CategoryStructural,
		CategoryNoise, CategoryPets, CategorySignage, CategoryOther:
		return true
	}
	return false
}

// ParseCategory converts a stored or user supplied string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// ViolationStatus is the lifecycle state of a violation.
//
//	open -> pending_review (tenant flags fixed)
//	open | pending_review -> resolved (admin confirms)
//	pending_review -> open (admin rejects the fix)
type ViolationStatus string

const (
	ViolationOpen          ViolationStatus = "open"
	ViolationPendingReview ViolationStatus = "pending_review"
	ViolationResolved      ViolationStatus = "resolved"
)

// Valid reports whether s is one of the known violation statuses.
func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationOpen, ViolationPendingReview, ViolationResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s ViolationStatus) CanTransitionTo(next ViolationStatus) bool {
	switch s {
	case ViolationOpen:
		return next == ViolationPendingReview || next == ViolationResolved
	case ViolationPendingReview:
		return next == ViolationOpen || next == ViolationResolved
	}
	return false
}

// ParseViolationStatus converts a stored string into a ViolationStatus.
func ParseViolationStatus(s string) (ViolationStatus, error) {
	st := ViolationStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown violation status %q", s)
	}
	return st, nil
}

// BillStatus is the payment state of a monthly bill. Only pending bills may
// have their amounts refreshed.
//
//	pending -> overdue (sweep) | paid (pay)
//	overdue -> paid (pay)
type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillOverdue BillStatus = "overdue"
	BillPaid    BillStatus = "paid"
)

// Valid reports whether s is one of the known bill statuses.
func (s BillStatus) Valid() bool {
	switch s {
	case BillPending, BillOverdue, BillPaid:
		return true
	}
	return false
}

// Frozen reports whether the bill's monetary fields are locked.
func (s BillStatus) Frozen() bool {
	return s != BillPending
}

// CanTransitionTo reports whether a bill may move from s to next.
func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	switch s {
	case BillPending:
		return next == BillOverdue || next == BillPaid
	case BillOverdue:
		return next == BillPaid
	}
	return false
}

// ParseBillStatus converts a stored string into a BillStatus.
func ParseBillStatus(s string) (BillStatus, error) {
	st := BillStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown bill status %q", s)
	}
	return st, nil
}
