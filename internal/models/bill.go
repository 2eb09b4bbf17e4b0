package models

import (
	"time"

	"github.com/google/uuid"
)

// DueDay is the day of the billing month on which a bill falls due.
const DueDay = 15

// MonthlyBill is the charge for one property for one calendar month.
// (PropertyID, BillingMonth) is unique.
type MonthlyBill struct {
	BillingMonth   time.Time  `json:"billing_month"`
	DueDate        time.Time  `json:"due_date"`
	CreatedAt      time.Time  `json:"created_at"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	Status         BillStatus `json:"status"`
	BaseAmount     float64    `json:"base_amount"`
	ViolationFines float64    `json:"violation_fines"`
	TotalAmount    float64    `json:"total_amount"`
	ID             uuid.UUID  `json:"id"`
	PropertyID     uuid.UUID  `json:"property_id"`
}

// BillingMonthOf normalizes t to the first day of its month in UTC.
func BillingMonthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DueDateOf returns the due date for a billing month.
func DueDateOf(billingMonth time.Time) time.Time {
	m := BillingMonthOf(billingMonth)
	return time.Date(m.Year(), m.Month(), DueDay, 0, 0, 0, 0, time.UTC)
}

// BillAmounts are the computed monetary fields of a bill before it is stored.
type BillAmounts struct {
	BillingMonth   time.Time
	DueDate        time.Time
	BaseAmount     float64
	ViolationFines float64
	TotalAmount    float64
}

// Matches reports whether the bill carries exactly these amounts.
func (b *MonthlyBill) Matches(a BillAmounts) bool {
	return b.BaseAmount == a.BaseAmount &&
		b.ViolationFines == a.ViolationFines &&
		b.TotalAmount == a.TotalAmount
}

// PropertyFinance is one property's row in the finance summary.
type PropertyFinance struct {
	Address         string        `json:"address"`
	OwnerName       string        `json:"owner_name"`
	OwnerEmail      string        `json:"owner_email"`
	Bills           []MonthlyBill `json:"bills"`
	TotalOwed       float64       `json:"total_owed"`
	OverdueCount    int           `json:"overdue_count"`
	ComplianceScore int           `json:"compliance_score"`
	CombinedScore   int           `json:"combined_score"`
	PropertyID      uuid.UUID     `json:"property_id"`
}

// FinanceSummary aggregates what the community is owed.
type FinanceSummary struct {
	Properties         []PropertyFinance `json:"properties"`
	CommunityTotalOwed float64           `json:"community_total_owed"`
	OverdueCount       int               `json:"overdue_count"`
}
