package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/stwalsh4118/covenant/internal/models"
)

//go:embed templates/*.html
var templateFiles embed.FS

var severityColors = map[models.Severity]template.CSS{
	models.SeverityLow:    "#16a34a",
	models.SeverityMedium: "#d97706",
	models.SeverityHigh:   "#dc2626",
}

var funcs = template.FuncMap{
	"money":     func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"longDate":  func(t time.Time) string { return t.UTC().Format("January 2, 2006") },
	"shortDate": func(t time.Time) string { return t.UTC().Format("January 2") },
	"monthYear": func(t time.Time) string { return t.UTC().Format("January 2006") },
	"upper":     func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
	"title": func(v any) string {
		s := fmt.Sprint(v)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"severityColor": func(s models.Severity) template.CSS {
		if c, ok := severityColors[s]; ok {
			return c
		}
		return severityColors[models.SeverityLow]
	},
}

// Renderer turns notification payloads into email messages.
type Renderer struct {
	tmpl      *template.Template
	signature string
}

// NewRenderer parses the embedded templates. signature closes every email.
func NewRenderer(signature string) (*Renderer, error) {
	tmpl, err := template.New("notify").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	if signature == "" {
		signature = "HOA Management"
	}
	return &Renderer{tmpl: tmpl, signature: signature}, nil
}

type noticeView struct {
	ViolationNotice
	Deadline  time.Time
	Signature string
}

type reminderView struct {
	OverdueReminder
	Signature string
}

// ViolationNotice renders a compliance notice.
func (r *Renderer) ViolationNotice(n ViolationNotice) (Message, error) {
	var html bytes.Buffer
	view := noticeView{ViolationNotice: n, Deadline: n.Violation.Deadline(), Signature: r.signature}
	if err := r.tmpl.ExecuteTemplate(&html, "violation_notice", view); err != nil {
		return Message{}, fmt.Errorf("failed to render violation notice: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Dear %s,\n\n", n.Property.OwnerName)
	fmt.Fprintf(&text, "A %s severity %s violation was recorded at %s.\n\n",
		n.Violation.Severity, n.Violation.Category, n.Property.Address)
	fmt.Fprintf(&text, "Observed: %s\n", n.Violation.Description)
	if n.Violation.RuleCited != "" {
		fmt.Fprintf(&text, "Rule: %s\n", n.Violation.RuleCited)
	}
	fmt.Fprintf(&text, "Required action: %s\n", n.Violation.Remediation)
	fmt.Fprintf(&text, "Resolve by: %s\n", view.Deadline.UTC().Format("January 2, 2006"))
	if n.Bill != nil {
		fmt.Fprintf(&text, "\nFine: $%.2f\nCurrent monthly bill: $%.2f (due %s)\nCombined score: %d\n",
			n.Violation.FineAmount, n.Bill.TotalAmount, n.Bill.DueDate.UTC().Format("January 2"), n.Property.CombinedScore)
	}
	fmt.Fprintf(&text, "\n%s\n", r.signature)

	return Message{
		To:       n.Property.OwnerEmail,
		ToName:   n.Property.OwnerName,
		Subject:  "HOA Compliance Notice - " + n.Property.Address,
		HTML:     html.String(),
		Text:     text.String(),
		Category: "violation_notice",
	}, nil
}

// OverdueReminder renders a past-due reminder.
func (r *Renderer) OverdueReminder(o OverdueReminder) (Message, error) {
	var html bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&html, "overdue_reminder", reminderView{OverdueReminder: o, Signature: r.signature}); err != nil {
		return Message{}, fmt.Errorf("failed to render overdue reminder: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Dear %s,\n\n", o.Property.OwnerName)
	fmt.Fprintf(&text, "Your HOA payment for %s is overdue.\n\n", o.Property.Address)
	fmt.Fprintf(&text, "Billing period: %s\n", o.Bill.BillingMonth.UTC().Format("January 2006"))
	fmt.Fprintf(&text, "Base fee: $%.2f\n", o.Bill.BaseAmount)
	if o.Bill.ViolationFines > 0 {
		fmt.Fprintf(&text, "Violation fines: $%.2f\n", o.Bill.ViolationFines)
	}
	fmt.Fprintf(&text, "Total due: $%.2f\n", o.Bill.TotalAmount)
	fmt.Fprintf(&text, "Due date: %s (PAST DUE)\n", o.Bill.DueDate.UTC().Format("January 2, 2006"))
	fmt.Fprintf(&text, "\n%s\n", r.signature)

	return Message{
		To:       o.Property.OwnerEmail,
		ToName:   o.Property.OwnerName,
		Subject:  "Payment Overdue - " + o.Property.Address,
		HTML:     html.String(),
		Text:     text.String(),
		Category: "overdue_reminder",
	}, nil
}
