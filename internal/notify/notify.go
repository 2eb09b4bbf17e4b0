// Package notify delivers owner-facing emails: the violation notice and the
// overdue payment reminder. Delivery is best effort; callers record failures
// instead of propagating them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/stwalsh4118/covenant/internal/models"
)

// ErrNoRecipient is returned when the property has no owner email.
var ErrNoRecipient = errors.New("property has no owner email")

// ViolationNotice is the payload of a compliance notice. Bill, when present,
// adds the financial summary block.
type ViolationNotice struct {
	SentAt    time.Time
	Bill      *models.MonthlyBill
	Property  models.Property
	Violation models.Violation
}

// OverdueReminder is the payload of a past-due payment reminder.
type OverdueReminder struct {
	SentAt   time.Time
	Property models.Property
	Bill     models.MonthlyBill
}

// Notifier sends owner notifications.
type Notifier interface {
	SendViolationNotice(ctx context.Context, n ViolationNotice) error
	SendOverdueReminder(ctx context.Context, r OverdueReminder) error
}

// Message is a rendered email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Category string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EmailNotifier renders notifications and hands them to a Mailer.
type EmailNotifier struct {
	mailer   Mailer
	renderer *Renderer
}

// NewEmailNotifier creates a Notifier that delivers through mailer.
func NewEmailNotifier(mailer Mailer, renderer *Renderer) *EmailNotifier {
	return &EmailNotifier{
		mailer:   mailer,
		renderer: renderer,
	}
}

// SendViolationNotice renders and sends a compliance notice.
func (n *EmailNotifier) SendViolationNotice(ctx context.Context, notice ViolationNotice) error {
	if notice.Property.OwnerEmail == "" {
		return ErrNoRecipient
	}
	msg, err := n.renderer.ViolationNotice(notice)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

// SendOverdueReminder renders and sends a past-due reminder.
func (n *EmailNotifier) SendOverdueReminder(ctx context.Context, reminder OverdueReminder) error {
	if reminder.Property.OwnerEmail == "" {
		return ErrNoRecipient
	}
	msg, err := n.renderer.OverdueReminder(reminder)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}
