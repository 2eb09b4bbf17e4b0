package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/covenant/internal/config"
	"github.com/stwalsh4118/covenant/internal/logger"
	"github.com/stwalsh4118/covenant/internal/models"
)

var sentAt = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func testProperty() models.Property {
	return models.Property{
		Address:       "12 Oak Lane",
		OwnerName:     "Dana Smith",
		OwnerEmail:    "dana@example.com",
		CombinedScore: 94,
		ID:            uuid.New(),
	}
}

func testViolation() models.Violation {
	return models.Violation{
		CreatedAt:    sentAt,
		Category:     models.CategoryLandscaping,
		Severity:     models.SeverityMedium,
		Description:  "Lawn exceeds 6 inches",
		RuleCited:    "Section 4.2 <Landscaping>",
		Remediation:  "Mow the front lawn",
		Status:       models.ViolationOpen,
		FineAmount:   100,
		DeadlineDays: 14,
		ID:           uuid.New(),
	}
}

func testBill() models.MonthlyBill {
	month := models.BillingMonthOf(sentAt)
	return models.MonthlyBill{
		BillingMonth:   month,
		DueDate:        models.DueDateOf(month),
		Status:         models.BillOverdue,
		BaseAmount:     50,
		ViolationFines: 100,
		TotalAmount:    150,
		ID:             uuid.New(),
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("")
	require.NoError(t, err)
	return r
}

func TestRenderer_ViolationNotice(t *testing.T) {
	r := newTestRenderer(t)
	bill := testBill()

	msg, err := r.ViolationNotice(ViolationNotice{
		SentAt:    sentAt,
		Bill:      &bill,
		Property:  testProperty(),
		Violation: testViolation(),
	})
	require.NoError(t, err)

	assert.Equal(t, "dana@example.com", msg.To)
	assert.Equal(t, "HOA Compliance Notice - 12 Oak Lane", msg.Subject)
	assert.Equal(t, "violation_notice", msg.Category)
	assert.Contains(t, msg.HTML, "Landscaping")
	assert.Contains(t, msg.HTML, "MEDIUM SEVERITY")
	assert.Contains(t, msg.HTML, "Resolution Deadline: March 17, 2026", "deadline is created_at + 14 days")
	assert.Contains(t, msg.HTML, "Financial Summary")
	assert.Contains(t, msg.HTML, "$100.00")
	assert.Contains(t, msg.HTML, "$150.00")
	assert.Contains(t, msg.HTML, "March 15")
	assert.Contains(t, msg.HTML, "&lt;Landscaping&gt;", "user text is escaped")
	assert.Contains(t, msg.HTML, "HOA Management")
	assert.Contains(t, msg.Text, "Resolve by: March 17, 2026")
}

func TestRenderer_ViolationNotice_WithoutBill(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.ViolationNotice(ViolationNotice{SentAt: sentAt, Property: testProperty(), Violation: testViolation()})
	require.NoError(t, err)

	assert.NotContains(t, msg.HTML, "Financial Summary")
	assert.NotContains(t, msg.Text, "Current monthly bill")
}

func TestRenderer_OverdueReminder(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.OverdueReminder(OverdueReminder{SentAt: sentAt, Property: testProperty(), Bill: testBill()})
	require.NoError(t, err)

	assert.Equal(t, "Payment Overdue - 12 Oak Lane", msg.Subject)
	assert.Contains(t, msg.HTML, "March 2026")
	assert.Contains(t, msg.HTML, "Violation fines")
	assert.Contains(t, msg.HTML, "PAST DUE")
	assert.Contains(t, msg.Text, "Total due: $150.00")
}

func TestRenderer_OverdueReminder_NoFines(t *testing.T) {
	r := newTestRenderer(t)
	bill := testBill()
	bill.ViolationFines = 0
	bill.TotalAmount = 50

	msg, err := r.OverdueReminder(OverdueReminder{SentAt: sentAt, Property: testProperty(), Bill: bill})
	require.NoError(t, err)

	assert.NotContains(t, msg.HTML, "Violation fines")
	assert.NotContains(t, msg.Text, "Violation fines")
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestEmailNotifier(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewEmailNotifier(mailer, newTestRenderer(t))

	require.NoError(t, n.SendViolationNotice(context.Background(), ViolationNotice{
		SentAt: sentAt, Property: testProperty(), Violation: testViolation(),
	}))
	require.NoError(t, n.SendOverdueReminder(context.Background(), OverdueReminder{
		SentAt: sentAt, Property: testProperty(), Bill: testBill(),
	}))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "violation_notice", mailer.sent[0].Category)
	assert.Equal(t, "overdue_reminder", mailer.sent[1].Category)
}

func TestEmailNotifier_NoRecipient(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewEmailNotifier(mailer, newTestRenderer(t))

	p := testProperty()
	p.OwnerEmail = ""
	err := n.SendOverdueReminder(context.Background(), OverdueReminder{Property: p, Bill: testBill()})

	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, mailer.sent)
}

func TestEmailNotifier_MailerError(t *testing.T) {
	boom := errors.New("smtp down")
	n := NewEmailNotifier(&recordingMailer{err: boom}, newTestRenderer(t))

	err := n.SendViolationNotice(context.Background(), ViolationNotice{Property: testProperty(), Violation: testViolation()})
	assert.ErrorIs(t, err, boom)
}

type fakeSendClient struct {
	got  *mail.SGMailV3
	resp *rest.Response
	err  error
}

func (f *fakeSendClient) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	return f.resp, f.err
}

func TestSendGridMailer_Send(t *testing.T) {
	client := &fakeSendClient{resp: &rest.Response{StatusCode: 202}}
	m := newSendGridMailer(client, config.EmailConfig{From: "noreply@covenant.local", FromName: "HOA Management"})

	err := m.Send(context.Background(), Message{
		To: "dana@example.com", ToName: "Dana Smith", Subject: "Hello", HTML: "<p>hi</p>", Text: "hi", Category: "overdue_reminder",
	})
	require.NoError(t, err)

	require.NotNil(t, client.got)
	assert.Equal(t, "noreply@covenant.local", client.got.From.Address)
	assert.Equal(t, "Hello", client.got.Subject)
	require.Len(t, client.got.Personalizations, 1)
	assert.Equal(t, "dana@example.com", client.got.Personalizations[0].To[0].Address)
	assert.Equal(t, []string{"overdue_reminder"}, client.got.Categories)
}

func TestSendGridMailer_RejectedStatus(t *testing.T) {
	client := &fakeSendClient{resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}}
	m := newSendGridMailer(client, config.EmailConfig{From: "noreply@covenant.local"})

	err := m.Send(context.Background(), Message{To: "dana@example.com", Subject: "Hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendGridMailer_TransportError(t *testing.T) {
	boom := errors.New("dial tcp: timeout")
	m := newSendGridMailer(&fakeSendClient{err: boom}, config.EmailConfig{From: "noreply@covenant.local"})

	err := m.Send(context.Background(), Message{To: "dana@example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(logger.NewWithWriter(&buf, zerolog.InfoLevel))

	require.NoError(t, m.Send(context.Background(), Message{To: "dana@example.com", Subject: "Hello"}))
	assert.Contains(t, buf.String(), "dana@example.com")
	assert.Contains(t, buf.String(), "Hello")
}
