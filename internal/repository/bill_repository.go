package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/covenant/internal/database"
	"github.com/stwalsh4118/covenant/internal/models"
)

const billColumns = `
	id,
	property_id,
	billing_month,
	base_amount,
	violation_fines,
	total_amount,
	due_date,
	status,
	reminder_sent_at,
	paid_at,
	created_at`

// billRepository is the PostgreSQL implementation of BillRepository.
type billRepository struct {
	db *database.Database
}

// NewBillRepository creates a new instance of BillRepository.
func NewBillRepository(db *database.Database) BillRepository {
	return &billRepository{
		db: db,
	}
}

func scanBill(row rowScanner) (*models.MonthlyBill, error) {
	var b models.MonthlyBill
	var status string

	err := row.Scan(
		&b.ID,
		&b.PropertyID,
		&b.BillingMonth,
		&b.BaseAmount,
		&b.ViolationFines,
		&b.TotalAmount,
		&b.DueDate,
		&status,
		&b.ReminderSentAt,
		&b.PaidAt,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.Status, err = models.ParseBillStatus(status); err != nil {
		return nil, fmt.Errorf("bill %s: %w", b.ID, err)
	}
	return &b, nil
}

func (r *billRepository) queryOne(ctx context.Context, query string, args ...any) (*models.MonthlyBill, error) {
	b, err := scanBill(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (r *billRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.MonthlyBill, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.MonthlyBill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill row: %w", err)
		}
		results = append(results, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bill rows: %w", err)
	}
	return results, nil
}

// Upsert writes the month's bill. The ON CONFLICT update only applies while
// the stored row is pending, so a frozen bill is never rewritten even when two
// refreshes race. When the update is skipped the frozen row is read back.
func (r *billRepository) Upsert(ctx context.Context, id, propertyID uuid.UUID, amounts models.BillAmounts, at time.Time) (*models.MonthlyBill, error) {
	query := `
		INSERT INTO monthly_bills (
			id, property_id, billing_month, base_amount, violation_fines, total_amount,
			due_date, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		ON CONFLICT (property_id, billing_month) DO UPDATE
		SET base_amount = EXCLUDED.base_amount,
			violation_fines = EXCLUDED.violation_fines,
			total_amount = EXCLUDED.total_amount
		WHERE monthly_bills.status = 'pending'
		RETURNING ` + billColumns

	b, err := r.queryOne(ctx, query,
		id,
		propertyID,
		amounts.BillingMonth,
		amounts.BaseAmount,
		amounts.ViolationFines,
		amounts.TotalAmount,
		amounts.DueDate,
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert bill for property %s: %w", propertyID, err)
	}
	if b != nil {
		return b, nil
	}

	b, err = r.queryOne(ctx,
		`SELECT `+billColumns+` FROM monthly_bills WHERE property_id = $1 AND billing_month = $2`,
		propertyID, amounts.BillingMonth,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read frozen bill for property %s: %w", propertyID, err)
	}
	if b == nil {
		return nil, fmt.Errorf("bill for property %s month %s vanished during upsert",
			propertyID, amounts.BillingMonth.Format("2006-01"))
	}
	return b, nil
}

// FindByID returns the bill with the given id.
func (r *billRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MonthlyBill, error) {
	b, err := r.queryOne(ctx, `SELECT `+billColumns+` FROM monthly_bills WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill %s: %w", id, err)
	}
	return b, nil
}

// ListByProperty returns the property's bills, newest month first.
func (r *billRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MonthlyBill, error) {
	bills, err := r.queryMany(ctx,
		`SELECT `+billColumns+` FROM monthly_bills WHERE property_id = $1 ORDER BY billing_month DESC`,
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills for property %s: %w", propertyID, err)
	}
	return bills, nil
}

// ListAll returns every bill, newest month first.
func (r *billRepository) ListAll(ctx context.Context) ([]models.MonthlyBill, error) {
	bills, err := r.queryMany(ctx,
		`SELECT `+billColumns+` FROM monthly_bills ORDER BY billing_month DESC, property_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	return bills, nil
}

// FindOverdueCandidates returns pending bills whose due date is before asOf
// and that have not been reminded.
func (r *billRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.MonthlyBill, error) {
	bills, err := r.queryMany(ctx, `
		SELECT `+billColumns+`
		FROM monthly_bills
		WHERE status = 'pending'
			AND reminder_sent_at IS NULL
			AND due_date < $1
		ORDER BY due_date ASC, id
		LIMIT $2
	`, asOf.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue candidates: %w", err)
	}
	return bills, nil
}

// MarkOverdue is the sweep's compare-and-set. reminder_sent_at IS NULL makes a
// second sweep over the same bill a no-op.
func (r *billRepository) MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (*models.MonthlyBill, error) {
	b, err := r.queryOne(ctx, `
		UPDATE monthly_bills
		SET status = 'overdue', reminder_sent_at = $2
		WHERE id = $1
			AND status = 'pending'
			AND reminder_sent_at IS NULL
		RETURNING `+billColumns,
		id, at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark bill %s overdue: %w", id, err)
	}
	return b, nil
}

// MarkPaid moves an unpaid bill to paid.
func (r *billRepository) MarkPaid(ctx context.Context, id uuid.UUID, propertyID *uuid.UUID, at time.Time) (*models.MonthlyBill, error) {
	b, err := r.queryOne(ctx, `
		UPDATE monthly_bills
		SET status = 'paid', paid_at = $2
		WHERE id = $1
			AND status <> 'paid'
			AND ($3::uuid IS NULL OR property_id = $3)
		RETURNING `+billColumns,
		id, at, propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark bill %s paid: %w", id, err)
	}
	return b, nil
}
