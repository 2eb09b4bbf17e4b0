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

const violationColumns = `
	id,
	property_id,
	category,
	severity,
	description,
	rule_cited,
	remediation,
	deadline_days,
	status,
	fine_amount,
	evidence_ref,
	notice_sent_at,
	resolved_at,
	created_at,
	updated_at`

// violationRepository is the PostgreSQL implementation of ViolationRepository.
type violationRepository struct {
	db *database.Database
}

// NewViolationRepository creates a new instance of ViolationRepository.
func NewViolationRepository(db *database.Database) ViolationRepository {
	return &violationRepository{
		db: db,
	}
}

func scanViolation(row rowScanner) (*models.Violation, error) {
	var v models.Violation
	var category, severity, status string

	err := row.Scan(
		&v.ID,
		&v.PropertyID,
		&category,
		&severity,
		&v.Description,
		&v.RuleCited,
		&v.Remediation,
		&v.DeadlineDays,
		&status,
		&v.FineAmount,
		&v.EvidenceRef,
		&v.NoticeSentAt,
		&v.ResolvedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if v.Category, err = models.ParseCategory(category); err != nil {
		return nil, fmt.Errorf("violation %s: %w", v.ID, err)
	}
	if v.Severity, err = models.ParseSeverity(severity); err != nil {
		return nil, fmt.Errorf("violation %s: %w", v.ID, err)
	}
	if v.Status, err = models.ParseViolationStatus(status); err != nil {
		return nil, fmt.Errorf("violation %s: %w", v.ID, err)
	}

	return &v, nil
}

func (r *violationRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Violation, error) {
	v, err := scanViolation(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// Create inserts a new violation row.
func (r *violationRepository) Create(ctx context.Context, v *models.Violation) error {
	query := `
		INSERT INTO violations (
			id, property_id, category, severity, description, rule_cited, remediation,
			deadline_days, status, fine_amount, evidence_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		v.ID,
		v.PropertyID,
		string(v.Category),
		string(v.Severity),
		v.Description,
		v.RuleCited,
		v.Remediation,
		v.DeadlineDays,
		string(v.Status),
		v.FineAmount,
		v.EvidenceRef,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert violation %s: %w", v.ID, err)
	}
	return nil
}

// FindByID returns the violation with the given id.
func (r *violationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Violation, error) {
	v, err := r.queryOne(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query violation %s: %w", id, err)
	}
	return v, nil
}

// ListByProperty returns the property's violations, newest first.
func (r *violationRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Violation, error) {
	query := `SELECT ` + violationColumns + `
		FROM violations
		WHERE property_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations for property %s: %w", propertyID, err)
	}
	defer rows.Close()

	results := []models.Violation{}
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation row: %w", err)
		}
		results = append(results, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violation rows: %w", err)
	}

	return results, nil
}

// Timeline returns every violation joined with its property address.
func (r *violationRepository) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	query := `
		SELECT v.id, v.property_id, p.address, v.category, v.severity, v.status, v.created_at
		FROM violations v
		JOIN properties p ON p.id = v.property_id
		ORDER BY v.created_at ASC, v.id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query violation timeline: %w", err)
	}
	defer rows.Close()

	results := []models.TimelineEntry{}
	for rows.Next() {
		var e models.TimelineEntry
		var category, severity, status string
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.PropertyAddress, &category, &severity, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		e.Category = models.Category(category)
		e.Severity = models.Severity(severity)
		e.Status = models.ViolationStatus(status)
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline rows: %w", err)
	}

	return results, nil
}

// Transition performs the status change as one conditional UPDATE. The
// resolved_at stamp is set when moving to resolved and cleared otherwise;
// evidence is only overwritten when supplied.
func (r *violationRepository) Transition(ctx context.Context, req TransitionRequest) (*models.Violation, error) {
	from := make([]string, len(req.From))
	for i, s := range req.From {
		from[i] = string(s)
	}

	var resolvedAt *time.Time
	if req.To == models.ViolationResolved {
		resolvedAt = &req.At
	}

	query := `
		UPDATE violations
		SET status = $2,
			resolved_at = $3,
			evidence_ref = COALESCE($4, evidence_ref),
			updated_at = $5
		WHERE id = $1
			AND status = ANY($6)
			AND ($7::uuid IS NULL OR property_id = $7)
		RETURNING ` + violationColumns

	v, err := r.queryOne(ctx, query,
		req.ID,
		string(req.To),
		resolvedAt,
		req.EvidenceRef,
		req.At,
		from,
		req.PropertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to transition violation %s to %s: %w", req.ID, req.To, err)
	}
	return v, nil
}

// Update rewrites the correctable fields of a violation.
func (r *violationRepository) Update(ctx context.Context, id uuid.UUID, edit ViolationEdit, at time.Time) (*models.Violation, error) {
	query := `
		UPDATE violations
		SET category = $2,
			severity = $3,
			description = $4,
			rule_cited = $5,
			remediation = $6,
			deadline_days = $7,
			updated_at = $8
		WHERE id = $1
		RETURNING ` + violationColumns

	v, err := r.queryOne(ctx, query,
		id,
		string(edit.Category),
		string(edit.Severity),
		edit.Description,
		edit.RuleCited,
		edit.Remediation,
		edit.DeadlineDays,
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update violation %s: %w", id, err)
	}
	return v, nil
}

// MarkNoticeSent stamps the time a notice was delivered.
func (r *violationRepository) MarkNoticeSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE violations SET notice_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark notice sent for violation %s: %w", id, err)
	}
	return nil
}

// SumOpenFines totals the fines of open violations created in [from, to).
func (r *violationRepository) SumOpenFines(ctx context.Context, propertyID uuid.UUID, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(fine_amount), 0)::float8
		FROM violations
		WHERE property_id = $1
			AND status = 'open'
			AND created_at >= $2
			AND created_at < $3
	`

	var total float64
	if err := r.db.Pool.QueryRow(ctx, query, propertyID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum open fines for property %s: %w", propertyID, err)
	}
	return total, nil
}
