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
	"github.com/stwalsh4118/covenant/internal/scoring"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// errNoRow aborts a transaction whose target row does not exist.
var errNoRow = errors.New("no row")

const propertyColumns = `
	p.id,
	p.address,
	p.owner_name,
	p.owner_email,
	p.owner_phone,
	p.land_area_sqft,
	p.location,
	p.compliance_score,
	p.financial_score,
	p.combined_score,
	p.created_at`

// propertyRepository is the PostgreSQL implementation of PropertyRepository.
type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{
		db: db,
	}
}

func scanProperty(row rowScanner, extra ...any) (*models.Property, error) {
	var p models.Property
	var location []byte

	dest := []any{
		&p.ID,
		&p.Address,
		&p.OwnerName,
		&p.OwnerEmail,
		&p.OwnerPhone,
		&p.LandAreaSqft,
		&location,
		&p.ComplianceScore,
		&p.FinancialScore,
		&p.CombinedScore,
		&p.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if location != nil {
		var loc models.Location
		if err := loc.Scan(location); err != nil {
			return nil, fmt.Errorf("failed to parse location for property %s: %w", p.ID, err)
		}
		p.Location = &loc
	}

	return &p, nil
}

func locationParam(loc *models.Location) (any, error) {
	if loc == nil {
		return nil, nil
	}
	return loc.Value()
}

// Create inserts a new property row.
func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	location, err := locationParam(p.Location)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	query := `
		INSERT INTO properties (
			id, address, owner_name, owner_email, owner_phone, land_area_sqft, location,
			compliance_score, financial_score, combined_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		p.ID,
		p.Address,
		p.OwnerName,
		p.OwnerEmail,
		p.OwnerPhone,
		p.LandAreaSqft,
		location,
		p.ComplianceScore,
		p.FinancialScore,
		p.CombinedScore,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert property %s: %w", p.ID, err)
	}
	return nil
}

// FindByID returns the property with the given id.
func (r *propertyRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties p WHERE p.id = $1`

	p, err := scanProperty(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property %s: %w", id, err)
	}
	return p, nil
}

// List returns every property for the dashboard, worst compliance first.
func (r *propertyRepository) List(ctx context.Context) ([]models.PropertySummary, error) {
	query := `
		SELECT ` + propertyColumns + `,
			COUNT(v.id) FILTER (WHERE v.status = 'open') AS open_violations,
			MAX(v.updated_at) AS last_activity
		FROM properties p
		LEFT JOIN violations v ON v.property_id = p.id
		GROUP BY p.id
		ORDER BY p.compliance_score ASC, p.address ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	results := []models.PropertySummary{}
	for rows.Next() {
		var open int
		var last *time.Time
		p, err := scanProperty(rows, &open, &last)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		results = append(results, models.PropertySummary{
			Property:       *p,
			OpenViolations: open,
			LastActivity:   last,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return results, nil
}

// ListIDs returns the id of every property.
func (r *propertyRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM properties ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query property ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect property ids: %w", err)
	}
	return ids, nil
}

// Delete removes the property's bills, violations and the property itself in
// one transaction so no reader observes orphaned rows.
func (r *propertyRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT id FROM properties WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM monthly_bills WHERE property_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM violations WHERE property_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete property %s: %w", id, err)
	}
	return deleted, nil
}

// UpdateScores recomputes and persists the property's scores under a row lock
// so concurrent recalculations for one property apply one after another.
func (r *propertyRepository) UpdateScores(ctx context.Context, id uuid.UUID, compute ScoreFunc) (*models.Scores, error) {
	var scores models.Scores

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM properties WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNoRow
			}
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT severity, created_at
			FROM violations
			WHERE property_id = $1 AND status = 'open'
		`, id)
		if err != nil {
			return err
		}
		var in scoring.Inputs
		for rows.Next() {
			var severity string
			var ov models.OpenViolation
			if err := rows.Scan(&severity, &ov.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			ov.Severity = models.Severity(severity)
			in.OpenViolations = append(in.OpenViolations, ov)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM monthly_bills WHERE property_id = $1 AND status = 'overdue'`, id,
		).Scan(&in.OverdueBills); err != nil {
			return err
		}

		scores = compute(in)

		_, err = tx.Exec(ctx, `
			UPDATE properties
			SET compliance_score = $2, financial_score = $3, combined_score = $4
			WHERE id = $1
		`, id, scores.ComplianceScore, scores.FinancialScore, scores.CombinedScore)
		return err
	})
	if err != nil {
		if errors.Is(err, errNoRow) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update scores for property %s: %w", id, err)
	}

	return &scores, nil
}
