package agreement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

// Repository handles listing agreement persistence
// ⭐ SSOT: listing_agreements reads and writes go through here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new agreement repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agreementColumns = `
	a.id, a.lead_id, a.property_id, a.contract_type, a.signed_at,
	a.reins_required_by, a.reins_registered_at, a.report_interval_days,
	a.next_report_date, a.last_report_sent_at, a.status, a.created_at, a.updated_at`

func scanAgreement(row pgx.Row, a *Agreement, extra ...any) error {
	dest := []any{
		&a.ID, &a.LeadID, &a.PropertyID, &a.ContractType, &a.SignedAt,
		&a.ReinsRequiredBy, &a.ReinsRegisteredAt, &a.ReportIntervalDays,
		&a.NextReportDate, &a.LastReportSentAt, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Insert stores a new agreement and fills its timestamps
func (r *Repository) Insert(ctx context.Context, a *Agreement) error {
	query := `
		INSERT INTO listing_agreements (
			id, lead_id, property_id, contract_type, signed_at,
			reins_required_by, reins_registered_at, report_interval_days,
			next_report_date, last_report_sent_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		a.ID, a.LeadID, a.PropertyID, a.ContractType, a.SignedAt,
		a.ReinsRequiredBy, a.ReinsRegisteredAt, a.ReportIntervalDays,
		a.NextReportDate, a.LastReportSentAt, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return invalid("lead_id", "unknown lead %s", a.LeadID)
		}
		return fmt.Errorf("insert agreement: %w", err)
	}

	return nil
}

// Update writes every mutable column of an existing agreement
func (r *Repository) Update(ctx context.Context, a *Agreement) error {
	query := `
		UPDATE listing_agreements SET
			contract_type = $2,
			signed_at = $3,
			reins_required_by = $4,
			reins_registered_at = $5,
			report_interval_days = $6,
			next_report_date = $7,
			status = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		a.ID, a.ContractType, a.SignedAt, a.ReinsRequiredBy, a.ReinsRegisteredAt,
		a.ReportIntervalDays, a.NextReportDate, a.Status,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}

	return nil
}

// GetByID loads one agreement
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM listing_agreements a WHERE a.id = $1`

	var a Agreement
	err := scanAgreement(r.pool.QueryRow(ctx, query, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agreement: %w", err)
	}

	return &a, nil
}

// FindDue returns active agreements with next_report_date <= asOf, oldest due first
func (r *Repository) FindDue(ctx context.Context, asOf time.Time) ([]DueAgreement, error) {
	query := `
		SELECT ` + agreementColumns + `,
			l.id, l.last_name, l.first_name, COALESCE(l.email, ''), COALESCE(l.assigned_to, ''), l.extra
		FROM listing_agreements a
		JOIN customer_leads l ON l.id = a.lead_id
		WHERE a.status = 'active'
		  AND a.next_report_date <= $1
		ORDER BY a.next_report_date ASC, a.id ASC
	`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("query due agreements: %w", err)
	}
	defer rows.Close()

	var due []DueAgreement
	for rows.Next() {
		var (
			d     DueAgreement
			extra []byte
		)
		if err := scanAgreement(rows, &d.Agreement,
			&d.Lead.ID, &d.Lead.LastName, &d.Lead.FirstName, &d.Lead.Email, &d.Lead.AssignedTo, &extra,
		); err != nil {
			return nil, fmt.Errorf("scan due agreement: %w", err)
		}
		d.Lead.Property = ParseProperty(extra)
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due agreements: %w", err)
	}

	return due, nil
}

// CountStats aggregates active agreements as of a business day
func (r *Repository) CountStats(ctx context.Context, today time.Time) (*Stats, error) {
	query := `
		SELECT
			contract_type,
			count(*),
			count(*) FILTER (WHERE next_report_date <= $1),
			count(*) FILTER (WHERE reins_required_by < $1 AND reins_registered_at IS NULL)
		FROM listing_agreements
		WHERE status = 'active'
		GROUP BY contract_type
	`

	rows, err := r.pool.Query(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("query agreement stats: %w", err)
	}
	defer rows.Close()

	stats := newStats(today)
	for rows.Next() {
		var (
			ct                  deadline.ContractType
			total, due, overdue int
		)
		if err := rows.Scan(&ct, &total, &due, &overdue); err != nil {
			return nil, fmt.Errorf("scan agreement stats: %w", err)
		}
		stats.Total += total
		stats.ByType[ct] += total
		stats.DueReports += due
		stats.ReinsOverdue += overdue
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreement stats: %w", err)
	}

	return stats, nil
}

func newStats(today time.Time) *Stats {
	s := &Stats{
		AsOf:   today.Format(deadline.DateLayout),
		ByType: make(map[deadline.ContractType]int, len(deadline.ContractTypes)),
	}
	for _, ct := range deadline.ContractTypes {
		s.ByType[ct] = 0
	}
	return s
}
