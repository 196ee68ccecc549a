package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the alert candidates and writes notification_logs
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new notification repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PendingRegistrations returns active, unregistered agreements whose REINS
// deadline falls before the given date, earliest first
func (r *Repository) PendingRegistrations(ctx context.Context, before time.Time) ([]PendingRegistration, error) {
	query := `
		SELECT a.id, a.contract_type, a.reins_required_by,
			l.id, l.last_name, l.first_name, COALESCE(l.email, ''), COALESCE(l.assigned_to, '')
		FROM listing_agreements a
		JOIN customer_leads l ON l.id = a.lead_id
		WHERE a.status = 'active'
		  AND a.reins_registered_at IS NULL
		  AND a.reins_required_by < $1
		ORDER BY a.reins_required_by ASC, a.id ASC
	`

	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("query pending registrations: %w", err)
	}
	defer rows.Close()

	var out []PendingRegistration
	for rows.Next() {
		var p PendingRegistration
		if err := rows.Scan(&p.AgreementID, &p.ContractType, &p.ReinsRequiredBy,
			&p.Lead.ID, &p.Lead.LastName, &p.Lead.FirstName, &p.Lead.Email, &p.Lead.AssignedTo,
		); err != nil {
			return nil, fmt.Errorf("scan pending registration: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending registrations: %w", err)
	}

	return out, nil
}

// StaleChecklists returns checklists of the given types below a progress
// threshold that have not been updated since the cutoff, least progress first
func (r *Repository) StaleChecklists(ctx context.Context, types []ChecklistType, progressBelow int, updatedBefore time.Time) ([]Checklist, error) {
	query := `
		SELECT c.id, c.type, c.progress_percentage, c.completed_items, c.total_items, c.updated_at,
			l.id, l.last_name, l.first_name, COALESCE(l.email, ''), COALESCE(l.assigned_to, '')
		FROM customer_checklists c
		JOIN customer_leads l ON l.id = c.lead_id
		WHERE c.type = ANY($1)
		  AND c.progress_percentage < $2
		  AND c.updated_at <= $3
		ORDER BY c.progress_percentage ASC, c.id ASC
	`

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := r.pool.Query(ctx, query, names, progressBelow, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("query stale checklists: %w", err)
	}
	defer rows.Close()

	var out []Checklist
	for rows.Next() {
		var c Checklist
		if err := rows.Scan(&c.ID, &c.Type, &c.Progress, &c.CompletedItems, &c.TotalItems, &c.UpdatedAt,
			&c.Lead.ID, &c.Lead.LastName, &c.Lead.FirstName, &c.Lead.Email, &c.Lead.AssignedTo,
		); err != nil {
			return nil, fmt.Errorf("scan checklist: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklists: %w", err)
	}

	return out, nil
}

// ChecklistByID returns one checklist with its lead
func (r *Repository) ChecklistByID(ctx context.Context, id uuid.UUID) (*Checklist, error) {
	query := `
		SELECT c.id, c.type, c.progress_percentage, c.completed_items, c.total_items, c.updated_at,
			l.id, l.last_name, l.first_name, COALESCE(l.email, ''), COALESCE(l.assigned_to, '')
		FROM customer_checklists c
		JOIN customer_leads l ON l.id = c.lead_id
		WHERE c.id = $1
	`

	var c Checklist
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Type, &c.Progress, &c.CompletedItems, &c.TotalItems, &c.UpdatedAt,
		&c.Lead.ID, &c.Lead.LastName, &c.Lead.FirstName, &c.Lead.Email, &c.Lead.AssignedTo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChecklistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist %s: %w", id, err)
	}
	return &c, nil
}

// TeamLoad counts overdue reports and pending registrations per assignee.
// Unassigned agreements are grouped under an empty assignee.
func (r *Repository) TeamLoad(ctx context.Context, today, registrationsBefore time.Time) ([]AssigneeLoad, error) {
	query := `
		SELECT
			COALESCE(l.assigned_to, ''),
			count(*) FILTER (WHERE a.next_report_date < $1),
			count(*) FILTER (WHERE a.reins_registered_at IS NULL AND a.reins_required_by < $2)
		FROM listing_agreements a
		JOIN customer_leads l ON l.id = a.lead_id
		WHERE a.status = 'active'
		GROUP BY COALESCE(l.assigned_to, '')
		HAVING count(*) FILTER (WHERE a.next_report_date < $1) > 0
		    OR count(*) FILTER (WHERE a.reins_registered_at IS NULL AND a.reins_required_by < $2) > 0
		ORDER BY 1
	`

	rows, err := r.pool.Query(ctx, query, today, registrationsBefore)
	if err != nil {
		return nil, fmt.Errorf("query team load: %w", err)
	}
	defer rows.Close()

	var out []AssigneeLoad
	for rows.Next() {
		var l AssigneeLoad
		if err := rows.Scan(&l.Assignee, &l.OverdueReports, &l.PendingRegistrations); err != nil {
			return nil, fmt.Errorf("scan team load: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team load: %w", err)
	}

	return out, nil
}

// InsertLog writes one notification_logs row
func (r *Repository) InsertLog(ctx context.Context, e LogEntry) error {
	query := `
		INSERT INTO notification_logs (id, type, reference_id, subject, content, recipients, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		uuid.New(), e.Type, e.ReferenceID, e.Subject, e.Content, e.Recipients, e.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}
