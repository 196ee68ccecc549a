package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/c21-japan/homemart-sub002/pkg/database"
)

// ErrNotActive is returned when a delivered agreement was closed or suspended
// while the batch was running
var ErrNotActive = errors.New("agreement is no longer active")

// Delivery is one rendered report and where it went
type Delivery struct {
	AgreementID    uuid.UUID
	To             string
	Subject        string
	Body           string
	Metrics        ActivityMetrics
	SentAt         time.Time
	NextReportDate *time.Time
}

// Store persists the outcome of each send
type Store interface {
	// RecordDelivery advances the schedule and writes the success log in one transaction
	RecordDelivery(ctx context.Context, d Delivery) error
	// RecordFailure writes a failed log row and leaves the schedule untouched
	RecordFailure(ctx context.Context, d Delivery, reason string) error
}

// PgStore is the PostgreSQL Store
type PgStore struct {
	db *database.DB
}

// NewPgStore creates a new store
func NewPgStore(db *database.DB) *PgStore {
	return &PgStore{db: db}
}

// RecordDelivery implements Store
func (s *PgStore) RecordDelivery(ctx context.Context, d Delivery) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE listing_agreements SET
				last_report_sent_at = $2,
				next_report_date = $3,
				updated_at = now()
			WHERE id = $1 AND status = 'active'
		`

		tag, err := tx.Exec(ctx, query, d.AgreementID, d.SentAt, d.NextReportDate)
		if err != nil {
			return fmt.Errorf("advance report schedule: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotActive
		}

		return insertLog(ctx, tx, d, true, nil)
	})
}

// RecordFailure implements Store
func (s *PgStore) RecordFailure(ctx context.Context, d Delivery, reason string) error {
	return insertLog(ctx, s.db.Pool, d, false, &reason)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertLog(ctx context.Context, q execer, d Delivery, success bool, reason *string) error {
	query := `
		INSERT INTO listing_report_logs (
			id, agreement_id, to_email, subject, body, metrics, success, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		uuid.New(), d.AgreementID, d.To, d.Subject, d.Body, d.Metrics, success, reason,
	)
	if err != nil {
		return fmt.Errorf("insert report log: %w", err)
	}
	return nil
}
