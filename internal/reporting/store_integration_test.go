package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/testinfra"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

func TestDispatcherAgainstPostgres(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	calc := deadline.NewCalculator(nil, time.UTC, deadline.WithClock(func() time.Time { return now }))
	repo := agreement.NewRepository(db.Pool)
	agreements := agreement.NewService(repo, calc, email.NewLogSender(logger.NewNop()), nil,
		agreement.Options{OfficeAddress: "office@example.com", WarningDays: -100}, logger.NewNop())

	withMail, noMail := uuid.New(), uuid.New()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO customer_leads (id, last_name, first_name, email) VALUES ($1, '山田', '太郎', 'taro@example.com'), ($2, '佐藤', '花子', NULL)`,
		withMail, noMail)
	require.NoError(t, err)

	sent, err := agreements.Create(ctx, agreement.CreateInput{LeadID: withMail.String(), ContractType: "exclusive_right", SignedAt: "2024-01-01"})
	require.NoError(t, err)
	skipped, err := agreements.Create(ctx, agreement.CreateInput{LeadID: noMail.String(), ContractType: "exclusive", SignedAt: "2023-12-01"})
	require.NoError(t, err)

	d := reporting.NewDispatcher(agreements, reporting.NewPgStore(db), email.NewLogSender(logger.NewNop()), calc,
		nil, nil, reporting.Options{SenderFallbackAddress: "office@example.com"}, logger.NewNop())

	result, err := d.Run(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)

	got, err := repo.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, deadline.Date(2024, 1, 15), got.NextReportDate.UTC())
	require.NotNil(t, got.LastReportSentAt)
	assert.True(t, got.LastReportSentAt.Equal(now))

	untouched, err := repo.GetByID(ctx, skipped.ID)
	require.NoError(t, err)
	assert.Equal(t, *skipped.NextReportDate, untouched.NextReportDate.UTC())

	var logs int
	var success bool
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT count(*), bool_and(success) FROM listing_report_logs WHERE agreement_id = $1`, sent.ID,
	).Scan(&logs, &success))
	assert.Equal(t, 1, logs)
	assert.True(t, success)

	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM listing_report_logs WHERE agreement_id = $1`, skipped.ID,
	).Scan(&logs))
	assert.Zero(t, logs)

	again, err := d.Run(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Processed, "only the skipped agreement remains due")
}

func TestRecordDeliveryRejectsInactiveAgreement(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()

	lead := uuid.New()
	_, err := db.Pool.Exec(ctx, `INSERT INTO customer_leads (id, email) VALUES ($1, 'x@example.com')`, lead)
	require.NoError(t, err)

	id := uuid.New()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO listing_agreements (id, lead_id, contract_type, signed_at, report_interval_days, next_report_date, status)
		VALUES ($1, $2, 'exclusive', '2024-01-01', 14, '2024-01-15', 'closed')`, id, lead)
	require.NoError(t, err)

	next := deadline.Date(2024, 1, 29)
	store := reporting.NewPgStore(db)
	err = store.RecordDelivery(ctx, reporting.Delivery{
		AgreementID:    id,
		To:             "x@example.com",
		Subject:        "s",
		Body:           "b",
		SentAt:         time.Now(),
		NextReportDate: &next,
	})
	assert.ErrorIs(t, err, reporting.ErrNotActive)

	var logs int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT count(*) FROM listing_report_logs`).Scan(&logs))
	assert.Zero(t, logs, "log insert rolled back with the update")

	require.NoError(t, store.RecordFailure(ctx, reporting.Delivery{AgreementID: id, To: "x@example.com", Subject: "s", Body: "b"}, "smtp 550"))
	var reason string
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT error FROM listing_report_logs WHERE agreement_id = $1`, id).Scan(&reason))
	assert.Equal(t, "smtp 550", reason)
}
