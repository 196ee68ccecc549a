package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/redis"
)

type logRow struct {
	agreementID uuid.UUID
	success     bool
	reason      string
}

// memoryBook is both the Selector and the Store of a dispatcher under test
type memoryBook struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]agreement.DueAgreement
	logs        []logRow
	selectErr   error
	deliveryErr error
}

func newMemoryBook(rows ...agreement.DueAgreement) *memoryBook {
	b := &memoryBook{rows: map[uuid.UUID]agreement.DueAgreement{}}
	for _, r := range rows {
		b.rows[r.ID] = r
	}
	return b
}

func (b *memoryBook) GetDueAgreements(_ context.Context, asOf time.Time) ([]agreement.DueAgreement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selectErr != nil {
		return nil, b.selectErr
	}
	var due []agreement.DueAgreement
	for _, r := range b.rows {
		if r.Status == agreement.StatusActive && r.NextReportDate != nil && !r.NextReportDate.After(asOf) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextReportDate.Before(*due[j].NextReportDate) })
	return due, nil
}

func (b *memoryBook) RecordDelivery(_ context.Context, d Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deliveryErr != nil {
		return b.deliveryErr
	}
	r := b.rows[d.AgreementID]
	sent := d.SentAt
	r.LastReportSentAt = &sent
	r.NextReportDate = d.NextReportDate
	b.rows[d.AgreementID] = r
	b.logs = append(b.logs, logRow{agreementID: d.AgreementID, success: true})
	return nil
}

func (b *memoryBook) RecordFailure(_ context.Context, d Delivery, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, logRow{agreementID: d.AgreementID, reason: reason})
	return nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func to(addr string) interface{} {
	return mock.MatchedBy(func(msg email.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == addr
	})
}

var batchNow = time.Date(2024, 1, 8, 9, 0, 0, 0, time.FixedZone("JST", 9*60*60))

func testCalculator() *deadline.Calculator {
	return deadline.NewCalculator(nil, batchNow.Location(), deadline.WithClock(func() time.Time { return batchNow }))
}

func dueAgreement(ct deadline.ContractType, signed time.Time, mail string) agreement.DueAgreement {
	calc := testCalculator()
	a := agreement.Agreement{
		ID:           uuid.New(),
		LeadID:       uuid.New(),
		ContractType: ct,
		SignedAt:     signed,
		Status:       agreement.StatusActive,
	}
	a.ApplyDerived(calc.Derive(signed, ct))
	return agreement.DueAgreement{
		Agreement: a,
		Lead:      agreement.Lead{ID: a.LeadID, LastName: "山田", FirstName: "太郎", Email: mail},
	}
}

func newTestDispatcher(book *memoryBook, sender email.Sender, locker *redis.Locker) *Dispatcher {
	return NewDispatcher(book, book, sender, testCalculator(), nil, locker, Options{
		SenderFallbackAddress: "office@example.com",
		SiteBaseURL:           "https://example.com",
		ItemTimeout:           time.Second,
	}, logger.NewNop())
}

func TestRunSendsAndAdvancesSchedule(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "taro@example.com")
	book := newMemoryBook(a)
	sender := email.NewLogSender(logger.NewNop())

	result, err := newTestDispatcher(book, sender, nil).Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, &BatchResult{AsOf: "2024-01-08", Processed: 1, Succeeded: 1}, result)

	row := book.rows[a.ID]
	require.NotNil(t, row.LastReportSentAt)
	assert.True(t, row.LastReportSentAt.Equal(batchNow))
	assert.Equal(t, deadline.Date(2024, 1, 15), *row.NextReportDate)
	assert.Equal(t, []logRow{{agreementID: a.ID, success: true}}, book.logs)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"taro@example.com"}, sent[0].To)
	assert.Equal(t, "office@example.com", sent[0].ReplyTo)
	assert.Equal(t, "【販売状況報告】山田太郎様邸／専属専任・第1回", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "2024年1月15日（自動送付予定）")
}

func TestRunSkipsLeadWithoutEmail(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "")
	book := newMemoryBook(a)
	sender := &mockSender{}

	result, err := newTestDispatcher(book, sender, nil).Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, book.logs)
	assert.Equal(t, deadline.Date(2024, 1, 8), *book.rows[a.ID].NextReportDate)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunPartialFailure(t *testing.T) {
	ok := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "ok@example.com")
	bad := dueAgreement(deadline.Exclusive, deadline.Date(2023, 12, 20), "bad@example.com")
	book := newMemoryBook(ok, bad)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, to("ok@example.com")).Return(nil).Once()
	sender.On("Send", mock.Anything, to("bad@example.com")).Return(errors.New("mailbox unavailable")).Once()

	d := newTestDispatcher(book, sender, nil)
	result, err := d.Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	sender.AssertExpectations(t)

	assert.Equal(t, deadline.Date(2024, 1, 15), *book.rows[ok.ID].NextReportDate)
	assert.Equal(t, *bad.NextReportDate, *book.rows[bad.ID].NextReportDate)
	assert.Nil(t, book.rows[bad.ID].LastReportSentAt)

	var failures []logRow
	for _, l := range book.logs {
		if !l.success {
			failures = append(failures, l)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, bad.ID, failures[0].agreementID)
	assert.Equal(t, "mailbox unavailable", failures[0].reason)

	// the failed agreement is still due, the sent one is not
	due, err := book.GetDueAgreements(context.Background(), deadline.Date(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, bad.ID, due[0].ID)
}

func TestRunIsIdempotentAfterSuccess(t *testing.T) {
	book := newMemoryBook(
		dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "a@example.com"),
		dueAgreement(deadline.Exclusive, deadline.Date(2023, 12, 1), "b@example.com"),
	)
	d := newTestDispatcher(book, email.NewLogSender(logger.NewNop()), nil)

	first, err := d.Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)

	due, err := book.GetDueAgreements(context.Background(), deadline.Date(2024, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, due)

	second, err := d.Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
}

func TestRunRejectsFutureAsOf(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "taro@example.com")
	book := newMemoryBook(a)
	sender := &mockSender{}
	d := newTestDispatcher(book, sender, nil)

	result, err := d.Run(context.Background(), deadline.Date(2024, 1, 20))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrFutureAsOf)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Equal(t, deadline.Date(2024, 1, 8), *book.rows[a.ID].NextReportDate)
}

func TestRunPastAsOfDoesNotResend(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "taro@example.com")
	book := newMemoryBook(a)
	sender := email.NewLogSender(logger.NewNop())
	d := newTestDispatcher(book, sender, nil)

	for i := 0; i < 2; i++ {
		_, err := d.Run(context.Background(), deadline.Date(2024, 1, 8))
		require.NoError(t, err)
	}

	assert.Len(t, sender.Sent(), 1)
	due, err := book.GetDueAgreements(context.Background(), deadline.Date(2024, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRunCountsUnrecordedSendAsFailure(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "taro@example.com")
	book := newMemoryBook(a)
	book.deliveryErr = errors.New("connection reset")

	result, err := newTestDispatcher(book, email.NewLogSender(logger.NewNop()), nil).Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, deadline.Date(2024, 1, 8), *book.rows[a.ID].NextReportDate)
	require.Len(t, book.logs, 1)
	assert.Contains(t, book.logs[0].reason, "connection reset")
}

func TestRunSelectorErrorAbortsBatch(t *testing.T) {
	book := newMemoryBook()
	book.selectErr = errors.New("database unavailable")

	result, err := newTestDispatcher(book, &mockSender{}, nil).Run(context.Background(), time.Time{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, book.selectErr)
}

func TestRunHonoursCancellation(t *testing.T) {
	book := newMemoryBook(dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "a@example.com"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDispatcher(book, &mockSender{}, nil).Run(ctx, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	locker := redis.NewLocker(redis.Disabled(), "homemart", logger.NewNop())
	release, err := locker.Acquire(context.Background(), lockName, time.Minute)
	require.NoError(t, err)

	d := newTestDispatcher(newMemoryBook(), &mockSender{}, locker)
	_, err = d.Run(context.Background(), time.Time{})
	assert.ErrorIs(t, err, ErrBatchInProgress)

	release()
	result, err := d.Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestBatchResultJSON(t *testing.T) {
	data, err := json.Marshal(BatchResult{AsOf: "2024-01-08", Processed: 2, Succeeded: 1, Failed: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"asOf":"2024-01-08","processed":2,"successCount":1,"errors":1,"skipped":0}`, string(data))
}
