package reporting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

func TestSequenceNumber(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name     string
		lastSent *time.Time
		want     int
	}{
		{"never sent", nil, 1},
		{"sent today", at(time.Hour), 1},
		{"six days ago", at(6 * 24 * time.Hour), 1},
		{"exactly a week", at(7 * 24 * time.Hour), 2},
		{"three weeks", at(21*24*time.Hour + time.Hour), 4},
		{"clock skew", at(-time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SequenceNumber(tt.lastSent, now))
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a := dueAgreement(deadline.Exclusive, deadline.Date(2024, 1, 1), "taro@example.com")
	next := deadline.Date(2024, 1, 29)

	r1, err := Render(a, ActivityMetrics{}, 2, &next, "センチュリー21 ホームマート", "")
	require.NoError(t, err)
	r2, err := Render(a, ActivityMetrics{}, 2, &next, "センチュリー21 ホームマート", "")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, "【販売状況報告】山田太郎様邸／専任・第2回", r1.Subject)
	assert.Contains(t, r1.Body, "山田太郎様")
	assert.Contains(t, r1.Body, "専任媒介契約（2024年1月1日締結）")
	assert.Contains(t, r1.Body, "閲覧 0／問い合わせ 0／内見 0 件")
	assert.Contains(t, r1.Body, "特になし")
	assert.Contains(t, r1.Body, "- 価格の見直し検討")
	assert.Contains(t, r1.Body, "2024年1月29日（自動送付予定）")
	assert.Contains(t, r1.Body, "※2週に1回の頻度で状況報告を継続します。")
	assert.Contains(t, r1.Body, "宅建業法34条の2第9項")
	assert.Contains(t, r1.Body, "・表示価格：要相談")
	assert.NotContains(t, r1.Body, "・物件：")
	assert.NotContains(t, r1.Body, "物件ページ")
	assert.NotContains(t, r1.Body, "担当：")
}

func TestRenderWithActivityAndProperty(t *testing.T) {
	a := dueAgreement(deadline.ExclusiveRight, deadline.Date(2024, 1, 1), "taro@example.com")
	pid := uuid.MustParse("0b6f3c0e-5d1a-4c55-9a53-1d2f3e4a5b6c")
	a.PropertyID = &pid
	a.Lead.AssignedTo = "乾"
	a.Lead.Property = agreement.Property{BuildingName: "ホームマート奈良", RoomNo: "301", ExpectedPrice: 35800000}

	m := ActivityMetrics{
		PageViews:          42,
		Inquiries:          3,
		Viewings:           1,
		Competitors:        5,
		PriceRange:         "3000万〜5000万円",
		Feedback:           "間取りの評価が高いです。",
		RecommendedActions: []string{"写真の差し替え"},
	}

	r, err := Render(a, m, 1, nil, "センチュリー21 ホームマート", "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "【販売状況報告】山田太郎様邸（ホームマート奈良301）／専属専任・第1回", r.Subject)
	assert.Contains(t, r.Body, "・物件：ホームマート奈良301")
	assert.Contains(t, r.Body, "・表示価格：35,800,000円")
	assert.Contains(t, r.Body, "閲覧 42／問い合わせ 3／内見 1 件")
	assert.Contains(t, r.Body, "同エリアの競合：5件")
	assert.Contains(t, r.Body, "3000万〜5000万円")
	assert.Contains(t, r.Body, "- 写真の差し替え")
	assert.NotContains(t, r.Body, "価格の見直し検討")
	assert.Contains(t, r.Body, "物件ページ：https://example.com/properties/"+pid.String())
	assert.Contains(t, r.Body, "担当：乾")
	assert.Contains(t, r.Body, "- 未定（自動送付予定）")
	assert.Contains(t, r.Body, "※週1回の頻度")
}

func TestFormatYen(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "要相談"},
		{-1, "要相談"},
		{980, "980円"},
		{1000, "1,000円"},
		{35800000, "35,800,000円"},
		{123456789012, "123,456,789,012円"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatYen(tt.in))
	}
}
