package cost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/store"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_RecordAndStatus(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	tr := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(now))

	err := tr.Record(context.Background(), model.CostRecord{
		Timestamp: now, Provider: "openai", UserID: "u1", CostUSD: 2.00,
	})
	require.NoError(t, err)

	status, err := tr.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), status.DailySpentCents)
	assert.Equal(t, int64(800), status.DailyRemainingCents)
	assert.Equal(t, int64(200), status.PerProviderCents["openai"])
}

func TestTracker_CanAfford(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	tr := New(s, 500, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(now))

	require.NoError(t, tr.Record(context.Background(), model.CostRecord{Timestamp: now, Provider: "openai", CostUSD: 4.00}))

	ok, err := tr.CanAfford(context.Background(), 50)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.CanAfford(context.Background(), 200)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTracker_AlertFiresOncePerLevelPerDay(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	var fired []model.AlertLevel
	tr := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, func(level model.AlertLevel, _ model.BudgetStatus) {
		fired = append(fired, level)
	}, fixedNow(now))

	require.NoError(t, tr.Record(context.Background(), model.CostRecord{Timestamp: now, Provider: "openai", CostUSD: 5.00}))
	require.NoError(t, tr.Record(context.Background(), model.CostRecord{Timestamp: now, Provider: "openai", CostUSD: 0.01}))

	assert.Equal(t, []model.AlertLevel{model.AlertWarn50}, fired)
}

func TestTracker_ResetDailyArchivesAndClears(t *testing.T) {
	s := store.NewMemoryStore()
	today := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tr := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(yesterday))
	require.NoError(t, tr.Record(context.Background(), model.CostRecord{Timestamp: yesterday, Provider: "gemini", CostUSD: 1.23}))

	tr2 := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(today))
	require.NoError(t, tr2.ResetDaily(context.Background()))

	archived, err := s.Get(context.Background(), "cost:archive:"+yesterday.Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, "123", archived)

	status, err := tr.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.DailySpentCents)
}

func TestTracker_ReportAggregatesWindow(t *testing.T) {
	s := store.NewMemoryStore()
	day0 := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	day1 := day0.AddDate(0, 0, -1)

	tr0 := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(day0))
	require.NoError(t, tr0.Record(context.Background(), model.CostRecord{Timestamp: day0, Provider: "openai", CostUSD: 1.00}))
	tr1 := New(s, 1000, 30000, [3]float64{0.5, 0.75, 0.9}, nil, fixedNow(day1))
	require.NoError(t, tr1.Record(context.Background(), model.CostRecord{Timestamp: day1, Provider: "openai", CostUSD: 2.00}))

	report, err := tr0.Report(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(300), report.TotalCents)
	assert.Len(t, report.ByDay, 2)
}
