// Package cost implements the Cost Tracker (§4.6): atomic cent-based
// budget accounting with at-most-once-per-level-per-day alerting.
package cost

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/store"
)

// perProviderUnitCents estimates the per-request cost of a provider for
// Report()'s call-count estimation, in cents. Derived from each provider's
// default-model per-million-token pricing (provider.openAIPricing /
// provider.geminiPricing) for a representative Layer 3 call: ~3000 input
// tokens (profile, history, and up to maxQuestionsPerBatch questions) and
// 800 output tokens (one answer per question). A shared placeholder here
// would make EstimatedCalls meaningless the moment the two providers'
// actual costs diverge, which they do (gpt-4o-mini runs ~2x
// gemini-1.5-flash's per-token price).
var perProviderUnitCents = map[string]float64{
	"openai": (3000.0/1e6)*0.15*100 + (800.0/1e6)*0.60*100,
	"gemini": (3000.0/1e6)*0.075*100 + (800.0/1e6)*0.30*100,
}

const recordTTL = 30 * 24 * time.Hour

// Tracker implements the cost tracker contract against a Store.
type Tracker struct {
	store             store.Store
	dailyLimitCents   int64
	monthlyLimitCents int64
	warnThresholds    [3]float64 // ascending: e.g. 0.50, 0.75, 0.90
	notify            func(level model.AlertLevel, status model.BudgetStatus)
	now               func() time.Time
}

// New returns a Tracker. notify, if non-nil, is invoked at most once per
// alert level per day as spend crosses each threshold.
func New(s store.Store, dailyLimitCents, monthlyLimitCents int64, warnThresholds [3]float64, notify func(model.AlertLevel, model.BudgetStatus), now func() time.Time) *Tracker {
	if notify == nil {
		notify = func(model.AlertLevel, model.BudgetStatus) {}
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:             s,
		dailyLimitCents:   dailyLimitCents,
		monthlyLimitCents: monthlyLimitCents,
		warnThresholds:    warnThresholds,
		notify:            notify,
		now:               now,
	}
}

func (t *Tracker) dateKey(ts time.Time) string  { return ts.UTC().Format("2006-01-02") }
func (t *Tracker) monthKey(ts time.Time) string { return ts.UTC().Format("2006-01") }

// CanAfford reports whether recording an additional estimateCents spend
// would keep the day within its limit.
func (t *Tracker) CanAfford(ctx context.Context, estimateCents int64) (bool, error) {
	status, err := t.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.DailySpentCents+estimateCents <= t.dailyLimitCents, nil
}

// Record persists one cost record's aggregate counters atomically and
// fires any alert newly crossed.
func (t *Tracker) Record(ctx context.Context, rec model.CostRecord) error {
	cents := int64(rec.CostUSD*100 + 0.5)
	date := t.dateKey(rec.Timestamp)
	month := t.monthKey(rec.Timestamp)

	if _, err := t.store.IncrBy(ctx, keyspace.CostDaily(date), cents); err != nil {
		return err
	}
	if _, err := t.store.IncrBy(ctx, keyspace.CostDailyProvider(date, rec.Provider), cents); err != nil {
		return err
	}
	if _, err := t.store.IncrBy(ctx, keyspace.CostMonthly(month), cents); err != nil {
		return err
	}

	recordKey := keyspace.CostRecordKey(rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.UserID)
	if err := t.store.Set(ctx, recordKey, recordJSON(rec), recordTTL); err != nil {
		return err
	}

	return t.maybeAlert(ctx, date)
}

func recordJSON(rec model.CostRecord) string {
	return fmt.Sprintf(`{"provider":%q,"userId":%q,"tokensUsed":%d,"costUsd":%f,"cached":%t}`,
		rec.Provider, rec.UserID, rec.TokensUsed, rec.CostUSD, rec.Cached)
}

func (t *Tracker) maybeAlert(ctx context.Context, date string) error {
	status, err := t.statusForDate(ctx, date)
	if err != nil {
		return err
	}
	if status.AlertLevel == model.AlertNone {
		return nil
	}
	ok, err := t.store.SetNX(ctx, keyspace.CostAlert(date, string(status.AlertLevel)), "1", 48*time.Hour)
	if err != nil {
		return err
	}
	if ok {
		t.notify(status.AlertLevel, status)
	}
	return nil
}

// Status returns the current day's budget status.
func (t *Tracker) Status(ctx context.Context) (model.BudgetStatus, error) {
	return t.statusForDate(ctx, t.dateKey(t.now()))
}

func (t *Tracker) statusForDate(ctx context.Context, date string) (model.BudgetStatus, error) {
	daily, err := t.readInt(ctx, keyspace.CostDaily(date))
	if err != nil {
		return model.BudgetStatus{}, err
	}
	monthly, err := t.readInt(ctx, keyspace.CostMonthly(date[:7]))
	if err != nil {
		return model.BudgetStatus{}, err
	}

	remaining := t.dailyLimitCents - daily
	if remaining < 0 {
		remaining = 0
	}

	status := model.BudgetStatus{
		DailyLimitCents:     t.dailyLimitCents,
		DailySpentCents:     daily,
		DailyRemainingCents: remaining,
		MonthlySpentCents:   monthly,
		PerProviderCents:    map[string]int64{},
		AlertLevel:          t.alertLevel(daily),
	}
	for provider := range perProviderUnitCents {
		spent, err := t.readInt(ctx, keyspace.CostDailyProvider(date, provider))
		if err != nil {
			return model.BudgetStatus{}, err
		}
		status.PerProviderCents[provider] = spent
	}
	return status, nil
}

func (t *Tracker) alertLevel(dailySpentCents int64) model.AlertLevel {
	if t.dailyLimitCents <= 0 {
		return model.AlertNone
	}
	percent := float64(dailySpentCents) / float64(t.dailyLimitCents)
	switch {
	case percent >= 1.0:
		return model.AlertExceeded
	case percent >= t.warnThresholds[2]:
		return model.AlertWarn90
	case percent >= t.warnThresholds[1]:
		return model.AlertWarn75
	case percent >= t.warnThresholds[0]:
		return model.AlertWarn50
	default:
		return model.AlertNone
	}
}

func (t *Tracker) readInt(ctx context.Context, key string) (int64, error) {
	n, err := t.store.IncrBy(ctx, key, 0)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ResetDaily archives yesterday's total and clears yesterday's counters.
// It is idempotent and never overwrites spend already recorded today.
func (t *Tracker) ResetDaily(ctx context.Context) error {
	yesterday := t.dateKey(t.now().AddDate(0, 0, -1))
	total, err := t.readInt(ctx, keyspace.CostDaily(yesterday))
	if err != nil {
		return err
	}
	if total > 0 {
		if err := t.store.Set(ctx, keyspace.CostArchive(yesterday), fmt.Sprintf("%d", total), 0); err != nil {
			return err
		}
	}
	if err := t.store.Del(ctx, keyspace.CostDaily(yesterday)); err != nil {
		return err
	}
	for provider := range perProviderUnitCents {
		if err := t.store.Del(ctx, keyspace.CostDailyProvider(yesterday, provider)); err != nil {
			return err
		}
	}
	return nil
}

// Report aggregates per-day and per-provider totals over the trailing
// `days` window (inclusive of today).
func (t *Tracker) Report(ctx context.Context, days int) (model.SpendingReport, error) {
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	report := model.SpendingReport{Days: days}
	providerTotals := map[string]int64{}

	for i := 0; i < days; i++ {
		day := t.now().AddDate(0, 0, -i)
		date := t.dateKey(day)
		total, err := t.readInt(ctx, keyspace.CostDaily(date))
		if err != nil {
			return model.SpendingReport{}, err
		}
		report.TotalCents += total
		report.ByDay = append(report.ByDay, model.DaySpend{Date: date, TotalCents: total})

		for provider := range perProviderUnitCents {
			spent, err := t.readInt(ctx, keyspace.CostDailyProvider(date, provider))
			if err != nil {
				return model.SpendingReport{}, err
			}
			providerTotals[provider] += spent
		}
	}

	for provider, total := range providerTotals {
		unit := perProviderUnitCents[provider]
		var calls int64
		if unit > 0 {
			calls = int64(math.Round(float64(total) / unit))
		}
		report.ByProvider = append(report.ByProvider, model.ProviderSpend{
			Provider:       provider,
			TotalCents:     total,
			EstimatedCalls: calls,
		})
	}

	return report, nil
}
