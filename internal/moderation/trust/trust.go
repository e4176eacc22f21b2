// Package trust implements the Community Trust Manager (§4.9): a
// per-(user, subreddit) approval ledger with monthly decay, scored
// independently per content kind, stored as a single JSON blob
// read-modify-written under a short critical section.
package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/store"
)

const (
	minSubmittedForTrust = 3
	trustThresholdRate   = 0.70
	decayPerMonth        = 0.05
	lockTTL              = 5 * time.Second
	trackingTTL          = 24 * time.Hour
)

// Manager implements the trust contract against a Store.
type Manager struct {
	store store.Store
	ks    keyspace.Keyspace
	now   func() time.Time
}

// New returns a Manager.
func New(s store.Store, ks keyspace.Keyspace, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: s, ks: ks, now: now}
}

func (m *Manager) load(ctx context.Context, userID, subreddit string) (model.CommunityTrust, error) {
	raw, err := m.store.Get(ctx, m.ks.Trust(userID, subreddit))
	if err == store.ErrNotFound {
		return model.CommunityTrust{UserID: userID, Subreddit: subreddit}, nil
	}
	if err != nil {
		return model.CommunityTrust{}, err
	}
	var t model.CommunityTrust
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return model.CommunityTrust{}, err
	}
	return t, nil
}

func (m *Manager) save(ctx context.Context, t model.CommunityTrust) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.ks.Trust(t.UserID, t.Subreddit), string(raw), 0)
}

// withLock serializes read-modify-write access to one user's trust record.
func (m *Manager) withLock(ctx context.Context, userID, subreddit string, fn func() error) error {
	lockKey := keyspace.Coalesce(fmt.Sprintf("trust:%s:%s", userID, subreddit))
	deadline := m.now().Add(2 * time.Second)
	for {
		ok, err := m.store.SetNX(ctx, lockKey, "1", lockTTL)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if m.now().After(deadline) {
			break // proceed best-effort rather than block the cascade indefinitely
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer m.store.Del(ctx, lockKey)
	return fn()
}

// decayedRate applies the monthly decay to an approval rate given how
// long it has been since the record's last activity.
func decayedRate(rate float64, lastActivity, now time.Time) (float64, int) {
	if lastActivity.IsZero() {
		return rate, 0
	}
	months := monthsBetween(lastActivity, now)
	decayed := rate - float64(months)*decayPerMonth
	if decayed < 0 {
		decayed = 0
	}
	return decayed, months
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	years := to.Year() - from.Year()
	months := years*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months
}

func approvalRate(c model.TrustCounters) float64 {
	if c.Submitted == 0 {
		return 0
	}
	return float64(c.Approved) / float64(c.Submitted)
}

// GetTrust evaluates current trust standing for one (user, subreddit, kind).
func (m *Manager) GetTrust(ctx context.Context, userID, subreddit string, kind model.ContentType) (model.TrustEvaluation, error) {
	t, err := m.load(ctx, userID, subreddit)
	if err != nil {
		return model.TrustEvaluation{}, err
	}
	counters := t.CountersFor(kind)
	rate := approvalRate(*counters)
	decayed, months := decayedRate(rate, t.LastActivity, m.now())

	return model.TrustEvaluation{
		Submitted:    counters.Submitted,
		ApprovalRate: decayed,
		MonthsStale:  months,
		IsTrusted:    counters.Submitted >= minSubmittedForTrust && decayed >= trustThresholdRate,
	}, nil
}

// Update records one moderation outcome and returns the score delta.
func (m *Manager) Update(ctx context.Context, userID, subreddit string, action model.Action, kind model.ContentType) (model.TrustUpdateResult, error) {
	var result model.TrustUpdateResult
	err := m.withLock(ctx, userID, subreddit, func() error {
		t, err := m.load(ctx, userID, subreddit)
		if err != nil {
			return err
		}
		counters := t.CountersFor(kind)
		oldRate, _ := decayedRate(approvalRate(*counters), t.LastActivity, m.now())

		counters.Submitted++
		switch action {
		case model.ActionApprove:
			counters.Approved++
		case model.ActionFlag:
			counters.Flagged++
		case model.ActionRemove:
			counters.Removed++
		}

		now := m.now()
		t.LastActivity = now
		t.LastCalculated = now

		newRate, _ := decayedRate(approvalRate(*counters), now, now)

		result = model.TrustUpdateResult{
			OldScore: oldRate * 100,
			NewScore: newRate * 100,
			Delta:    (newRate - oldRate) * 100,
		}
		return m.save(ctx, t)
	})
	return result, err
}

// TrackApproved records a short-lived APPROVE decision so a later
// moderator removal can be reconciled against the trust ledger.
func (m *Manager) TrackApproved(ctx context.Context, contentID, userID, subreddit string, kind model.ContentType) error {
	now := m.now()
	tracking := model.ApprovedTracking{
		ContentID:   contentID,
		UserID:      userID,
		Subreddit:   subreddit,
		ContentType: kind,
		ApprovedAt:  now,
		ExpiresAt:   now.Add(trackingTTL),
	}
	raw, err := json.Marshal(tracking)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.ks.TrackingContent(contentID), string(raw), trackingTTL)
}

// RetroactiveRemoval reconciles a mod-initiated removal of previously
// approved content against the trust ledger. Returns (delta, true) if a
// tracking record existed, or (0, false) if there was nothing to do.
func (m *Manager) RetroactiveRemoval(ctx context.Context, contentID string) (float64, bool, error) {
	raw, err := m.store.Get(ctx, m.ks.TrackingContent(contentID))
	if err == store.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var tracking model.ApprovedTracking
	if err := json.Unmarshal([]byte(raw), &tracking); err != nil {
		return 0, false, err
	}

	var delta float64
	err = m.withLock(ctx, tracking.UserID, tracking.Subreddit, func() error {
		t, err := m.load(ctx, tracking.UserID, tracking.Subreddit)
		if err != nil {
			return err
		}
		counters := t.CountersFor(tracking.ContentType)
		oldRate, _ := decayedRate(approvalRate(*counters), t.LastActivity, m.now())

		if counters.Approved > 0 {
			counters.Approved--
		}
		counters.Removed++

		now := m.now()
		t.LastActivity = now
		t.LastCalculated = now
		newRate, _ := decayedRate(approvalRate(*counters), now, now)
		delta = (newRate - oldRate) * 100

		return m.save(ctx, t)
	})
	if err != nil {
		return 0, false, err
	}
	if err := m.store.Del(ctx, m.ks.TrackingContent(contentID)); err != nil {
		return 0, false, err
	}
	return delta, true, nil
}
