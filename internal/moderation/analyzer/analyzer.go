// Package analyzer implements the Analyzer (§4.5): the expensive-path
// coordinator that sits between the rule engine and the LLM, gated by
// cache, budget, and request coalescing.
package analyzer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/modsentinel/automod/internal/moderation/coalesce"
	"github.com/modsentinel/automod/internal/moderation/cost"
	"github.com/modsentinel/automod/internal/moderation/dispatch"
	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/provider"
	"github.com/modsentinel/automod/internal/moderation/response"
	"github.com/modsentinel/automod/internal/store"
)

const maxQuestionsPerBatch = 10

// TTL bands for the differential cache-TTL policy.
const (
	TTLKnownBad  = 7 * 24 * time.Hour
	TTLHighTrust = 48 * time.Hour
	TTLMedTrust  = 24 * time.Hour
	TTLLowTrust  = 12 * time.Hour
)

// SelectTTL is the pure, deterministic differential cache-TTL policy.
func SelectTTL(knownBad bool, trustScore float64) time.Duration {
	switch {
	case knownBad:
		return TTLKnownBad
	case trustScore >= 60:
		return TTLHighTrust
	case trustScore >= 40:
		return TTLMedTrust
	default:
		return TTLLowTrust
	}
}

// Analyzer coordinates cache, budget, coalescing, provider dispatch, and
// cost accounting for one batch of AI-backed rule questions.
type Analyzer struct {
	store      store.Store
	ks         keyspace.Keyspace
	tracker    *cost.Tracker
	coalescer  *coalesce.Coalescer
	selector   *provider.Selector
	dispatcher *dispatch.Dispatcher
	now        func() time.Time
}

// New returns an Analyzer.
func New(s store.Store, ks keyspace.Keyspace, tracker *cost.Tracker, coalescer *coalesce.Coalescer, selector *provider.Selector, dispatcher *dispatch.Dispatcher) *Analyzer {
	return &Analyzer{
		store:      s,
		ks:         ks,
		tracker:    tracker,
		coalescer:  coalescer,
		selector:   selector,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// QuestionHash returns the stable cache-key fragment for a set of
// question ids: md5(sorted ids)[:16].
func QuestionHash(questionIDs []string) string {
	sorted := append([]string(nil), questionIDs...)
	sort.Strings(sorted)
	sum := md5.Sum([]byte(fmt.Sprintf("%v", sorted)))
	return hex.EncodeToString(sum[:])[:16]
}

// Analyze runs the full 9-step protocol and returns the batch result, or
// nil if the call could not be completed (budget, provider, validation,
// or coalescer-timeout failure) — in every such case the cascade should
// treat Layer 3 as unavailable.
func (a *Analyzer) Analyze(ctx context.Context, profile model.UserProfile, history model.PostHistory, subject model.Subject, questions []model.AIQuestion, trustScore float64) (*model.AIBatchResult, error) {
	// 1. Validation.
	if len(questions) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}
	if len(questions) > maxQuestionsPerBatch {
		return nil, fmt.Errorf("at most %d questions per batch, got %d", maxQuestionsPerBatch, len(questions))
	}
	ids := make([]string, len(questions))
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		ids[i] = q.ID
	}

	hash := QuestionHash(ids)
	cacheKey := a.ks.AIQuestions(profile.UserID, hash)

	// 2. Cache probe.
	if cached, ok := a.readCache(ctx, cacheKey, ids); ok {
		return cached, nil
	}

	// 3. Budget gate.
	estimateCents := int64((0.04+0.01*float64(len(questions)))*100 + 0.5)
	if a.tracker != nil {
		afford, err := a.tracker.CanAfford(ctx, estimateCents)
		if err != nil {
			return nil, fmt.Errorf("budget check failed: %w", err)
		}
		if !afford {
			return nil, nil
		}
	}

	// 4. Coalesce.
	ownerID := uuid.NewString()
	lockKey := fmt.Sprintf("%s:%s", profile.UserID, hash)
	acquired, err := a.coalescer.AcquireLock(ctx, lockKey, ownerID)
	if err != nil {
		return nil, fmt.Errorf("coalescer lock failed: %w", err)
	}
	if !acquired {
		raw, ok, err := a.coalescer.WaitForResult(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		var result model.AIBatchResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, nil
		}
		return &result, nil
	}
	defer a.coalescer.ReleaseLock(ctx, lockKey, ownerID)

	// 5. Provider selection & call, with one fallback retry.
	result, err := a.callWithFallback(ctx, profile, history, subject, questions)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	// 7. Cost recording.
	if a.tracker != nil {
		_ = a.tracker.Record(ctx, model.CostRecord{
			ID:         result.CorrelationID,
			Timestamp:  result.Timestamp,
			Provider:   result.Provider,
			UserID:     profile.UserID,
			TokensUsed: result.TokensUsed,
			CostUSD:    result.CostUSD,
		})
	}

	// 8. TTL selection and cache write.
	knownBad := answersIndicateKnownBad(result.Answers)
	ttl := SelectTTL(knownBad, trustScore)
	result.CacheTTL = ttl
	a.writeCache(ctx, cacheKey, *result, ttl)

	return result, nil
}

func (a *Analyzer) callWithFallback(ctx context.Context, profile model.UserProfile, history model.PostHistory, subject model.Subject, questions []model.AIQuestion) (*model.AIBatchResult, error) {
	excluded := ""
	for attempt := 0; attempt < 2; attempt++ {
		p, ok := a.selector.Select(ctx, excluded)
		if !ok {
			return nil, nil
		}
		result, err := a.dispatcher.Dispatch(ctx, p, profile, history, subject, questions)
		if err == nil {
			return &result, nil
		}
		excluded = p.Type()
	}
	return nil, nil
}

func answersIndicateKnownBad(answers []model.AIAnswer) bool {
	for _, a := range answers {
		if a.Answer == "YES" && a.Confidence >= 90 {
			return true
		}
	}
	return false
}

// readCache returns the cached batch result for key, but only if it is both
// well-formed JSON and structurally complete for expectedQuestionIDs: a
// cached record missing an answer for one of the current batch's questions
// is purged and treated as a miss rather than served stale/partial.
func (a *Analyzer) readCache(ctx context.Context, key string, expectedQuestionIDs []string) (*model.AIBatchResult, bool) {
	raw, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var result model.AIBatchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		_ = a.store.Del(ctx, key)
		return nil, false
	}
	if !response.HasCompleteAnswers(result.Answers, expectedQuestionIDs) {
		_ = a.store.Del(ctx, key)
		return nil, false
	}
	return &result, true
}

func (a *Analyzer) writeCache(ctx context.Context, key string, result model.AIBatchResult, ttl time.Duration) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = a.store.Set(ctx, key, string(raw), ttl)
}
