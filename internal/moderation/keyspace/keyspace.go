// Package keyspace centralizes derivation of the store keys used across the
// moderation cascade, so that every component agrees on the cache-version
// prefix and namespace layout described in the persistent key layout.
package keyspace

import "fmt"

// Keyspace derives store keys scoped to a single installation's cache version.
type Keyspace struct {
	version string
}

// New returns a Keyspace for the given cacheVersion. An empty version
// defaults to "1", matching the `v1:` prefix used throughout the layout.
func New(cacheVersion string) Keyspace {
	if cacheVersion == "" {
		cacheVersion = "1"
	}
	return Keyspace{version: cacheVersion}
}

func (k Keyspace) prefix() string {
	return fmt.Sprintf("v1:%s", k.version)
}

// LegacyAIAnalysis is the legacy single-result analysis cache key.
func (k Keyspace) LegacyAIAnalysis(userID string) string {
	return fmt.Sprintf("%s:user:%s:ai:analysis", k.prefix(), userID)
}

// AIQuestions is the batched-result cache key for a given question-set hash.
func (k Keyspace) AIQuestions(userID, hash string) string {
	return fmt.Sprintf("%s:user:%s:ai:questions:%s", k.prefix(), userID, hash)
}

// AIQuestionKeys is the sorted-set key tracking live question-hashes for a user.
func (k Keyspace) AIQuestionKeys(userID string) string {
	return fmt.Sprintf("%s:user:%s:ai:questions:keys", k.prefix(), userID)
}

// Trust is the community-trust blob key for a (user, subreddit) pair.
func (k Keyspace) Trust(userID, subreddit string) string {
	return fmt.Sprintf("%s:user:%s:trust:%s", k.prefix(), userID, subreddit)
}

// TrackingUsers is the sorted-set of users seen in a subreddit.
func (k Keyspace) TrackingUsers(subreddit string) string {
	return fmt.Sprintf("%s:global:tracking:%s:users", k.prefix(), subreddit)
}

// TrackingContent is the 24h approval-tracking record key for a content id.
func (k Keyspace) TrackingContent(contentID string) string {
	return fmt.Sprintf("%s:global:tracking:content:%s", k.prefix(), contentID)
}

// CostDaily is the total daily spend counter key for a UTC date (YYYY-MM-DD).
func CostDaily(date string) string {
	return fmt.Sprintf("cost:daily:%s", date)
}

// CostDailyProvider is the per-provider daily spend counter key.
func CostDailyProvider(date, provider string) string {
	return fmt.Sprintf("cost:daily:%s:%s", date, provider)
}

// CostMonthly is the monthly spend counter key for a UTC month (YYYY-MM).
func CostMonthly(month string) string {
	return fmt.Sprintf("cost:monthly:%s", month)
}

// CostArchive is the archived-total key written by a daily reset.
func CostArchive(date string) string {
	return fmt.Sprintf("cost:archive:%s", date)
}

// CostRecordKey is the individual cost-record key, expired after 30 days.
func CostRecordKey(timestamp, userID string) string {
	return fmt.Sprintf("cost:record:%s:%s", timestamp, userID)
}

// CostAlert is the idempotency marker for at-most-once-per-day alerting.
func CostAlert(date, level string) string {
	return fmt.Sprintf("cost:alert:%s:%s", date, level)
}

// Coalesce is the short-lived lock key for a coalescer key.
func Coalesce(key string) string {
	return fmt.Sprintf("coalesce:%s", key)
}

// ProviderHealth is the cached health-check key for a provider.
func ProviderHealth(name string) string {
	return fmt.Sprintf("provider:health:%s", name)
}

// PromptMetrics is the hash key tracking prompt-version outcome metrics.
func PromptMetrics(version string) string {
	return fmt.Sprintf("prompt:%s:metrics", version)
}

// ClearUser returns the keys to delete to clear a single user's legacy
// analysis entry, question-key index and per-subreddit trust blobs. It
// deletes nothing itself, and it does not list the per-hash AIQuestions
// result keys, since the store interface has no multi-key scan primitive.
func (k Keyspace) ClearUser(userID string, subreddits []string) []string {
	keys := []string{
		k.LegacyAIAnalysis(userID),
		k.AIQuestionKeys(userID),
	}
	for _, sub := range subreddits {
		keys = append(keys, k.Trust(userID, sub))
	}
	return keys
}
