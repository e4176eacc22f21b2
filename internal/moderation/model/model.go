// Package model holds the data types shared across the moderation cascade:
// subjects, profiles, rules, AI answers, and the cost/trust ledgers.
package model

import "time"

// ContentType identifies whether a Subject is a post or a comment.
type ContentType string

const (
	ContentTypePost    ContentType = "submission"
	ContentTypeComment ContentType = "comment"
	ContentTypeAny     ContentType = "any"
)

// Action is a moderation decision emitted by a cascade layer or rule.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionFlag    Action = "FLAG"
	ActionRemove  Action = "REMOVE"
	ActionComment Action = "COMMENT"
)

// Subject is a submission under evaluation: a post or a comment.
type Subject struct {
	ContentID   string
	AuthorID    string
	AuthorName  string
	Subreddit   string
	Title       string
	Body        string
	ContentType ContentType
	CreatedAt   time.Time
}

// WordCount returns the whitespace-delimited word count of title+body.
func (s Subject) WordCount() int {
	text := s.Title + " " + s.Body
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

// UserProfile is fetched once per cascade invocation and is immutable within it.
type UserProfile struct {
	UserID         string
	Username       string
	AccountAgeDays int
	TotalKarma     int
	EmailVerified  bool
	IsModerator    bool
	HasFlair       bool
	IsPremium      bool
	IsVerified     bool
}

// HistoryItem is one entry of a user's recent post/comment history.
type HistoryItem struct {
	Type      ContentType
	Subreddit string
	Content   string
	Score     int
	CreatedAt time.Time
}

// HistoryMetrics aggregates a PostHistory.
type HistoryMetrics struct {
	AverageScore float64
	OldestDate   time.Time
	NewestDate   time.Time
}

// PostHistory is a user's recent activity, truncated to the most recent
// 200 items before use by any downstream component.
const MaxHistoryItems = 200

type PostHistory struct {
	Items         []HistoryItem
	TotalPosts    int
	TotalComments int
	Metrics       HistoryMetrics
}

// Truncate returns a copy of h with at most MaxHistoryItems items, keeping
// the most recent ones.
func (h PostHistory) Truncate() PostHistory {
	if len(h.Items) <= MaxHistoryItems {
		return h
	}
	out := h
	out.Items = append([]HistoryItem(nil), h.Items[len(h.Items)-MaxHistoryItems:]...)
	return out
}

// ConditionNode is either a leaf {field, operator, value} or a composite
// {logicalOperator, rules[]}.
type ConditionNode struct {
	Field           string          `json:"field,omitempty"`
	Operator        string          `json:"operator,omitempty"`
	Value           interface{}     `json:"value,omitempty"`
	CaseSensitive   bool            `json:"caseSensitive,omitempty"`
	LogicalOperator string          `json:"logicalOperator,omitempty"`
	Rules           []ConditionNode `json:"rules,omitempty"`
}

// IsLeaf reports whether the node is a leaf condition rather than a composite.
func (n ConditionNode) IsLeaf() bool {
	return n.LogicalOperator == "" && n.Field != ""
}

// AIExample is a worked example attached to an AI rule for calibration.
type AIExample struct {
	Scenario       string `json:"scenario"`
	ExpectedAnswer string `json:"expectedAnswer"`
	Confidence     int    `json:"confidence,omitempty"`
}

// AIEvidenceRequired configures the minimum evidence expected from the model.
type AIEvidenceRequired struct {
	MinPieces int      `json:"minPieces,omitempty"`
	Types     []string `json:"types,omitempty"`
}

// AINegationHandling configures negation-aware prompting.
type AINegationHandling struct {
	Enabled bool `json:"enabled"`
}

// AIQuestion is the optional AI configuration attached to a rule.
type AIQuestion struct {
	ID                   string              `json:"id"`
	Question             string              `json:"question"`
	Context              string              `json:"context,omitempty"`
	ConfidenceGuidance   map[string]string   `json:"confidenceGuidance,omitempty"`
	AnalysisFramework    string              `json:"analysisFramework,omitempty"`
	EvidenceRequired     *AIEvidenceRequired `json:"evidenceRequired,omitempty"`
	NegationHandling     *AINegationHandling `json:"negationHandling,omitempty"`
	FalsePositiveFilters []string            `json:"falsePositiveFilters,omitempty"`
	Examples             []AIExample         `json:"examples,omitempty"`
}

// ActionConfig carries the reason/template applied when a rule matches.
type ActionConfig struct {
	Reason   string `json:"reason"`
	Template string `json:"template,omitempty"`
}

// RuleKind distinguishes deterministic rules from AI-backed ones.
type RuleKind string

const (
	RuleKindHard RuleKind = "HARD"
	RuleKindAI   RuleKind = "AI"
)

// Rule is a single moderator-authored rule.
type Rule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	Priority     int           `json:"priority"`
	Kind         RuleKind      `json:"type"`
	ContentType  ContentType   `json:"contentType"`
	Conditions   ConditionNode `json:"conditions"`
	Action       Action        `json:"action"`
	ActionConfig ActionConfig  `json:"actionConfig"`
	AI           *AIQuestion   `json:"ai,omitempty"`
	AIQuestion   *AIQuestion   `json:"aiQuestion,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// AppliesTo reports whether the rule's contentType matches the subject's.
func (r Rule) AppliesTo(ct ContentType) bool {
	return r.ContentType == ContentTypeAny || r.ContentType == ct
}

// RuleSet is an ordered, validated collection of rules scoped to one
// installation (subreddit).
type RuleSet struct {
	Version   string    `json:"version"`
	Subreddit string    `json:"subreddit"`
	UpdatedAt time.Time `json:"updatedAt"`
	Rules     []Rule    `json:"rules"`
}

// AIAnswer is one answer in a batched LLM response.
type AIAnswer struct {
	QuestionID                    string   `json:"questionId"`
	Answer                        string   `json:"answer"`
	Confidence                    int      `json:"confidence"`
	Reasoning                     string   `json:"reasoning"`
	EvidencePieces                []string `json:"evidencePieces,omitempty"`
	FalsePositivePatternsDetected []string `json:"falsePositivePatternsDetected,omitempty"`
	NegationDetected              bool     `json:"negationDetected,omitempty"`
}

// AIBatchResult is the outcome of one batched LLM call.
type AIBatchResult struct {
	UserID        string        `json:"userId"`
	Timestamp     time.Time     `json:"timestamp"`
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	CorrelationID string        `json:"correlationId"`
	CacheTTL      time.Duration `json:"cacheTtl"`
	TokensUsed    int           `json:"tokensUsed"`
	CostUSD       float64       `json:"costUsd"`
	LatencyMs     int64         `json:"latencyMs"`
	Answers       []AIAnswer    `json:"answers"`
}

// AnswerFor returns the answer with the given question id, if present.
func (b AIBatchResult) AnswerFor(questionID string) (AIAnswer, bool) {
	for _, a := range b.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return AIAnswer{}, false
}

// CostRecord is one billable LLM call, stored verbatim for <=30 days.
type CostRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Provider   string    `json:"provider"`
	UserID     string    `json:"userId"`
	TokensUsed int       `json:"tokensUsed"`
	CostUSD    float64   `json:"costUsd"`
	Cached     bool      `json:"cached"`
}

// AlertLevel classifies how close the daily spend is to the budget limit.
type AlertLevel string

const (
	AlertNone     AlertLevel = "NONE"
	AlertWarn50   AlertLevel = "WARN_50"
	AlertWarn75   AlertLevel = "WARN_75"
	AlertWarn90   AlertLevel = "WARN_90"
	AlertExceeded AlertLevel = "EXCEEDED"
)

// BudgetStatus is a point-in-time view of the cost tracker's ledger.
type BudgetStatus struct {
	DailyLimitCents     int64
	DailySpentCents     int64
	DailyRemainingCents int64
	MonthlySpentCents   int64
	PerProviderCents    map[string]int64
	AlertLevel          AlertLevel
}

// TrustCounters accumulates outcomes for one content kind (posts or comments).
type TrustCounters struct {
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Flagged   int `json:"flagged"`
	Removed   int `json:"removed"`
}

// CommunityTrust is the per-(user, subreddit) approval ledger.
type CommunityTrust struct {
	UserID         string        `json:"userId"`
	Subreddit      string        `json:"subreddit"`
	Posts          TrustCounters `json:"posts"`
	Comments       TrustCounters `json:"comments"`
	LastActivity   time.Time     `json:"lastActivity"`
	LastCalculated time.Time     `json:"lastCalculated"`
}

// CountersFor returns the counters for the given content kind.
func (t *CommunityTrust) CountersFor(ct ContentType) *TrustCounters {
	if ct == ContentTypeComment {
		return &t.Comments
	}
	return &t.Posts
}

// TrustEvaluation is the result of a trust lookup for one (user, subreddit, kind).
type TrustEvaluation struct {
	Submitted    int
	ApprovalRate float64
	MonthsStale  int
	IsTrusted    bool
}

// TrustUpdateResult reports the effect of one Update call.
type TrustUpdateResult struct {
	OldScore float64
	NewScore float64
	Delta    float64
}

// ApprovedTracking records a short-lived APPROVE decision so a later
// moderator removal can be reconciled against the trust ledger.
type ApprovedTracking struct {
	ContentID   string      `json:"contentId"`
	UserID      string      `json:"userId"`
	Subreddit   string      `json:"subreddit"`
	ContentType ContentType `json:"contentType"`
	ApprovedAt  time.Time   `json:"approvedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Decision is the cascade's top-level output.
type Decision struct {
	Action   Action                 `json:"action"`
	Reason   string                 `json:"reason"`
	Layer    string                 `json:"layer"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DaySpend is one day's aggregate spend within a SpendingReport.
type DaySpend struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"totalCents"`
}

// ProviderSpend is one provider's aggregate spend and estimated request
// count within a SpendingReport window.
type ProviderSpend struct {
	Provider       string `json:"provider"`
	TotalCents     int64  `json:"totalCents"`
	EstimatedCalls int64  `json:"estimatedCalls"`
}

// SpendingReport aggregates cost over a requested day window.
type SpendingReport struct {
	Days       int             `json:"days"`
	TotalCents int64           `json:"totalCents"`
	ByDay      []DaySpend      `json:"byDay"`
	ByProvider []ProviderSpend `json:"byProvider"`
}
