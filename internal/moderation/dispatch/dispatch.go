// Package dispatch implements the LLM Question Dispatcher (§4.7):
// deterministic prompt assembly, PII/URL scrubbing of all user content,
// a single batched provider call, and response validation + cost
// accounting.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/provider"
	"github.com/modsentinel/automod/internal/moderation/response"
	"github.com/modsentinel/automod/internal/moderation/sanitize"
)

const (
	temperature     = 0.3
	maxOutputTokens = 1500
)

// Dispatcher assembles prompts and calls a Provider for a batch of
// AI-backed rule questions.
type Dispatcher struct {
	now func() time.Time
}

// New returns a Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{now: time.Now}
}

// BuildResult carries the assembled prompt plus how much PII/URL content
// was scrubbed from it, for logging.
type BuildResult struct {
	Prompt        string
	RemovedCounts map[string]int
}

// BuildPrompt deterministically assembles the prompt for one batch of
// questions against one subject, scrubbing all user content first.
func (d *Dispatcher) BuildPrompt(profile model.UserProfile, history model.PostHistory, subject model.Subject, questions []model.AIQuestion) BuildResult {
	removed := map[string]int{}
	scrub := func(s string) string {
		result := sanitize.Sanitize(s)
		for k, v := range result.Removed {
			removed[k] += v
		}
		return result.Text
	}

	var b strings.Builder

	b.WriteString("You are an impartial community moderation analyst.\n\n")

	b.WriteString("## User Profile\n")
	fmt.Fprintf(&b, "username: %s\naccountAgeDays: %d\ntotalKarma: %d\nemailVerified: %t\nisModerator: %t\n\n",
		scrub(profile.Username), profile.AccountAgeDays, profile.TotalKarma, profile.EmailVerified, profile.IsModerator)

	b.WriteString("## Recent History\n")
	truncated := history.Truncate()
	if len(truncated.Items) == 0 {
		b.WriteString("(No post history available)\n")
	}
	for _, item := range truncated.Items {
		kind := "POST"
		if item.Type == model.ContentTypeComment {
			kind = "COMMENT"
		}
		fmt.Fprintf(&b, "[%s in r/%s] %s\n", kind, item.Subreddit, scrub(item.Content))
	}
	b.WriteString("\n")

	b.WriteString("## Current Post\n")
	fmt.Fprintf(&b, "title: %s\nbody: %s\n\n", scrub(subject.Title), scrub(subject.Body))

	b.WriteString("## Decision Framework\n")
	b.WriteString("Answer each question independently, using only the evidence above. ")
	b.WriteString("Calibrate confidence to the strength of that evidence; default to NO when evidence is ambiguous.\n\n")

	b.WriteString("## Questions\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "### %s\n%s\n", q.ID, scrub(q.Question))
		if q.AnalysisFramework != "" {
			fmt.Fprintf(&b, "Analysis framework: %s\n", scrub(q.AnalysisFramework))
		}
		if len(q.FalsePositiveFilters) > 0 {
			fmt.Fprintf(&b, "False-positive filters: %s\n", strings.Join(q.FalsePositiveFilters, "; "))
		}
		if q.NegationHandling != nil && q.NegationHandling.Enabled {
			b.WriteString("Watch for negated phrasing (e.g. \"not selling\") before answering YES.\n")
		}
		if q.EvidenceRequired != nil && q.EvidenceRequired.MinPieces > 0 {
			fmt.Fprintf(&b, "Cite at least %d piece(s) of evidence if answering YES.\n", q.EvidenceRequired.MinPieces)
		}
		for _, ex := range q.Examples {
			fmt.Fprintf(&b, "Example: %q -> %s\n", scrub(ex.Scenario), ex.ExpectedAnswer)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Output\n")
	b.WriteString(`Respond with strict JSON only: {"answers":[{"questionId":string,"answer":"YES"|"NO","confidence":0-100,"reasoning":string,"evidencePieces"?:string[],"falsePositivePatternsDetected"?:string[],"negationDetected"?:bool}]}`)

	return BuildResult{Prompt: b.String(), RemovedCounts: removed}
}

// Dispatch assembles the prompt, calls p, and validates/accounts for the
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, p provider.Provider, profile model.UserProfile, history model.PostHistory, subject model.Subject, questions []model.AIQuestion) (model.AIBatchResult, error) {
	expected := make([]string, len(questions))
	for i, q := range questions {
		expected[i] = q.ID
	}

	built := d.BuildPrompt(profile, history, subject, questions)

	resp, err := p.Analyze(ctx, provider.AnalyzeRequest{
		Prompt:          built.Prompt,
		Temperature:     temperature,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return model.AIBatchResult{}, fmt.Errorf("provider call failed: %w", err)
	}

	answers, err := response.Validate(resp.RawJSON, expected)
	if err != nil {
		return model.AIBatchResult{}, fmt.Errorf("invalid provider response: %w", err)
	}

	cost := p.CalculateCostUSD(resp.InputTokens, resp.OutputTokens)

	return model.AIBatchResult{
		UserID:        profile.UserID,
		Answers:       answers,
		Provider:      p.Type(),
		Model:         p.Model(),
		LatencyMs:     resp.LatencyMS,
		TokensUsed:    resp.InputTokens + resp.OutputTokens,
		CostUSD:       cost,
		CorrelationID: uuid.NewString(),
		Timestamp:     d.now(),
	}, nil
}
