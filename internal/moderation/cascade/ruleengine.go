package cascade

import (
	"context"
	"sort"
	"strings"

	"github.com/modsentinel/automod/internal/moderation/analyzer"
	"github.com/modsentinel/automod/internal/moderation/condition"
	"github.com/modsentinel/automod/internal/moderation/model"
)

// RuleEngine evaluates a validated RuleSet against a subject, dispatching
// AI-backed rule questions through the Analyzer as needed (§4.2).
type RuleEngine struct {
	analyzer *analyzer.Analyzer
}

// NewRuleEngine returns a RuleEngine.
func NewRuleEngine(a *analyzer.Analyzer) *RuleEngine {
	return &RuleEngine{analyzer: a}
}

// RuleMatch is the outcome of the first matching enabled rule.
type RuleMatch struct {
	Rule   model.Rule
	Reason string
}

// Evaluate walks ruleSet in priority order and returns the first matching
// enabled rule's decision, or (nil, false, nil) if every rule was
// considered and none matched (APPROVE). unavailable is true if any
// AI-backed rule could not be evaluated because the Analyzer returned
// null (budget exhausted or no provider available) — the cascade must
// then emit FLAG "analysis unavailable" rather than fall through to a
// default APPROVE, since a higher-confidence rule may have been skipped.
func (e *RuleEngine) Evaluate(ctx context.Context, ruleSet model.RuleSet, profile model.UserProfile, history model.PostHistory, subject model.Subject, trustScore float64) (match *RuleMatch, unavailable bool, err error) {
	rules := sortedRules(ruleSet.Rules)

	for i := range rules {
		rule := rules[i]
		if !rule.Enabled || !rule.AppliesTo(subject.ContentType) {
			continue
		}

		var batch *model.AIBatchResult
		if rule.Kind == model.RuleKindAI || rule.AI != nil {
			ids := collectQuestionIDs(rule)
			if len(ids) == 0 {
				continue
			}
			questions := questionsFor(rule, ids)
			result, analyzeErr := e.analyzer.Analyze(ctx, profile, history, subject, questions, trustScore)
			if analyzeErr != nil || result == nil {
				// Analyzer failure/budget-exhaustion: this rule cannot be
				// evaluated. Remember it and keep checking lower-priority
				// rules, but the overall layer is now "unavailable".
				unavailable = true
				continue
			}
			batch = result
		}

		evalCtx := &condition.Context{
			Profile:     profile,
			History:     history.Truncate(),
			CurrentPost: subject,
			Subreddit:   subject.Subreddit,
			Batch:       batch,
			CurrentRule: &rule,
		}

		eval := condition.NewEvaluator(nil)
		if eval.Evaluate(rule.Conditions, evalCtx) {
			reason := condition.Substitute(rule.ActionConfig.Reason, evalCtx)
			return &RuleMatch{Rule: rule, Reason: reason}, false, nil
		}
	}

	return nil, unavailable, nil
}

// sortedRules returns rules ordered by priority descending, then
// definition order — the Schema Validator already sorts persisted rule
// sets this way, but this is re-applied defensively for callers that
// construct a RuleSet directly (e.g. the built-in default).
func sortedRules(rules []model.Rule) []model.Rule {
	out := append([]model.Rule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// collectQuestionIDs gathers every AI question id a rule's conditions
// reference (`ai.<id>.*` or legacy `aiAnalysis.answers.<id>.*`), plus the
// rule's own ai.id for bare `ai.answer`/`ai.confidence`/`ai.reasoning`
// shorthand.
func collectQuestionIDs(rule model.Rule) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if rule.AI != nil {
		add(rule.AI.ID)
	}

	var walk func(node model.ConditionNode)
	walk = func(node model.ConditionNode) {
		if node.IsLeaf() {
			switch {
			case strings.HasPrefix(node.Field, "ai.") && !isCurrentRuleShorthand(node.Field):
				rest := strings.TrimPrefix(node.Field, "ai.")
				add(strings.SplitN(rest, ".", 2)[0])
			case strings.HasPrefix(node.Field, "aiAnalysis.answers."):
				rest := strings.TrimPrefix(node.Field, "aiAnalysis.answers.")
				add(strings.SplitN(rest, ".", 2)[0])
			}
			return
		}
		for _, child := range node.Rules {
			walk(child)
		}
	}
	walk(rule.Conditions)

	return ids
}

func isCurrentRuleShorthand(field string) bool {
	return field == "ai.answer" || field == "ai.confidence" || field == "ai.reasoning"
}

// questionsFor resolves the AIQuestion configuration for each referenced
// id. Only the rule's own ai.id carries a full AIQuestion configuration;
// cross-referenced ids (from other rules' batches already cached) are
// represented with their id alone so the Analyzer can still include them
// in its cache-key hash and batch request.
func questionsFor(rule model.Rule, ids []string) []model.AIQuestion {
	questions := make([]model.AIQuestion, 0, len(ids))
	for _, id := range ids {
		if rule.AI != nil && rule.AI.ID == id {
			questions = append(questions, *rule.AI)
			continue
		}
		questions = append(questions, model.AIQuestion{ID: id})
	}
	return questions
}
