// Package rules implements the Rule Schema Validator: parsing, defaulting,
// normalization, and non-fatal validation of a moderator-authored rule set.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// CurrentVersion is the only rule-set schema version this validator knows.
const CurrentVersion = "1.0"

// ValidateResult is the Validate contract's output. Validate never panics
// and never returns a Go error for malformed input; syntax failures are
// reported through Error.
type ValidateResult struct {
	OK       bool
	RuleSet  *model.RuleSet
	Warnings []string
	Error    string
}

// Validate parses, normalizes, and validates a rule-set JSON document.
func Validate(jsonStr string) *ValidateResult {
	result := &ValidateResult{}

	if strings.TrimSpace(jsonStr) == "" {
		result.Error = "empty rule set"
		return result
	}

	var raw struct {
		Version   string          `json:"version"`
		Subreddit string          `json:"subreddit"`
		UpdatedAt *time.Time      `json:"updatedAt"`
		Rules     json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		result.Error = syntaxErrorPosition(jsonStr, err)
		return result
	}

	rs := &model.RuleSet{
		Version:   raw.Version,
		Subreddit: raw.Subreddit,
	}
	if rs.Version == "" {
		rs.Version = CurrentVersion
	}
	if rs.Subreddit == "" {
		rs.Subreddit = "unknown"
	}
	if raw.UpdatedAt != nil {
		rs.UpdatedAt = *raw.UpdatedAt
	} else {
		rs.UpdatedAt = time.Now().UTC()
	}

	if rs.Version != CurrentVersion {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unknown rule-set version %q; returning data unchanged", rs.Version))
	}

	var rawRules []json.RawMessage
	if len(raw.Rules) > 0 {
		if err := json.Unmarshal(raw.Rules, &rawRules); err != nil {
			result.Warnings = append(result.Warnings, "malformed rules array; treated as empty")
			rawRules = nil
		}
	}

	now := time.Now().UTC()
	rs.Rules = make([]model.Rule, 0, len(rawRules))
	seenAIIDs := make(map[string]bool)

	for idx, rawRule := range rawRules {
		rule, warnings := normalizeRule(rawRule, idx, now)
		result.Warnings = append(result.Warnings, warnings...)

		if rule.Kind == model.RuleKindAI && rule.AI != nil {
			if seenAIIDs[rule.AI.ID] {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("rule %q: duplicate AI question id %q", rule.ID, rule.AI.ID))
			}
			seenAIIDs[rule.AI.ID] = true
		}

		rs.Rules = append(rs.Rules, rule)
	}

	sortRules(rs.Rules)

	result.OK = true
	result.RuleSet = rs
	return result
}

func normalizeRule(raw json.RawMessage, index int, now time.Time) (model.Rule, []string) {
	var warnings []string

	gj := gjson.ParseBytes(raw)

	var rule model.Rule
	_ = json.Unmarshal(raw, &rule)

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Name == "" {
		rule.Name = fmt.Sprintf("Rule %d", index+1)
	}
	if !gj.Get("enabled").Exists() {
		rule.Enabled = true
	}
	if !gj.Get("priority").Exists() {
		rule.Priority = index * 10
	} else if !gj.Get("priority").IsNumber() {
		warnings = append(warnings, fmt.Sprintf("rule %q: non-numeric priority", rule.ID))
	}

	rule.ContentType = normalizeContentType(rule.ContentType)

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}
	if rule.ActionConfig.Reason == "" {
		rule.ActionConfig.Reason = "Rule matched"
	}

	if !isValidAction(rule.Action) {
		warnings = append(warnings, fmt.Sprintf("rule %q: missing or invalid action", rule.ID))
	}

	// AI field normalization: `ai` wins over legacy `aiQuestion`; after
	// normalization both fields reference the same object so legacy
	// consumers keep working.
	ai := rule.AI
	if ai == nil {
		ai = rule.AIQuestion
	}
	if ai != nil {
		if ai.ID == "" {
			ai.ID = slugify(ai.Question)
		}
		rule.AI = ai
		rule.AIQuestion = ai
		rule.Kind = model.RuleKindAI
		warnings = append(warnings, validateAIQuestion(rule.ID, ai)...)
	} else {
		rule.Kind = model.RuleKindHard
	}

	if !gj.Get("conditions").Exists() {
		warnings = append(warnings, fmt.Sprintf("rule %q: missing conditions", rule.ID))
	} else {
		warnings = append(warnings, validateConditionTree(rule.ID, rule.Conditions)...)
	}

	return rule, warnings
}

func normalizeContentType(ct model.ContentType) model.ContentType {
	switch ct {
	case "":
		return model.ContentTypeAny
	case "post":
		return model.ContentTypePost
	case "all":
		return model.ContentTypeAny
	default:
		return ct
	}
}

func isValidAction(a model.Action) bool {
	switch a {
	case model.ActionApprove, model.ActionFlag, model.ActionRemove, model.ActionComment:
		return true
	default:
		return false
	}
}

func validateAIQuestion(ruleID string, ai *model.AIQuestion) []string {
	var warnings []string
	if ai.Question == "" {
		warnings = append(warnings, fmt.Sprintf("rule %q: ai.question is required on AI rules", ruleID))
	}
	if ai.ConfidenceGuidance != nil && len(ai.ConfidenceGuidance) == 0 {
		warnings = append(warnings, fmt.Sprintf("rule %q: confidenceGuidance must carry at least one level", ruleID))
	}
	if ai.EvidenceRequired != nil && ai.EvidenceRequired.MinPieces < 1 {
		warnings = append(warnings, fmt.Sprintf("rule %q: evidenceRequired.minPieces must be >= 1", ruleID))
	}
	for i, ex := range ai.Examples {
		if ex.Scenario == "" || ex.ExpectedAnswer == "" {
			warnings = append(warnings, fmt.Sprintf("rule %q: example %d missing scenario/expectedAnswer", ruleID, i))
		}
		if ex.Confidence < 0 || ex.Confidence > 100 {
			warnings = append(warnings, fmt.Sprintf("rule %q: example %d confidence out of [0,100]", ruleID, i))
		}
	}
	return warnings
}

func validateConditionTree(ruleID string, node model.ConditionNode) []string {
	var warnings []string
	if node.LogicalOperator != "" {
		if len(node.Rules) == 0 {
			warnings = append(warnings, fmt.Sprintf("rule %q: composite condition missing rules", ruleID))
		}
		for _, child := range node.Rules {
			warnings = append(warnings, validateConditionTree(ruleID, child)...)
		}
		return warnings
	}
	if node.Field != "" && node.Operator == "" {
		warnings = append(warnings, fmt.Sprintf("rule %q: leaf condition missing operator", ruleID))
	}
	return warnings
}

func sortRules(rules []model.Rule) {
	// Stable sort keeps insertion order for equal priorities.
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j-1].Priority < rules[j].Priority; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		out = uuid.NewString()
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}

func syntaxErrorPosition(raw string, err error) string {
	if se, ok := err.(*json.SyntaxError); ok {
		line, col := lineColumn(raw, int(se.Offset))
		return fmt.Sprintf("syntax error at line %d, column %d: %v", line, col, err)
	}
	return err.Error()
}

func lineColumn(raw string, offset int) (line, col int) {
	line = 1
	col = 1
	for i, r := range raw {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
