// Package condition implements the Condition Evaluator and Variable
// Substitutor: a short-circuit recursive-descent evaluator over boolean
// condition trees, and a `{a.b.c}` template resolver sharing the same
// dotted-path field resolution.
package condition

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// Context is the evaluation context a rule's conditions are resolved
// against: the user's profile, their recent history, the subject under
// evaluation, and (if Layer 3 dispatched AI questions) the batch of answers.
// CurrentRule, when set, lets bare `ai.*` paths resolve to this rule's own
// AI answer.
type Context struct {
	Profile     model.UserProfile
	History     model.PostHistory
	CurrentPost model.Subject
	Subreddit   string
	Batch       *model.AIBatchResult
	CurrentRule *model.Rule

	legacyDoc interface{}
}

var urlPattern = regexp.MustCompile(`https?://([^/\s]+)`)

// Domains extracts the distinct hostnames referenced in the current post's body.
func (c Context) Domains() []string {
	matches := urlPattern.FindAllStringSubmatch(c.CurrentPost.Body, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		host := m[1]
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	return out
}

// Resolve looks up a dotted field path against the context. It returns
// (value, true) when found, or (nil, false) when the path is unknown —
// callers treat unknown paths as "does not exist".
func (c *Context) Resolve(path string) (interface{}, bool) {
	switch {
	case path == "subreddit":
		return c.Subreddit, true
	case strings.HasPrefix(path, "profile."):
		return c.resolveProfile(strings.TrimPrefix(path, "profile."))
	case strings.HasPrefix(path, "postHistory."):
		return c.resolveHistory(strings.TrimPrefix(path, "postHistory."))
	case strings.HasPrefix(path, "currentPost."):
		return c.resolveCurrentPost(strings.TrimPrefix(path, "currentPost."))
	case path == "ai.answer" || path == "ai.confidence" || path == "ai.reasoning":
		return c.resolveCurrentRuleAI(strings.TrimPrefix(path, "ai."))
	case strings.HasPrefix(path, "ai."):
		return c.resolveAIByID(strings.TrimPrefix(path, "ai."))
	case strings.HasPrefix(path, "aiAnalysis.answers."):
		return c.resolveLegacyAIAnalysis(strings.TrimPrefix(path, "aiAnalysis.answers."))
	default:
		return nil, false
	}
}

func (c *Context) resolveProfile(field string) (interface{}, bool) {
	switch field {
	case "accountAgeInDays":
		return c.Profile.AccountAgeDays, true
	case "totalKarma":
		return c.Profile.TotalKarma, true
	case "emailVerified":
		return c.Profile.EmailVerified, true
	case "isModerator":
		return c.Profile.IsModerator, true
	default:
		return nil, false
	}
}

func (c *Context) resolveHistory(field string) (interface{}, bool) {
	switch {
	case field == "totalPosts":
		return c.History.TotalPosts, true
	case field == "totalComments":
		return c.History.TotalComments, true
	case field == "metrics.averageScore":
		return c.History.Metrics.AverageScore, true
	case field == "metrics.oldestDate":
		return c.History.Metrics.OldestDate, true
	case field == "metrics.newestDate":
		return c.History.Metrics.NewestDate, true
	default:
		return nil, false
	}
}

func (c *Context) resolveCurrentPost(field string) (interface{}, bool) {
	switch field {
	case "title":
		return c.CurrentPost.Title, true
	case "body":
		return c.CurrentPost.Body, true
	case "subreddit":
		return c.CurrentPost.Subreddit, true
	case "wordCount":
		return c.CurrentPost.WordCount(), true
	case "domains":
		return c.Domains(), true
	default:
		return nil, false
	}
}

func (c *Context) resolveCurrentRuleAI(field string) (interface{}, bool) {
	if c.CurrentRule == nil || c.Batch == nil {
		return nil, false
	}
	ai := c.CurrentRule.AI
	if ai == nil {
		return nil, false
	}
	answer, ok := c.Batch.AnswerFor(ai.ID)
	if !ok {
		return nil, false
	}
	return answerField(answer, field)
}

func (c *Context) resolveAIByID(rest string) (interface{}, bool) {
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 || c.Batch == nil {
		return nil, false
	}
	answer, ok := c.Batch.AnswerFor(parts[0])
	if !ok {
		return nil, false
	}
	return answerField(answer, parts[1])
}

func (c *Context) resolveLegacyAIAnalysis(rest string) (interface{}, bool) {
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 || c.Batch == nil {
		return nil, false
	}
	answer, ok := c.Batch.AnswerFor(parts[0])
	if ok {
		return answerField(answer, parts[1])
	}
	// Fall back to a generic jsonpath walk over a decoded legacy document,
	// for installations whose settings snapshot still carries the old
	// {aiAnalysis:{answers:{...}}} shape verbatim.
	doc, err := c.legacyDocument()
	if err != nil {
		return nil, false
	}
	val, err := jsonpath.Get("$."+rest, doc)
	if err != nil {
		return nil, false
	}
	return val, true
}

// legacyDocument builds a {questionId: {answer, confidence, reasoning}}
// map from the current batch, mirroring the legacy
// {aiAnalysis:{answers:{<id>:{...}}}} wire shape so jsonpath can walk it.
func (c *Context) legacyDocument() (interface{}, error) {
	if c.legacyDoc != nil {
		return c.legacyDoc, nil
	}
	if c.Batch == nil {
		return nil, nil
	}
	byID := make(map[string]interface{}, len(c.Batch.Answers))
	for _, a := range c.Batch.Answers {
		byID[a.QuestionID] = map[string]interface{}{
			"answer":     a.Answer,
			"confidence": a.Confidence,
			"reasoning":  a.Reasoning,
		}
	}
	raw, err := json.Marshal(byID)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	c.legacyDoc = doc
	return doc, nil
}

func answerField(a model.AIAnswer, field string) (interface{}, bool) {
	switch field {
	case "answer":
		return a.Answer, true
	case "confidence":
		return a.Confidence, true
	case "reasoning":
		return a.Reasoning, true
	default:
		return nil, false
	}
}
