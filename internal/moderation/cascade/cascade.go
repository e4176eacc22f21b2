// Package cascade implements the Cascade Engine (§4.1): the layered
// moderation decision pipeline — whitelist bypass, community-trust
// bypass, account heuristics, external classifier, and rule engine —
// with early exit on the first matching layer.
package cascade

import (
	"context"

	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/rules"
	"github.com/modsentinel/automod/internal/moderation/trust"
)

// LayerWhitelist through LayerDefault name the layer that produced a
// Decision, for logging and the decision's Layer field.
const (
	LayerWhitelist = "whitelist"
	LayerTrust     = "trust"
	LayerOne       = "layer1"
	LayerTwo       = "layer2"
	LayerThree     = "layer3"
	LayerDefault   = "default"
)

// Warn receives a message for non-fatal problems encountered mid-cascade
// (a layer exception that degrades to "no match", a rule-set load
// failure falling back to defaults, and so on).
type Warn func(msg string)

// Engine ties together the per-layer collaborators into one cascade.
type Engine struct {
	Trust      *trust.Manager
	RuleEngine *RuleEngine
	Classifier ModerationClassifier
	Warn       Warn
}

// New returns an Engine.
func New(trustMgr *trust.Manager, ruleEngine *RuleEngine, classifier ModerationClassifier, warn Warn) *Engine {
	if warn == nil {
		warn = func(string) {}
	}
	return &Engine{Trust: trustMgr, RuleEngine: ruleEngine, Classifier: classifier, Warn: warn}
}

// Evaluate runs the fixed 6-step protocol and always returns a Decision.
func (e *Engine) Evaluate(ctx context.Context, profile model.UserProfile, history model.PostHistory, subject model.Subject, settings model.Settings) model.Decision {
	// 1. Whitelist bypass.
	if settings.IsWhitelisted(subject.AuthorName) {
		return model.Decision{Action: model.ActionApprove, Reason: "whitelisted author", Layer: LayerWhitelist}
	}

	// 2. Community-trust bypass (Layer 3 only).
	trustScore := 0.0
	skipLayer3 := false
	if e.Trust != nil {
		eval, err := e.Trust.GetTrust(ctx, subject.AuthorID, subject.Subreddit, subject.ContentType)
		if err != nil {
			e.Warn("trust lookup failed: " + err.Error())
		} else {
			trustScore = eval.ApprovalRate * 100
			skipLayer3 = eval.IsTrusted
		}
	}

	// 3. Layer 1 — account heuristics.
	if settings.Layer1.Enabled {
		if decision, matched := e.evaluateLayer1(profile, settings.Layer1); matched {
			return decision
		}
	}

	// 4. Layer 2 — external moderation classifier.
	if settings.Layer2.Enabled {
		decision, matched := e.evaluateLayer2(ctx, subject, settings.Layer2)
		if matched {
			return decision
		}
	}

	// 5. Layer 3 — rule engine.
	if settings.Layer3.Enabled && !skipLayer3 {
		decision := e.evaluateLayer3(ctx, profile, history, subject, settings, trustScore)
		if decision != nil {
			return *decision
		}
	}

	// 6. Default.
	return model.Decision{Action: model.ActionApprove, Reason: "no layer matched", Layer: LayerDefault}
}

func (e *Engine) evaluateLayer1(profile model.UserProfile, l1 model.Layer1Settings) (model.Decision, bool) {
	failed := false
	if l1.AccountAgeDays > 0 && profile.AccountAgeDays < l1.AccountAgeDays {
		failed = true
	}
	if l1.KarmaThreshold > 0 && profile.TotalKarma < l1.KarmaThreshold {
		failed = true
	}
	if !failed {
		return model.Decision{}, false
	}
	action := l1.Action
	if action == "" {
		action = model.ActionFlag
	}
	return model.Decision{Action: action, Reason: l1.Message, Layer: LayerOne}, true
}

func (e *Engine) evaluateLayer2(ctx context.Context, subject model.Subject, l2 model.Layer2Settings) (model.Decision, bool) {
	if e.Classifier == nil {
		return model.Decision{}, false
	}
	text := subject.Title + "\n" + subject.Body
	scores, err := e.Classifier.Classify(ctx, text, l2.APIKey, l2.Categories)
	if err != nil {
		e.Warn("layer2 classifier call failed: " + err.Error())
		return model.Decision{}, false
	}

	// sexualMinorsCategory must win regardless of which other category map
	// iteration happens to visit first, so it is checked ahead of the
	// generic loop rather than inline within it.
	if score, ok := scores[sexualMinorsCategory]; ok && score >= l2.Threshold {
		return model.Decision{
			Action:   model.ActionRemove,
			Reason:   "sexual content involving minors",
			Layer:    LayerTwo,
			Metadata: map[string]interface{}{"category": sexualMinorsCategory, "score": score},
		}, true
	}

	for category, score := range scores {
		if category == sexualMinorsCategory || score < l2.Threshold {
			continue
		}
		action := l2.Action
		if action == "" {
			action = model.ActionFlag
		}
		return model.Decision{
			Action:   action,
			Reason:   l2.Message,
			Layer:    LayerTwo,
			Metadata: map[string]interface{}{"category": category, "score": score},
		}, true
	}
	return model.Decision{}, false
}

func (e *Engine) evaluateLayer3(ctx context.Context, profile model.UserProfile, history model.PostHistory, subject model.Subject, settings model.Settings, trustScore float64) *model.Decision {
	result := rules.Validate(settings.Layer3.RulesJSON)
	var ruleSet model.RuleSet
	if !result.OK {
		e.Warn("rule set load failed, falling back to built-in default: " + result.Error)
		ruleSet = rules.BuiltinDefault(settings.Subreddit)
	} else {
		ruleSet = *result.RuleSet
	}
	for _, w := range result.Warnings {
		e.Warn("rule set warning: " + w)
	}

	match, unavailable, err := e.RuleEngine.Evaluate(ctx, ruleSet, profile, history, subject, trustScore)
	if err != nil {
		e.Warn("rule engine evaluation failed: " + err.Error())
		return &model.Decision{Action: model.ActionFlag, Reason: "analysis unavailable", Layer: LayerThree}
	}
	if match != nil {
		return &model.Decision{Action: match.Rule.Action, Reason: match.Reason, Layer: LayerThree}
	}
	if unavailable {
		return &model.Decision{Action: model.ActionFlag, Reason: "analysis unavailable", Layer: LayerThree}
	}
	return nil
}
