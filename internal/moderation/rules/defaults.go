package rules

import (
	"time"

	"github.com/modsentinel/automod/internal/moderation/model"
)

// BuiltinDefault returns the per-subreddit built-in default rule set used
// when rule-set loading or validation fails irrecoverably. It contains a
// single conservative HARD rule: approve everything, letting Layers 1/2
// carry enforcement until moderators author their own rules.
func BuiltinDefault(subreddit string) model.RuleSet {
	now := time.Now().UTC()
	return model.RuleSet{
		Version:   CurrentVersion,
		Subreddit: subreddit,
		UpdatedAt: now,
		Rules: []model.Rule{
			{
				ID:          "builtin-default-approve",
				Name:        "Default Approve",
				Enabled:     true,
				Priority:    0,
				Kind:        model.RuleKindHard,
				ContentType: model.ContentTypeAny,
				Conditions: model.ConditionNode{
					Field:    "subreddit",
					Operator: "exists",
				},
				Action: model.ActionApprove,
				ActionConfig: model.ActionConfig{
					Reason: "No moderator rules configured",
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}
}
