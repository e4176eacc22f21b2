// Package effector maps a cascade Decision onto host-platform actions (§6):
// APPROVE is a no-op, FLAG reports to the modqueue, REMOVE removes the
// content and optionally posts a templated reply, COMMENT posts a sticky
// reply. Dry-run short-circuits every branch to a log line.
package effector

import (
	"context"
	"strings"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/internal/moderation/model"
)

// Actions is the narrow host-platform action surface the Effector drives.
// A concrete implementation speaks whatever webhook-callback protocol the
// host platform exposes; the Effector itself is host-agnostic.
type Actions interface {
	ReportToModqueue(ctx context.Context, contentID, reason string) error
	Remove(ctx context.Context, contentID, reason string) error
	Reply(ctx context.Context, contentID, body string, sticky bool) error
}

// Effector applies a Decision via Actions, honoring dry-run.
type Effector struct {
	actions Actions
	logger  *logging.Logger
}

// New returns an Effector.
func New(actions Actions, logger *logging.Logger) *Effector {
	return &Effector{actions: actions, logger: logger}
}

// Apply executes decision against subject under settings. Effector actions
// are idempotent; dry-run never acts, only logs.
func (e *Effector) Apply(ctx context.Context, decision model.Decision, subject model.Subject, settings model.Settings) error {
	entry := e.logger.WithFields(map[string]interface{}{
		"content_id": subject.ContentID,
		"subreddit":  subject.Subreddit,
		"layer":      decision.Layer,
		"action":     decision.Action,
	})

	if settings.DryRun.Enabled {
		if settings.DryRun.LogDetails {
			entry.WithField("reason", decision.Reason).Info("dry-run: would apply decision")
		} else {
			entry.Info("dry-run: would apply decision")
		}
		return nil
	}

	switch decision.Action {
	case model.ActionApprove:
		return nil
	case model.ActionFlag:
		if err := e.actions.ReportToModqueue(ctx, subject.ContentID, decision.Reason); err != nil {
			entry.WithError(err).Error("report to modqueue failed")
			return err
		}
		return nil
	case model.ActionRemove:
		if err := e.actions.Remove(ctx, subject.ContentID, decision.Reason); err != nil {
			entry.WithError(err).Error("remove failed")
			return err
		}
		if reply := renderTemplate(settings.Templates.RemoveTemplate, decision.Reason); reply != "" {
			if err := e.actions.Reply(ctx, subject.ContentID, reply, false); err != nil {
				entry.WithError(err).Warn("remove reply failed")
			}
		}
		return nil
	case model.ActionComment:
		reply := renderTemplate(settings.Templates.CommentTemplate, decision.Reason)
		if reply == "" {
			reply = decision.Reason
		}
		if err := e.actions.Reply(ctx, subject.ContentID, reply, true); err != nil {
			entry.WithError(err).Error("sticky reply failed")
			return err
		}
		return nil
	default:
		entry.Warn("unknown decision action, treating as no-op")
		return nil
	}
}

// renderTemplate substitutes {{reason}} in template with reason. Returns ""
// if template is empty.
func renderTemplate(template, reason string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{{reason}}", reason)
}
