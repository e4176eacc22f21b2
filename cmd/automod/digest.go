package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/internal/moderation/cost"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/notify"
	"github.com/modsentinel/automod/internal/moderation/settingsstore"
)

// dailyDigest reports the previous day's moderation spend to every
// installed subreddit that opted into it via Settings.Notifications. The
// cost tracker is a single process-wide ledger (§4.6), not partitioned per
// subreddit, so every subscriber receives the same report.
func dailyDigest(ctx context.Context, settings *settingsstore.Store, tracker *cost.Tracker, sink notify.Sink, logger *logging.Logger) {
	report, err := tracker.Report(ctx, 1)
	if err != nil {
		logger.WithError(err).Error("daily digest: failed to build spending report")
		return
	}

	subreddits, err := settings.List(ctx)
	if err != nil {
		logger.WithError(err).Error("daily digest: failed to list installations")
		return
	}

	body := renderDigestBody(report)

	for _, subreddit := range subreddits {
		installed, ok, err := settings.Get(ctx, subreddit)
		if err != nil {
			logger.WithError(err).WithField("subreddit", subreddit).Warn("daily digest: failed to load settings")
			continue
		}
		if !ok || !installed.Notifications.DailyDigestEnabled {
			continue
		}
		if err := sink.SendModmail(ctx, subreddit, "Daily moderation digest", body); err != nil {
			logger.WithError(err).WithField("subreddit", subreddit).Warn("daily digest: modmail send failed")
		}
	}
}

func renderDigestBody(report model.SpendingReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total spend: $%.2f\n", float64(report.TotalCents)/100)
	for _, provider := range report.ByProvider {
		fmt.Fprintf(&b, "- %s: $%.2f (%d calls)\n", provider.Provider, float64(provider.TotalCents)/100, provider.EstimatedCalls)
	}
	return b.String()
}
