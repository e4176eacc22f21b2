package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/internal/moderation/cost"
	"github.com/modsentinel/automod/internal/moderation/notify"
	"github.com/modsentinel/automod/internal/moderation/settingsstore"
)

// startScheduler registers the cron jobs that run independently of any
// webhook trigger: the daily digest (sent once per configured time, here
// fixed to UTC midnight for every installation to keep one cron entry) and
// the cost tracker's daily counter reset. Both run in UTC since Settings
// carries no per-subreddit timezone.
func startScheduler(settings *settingsstore.Store, tracker *cost.Tracker, sink notify.Sink, logger *logging.Logger) *cron.Cron {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc("0 0 * * *", func() {
		ctx := context.Background()
		dailyDigest(ctx, settings, tracker, sink, logger)
		if err := tracker.ResetDaily(ctx); err != nil {
			logger.WithError(err).Error("failed to reset daily cost counters")
		}
	}); err != nil {
		logger.WithError(err).Error("failed to register daily cron job")
	}

	c.Start()
	return c
}
