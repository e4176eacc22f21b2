// Package main wires the automod webhook server: configuration, the
// durable store, every moderation-core component, the gin HTTP surface,
// and the cron schedule for the daily digest and budget reset.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/infrastructure/metrics"
	"github.com/modsentinel/automod/infrastructure/resilience"
	"github.com/modsentinel/automod/internal/moderation/analyzer"
	"github.com/modsentinel/automod/internal/moderation/cascade"
	"github.com/modsentinel/automod/internal/moderation/coalesce"
	"github.com/modsentinel/automod/internal/moderation/cost"
	"github.com/modsentinel/automod/internal/moderation/dispatch"
	"github.com/modsentinel/automod/internal/moderation/effector"
	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/notify"
	"github.com/modsentinel/automod/internal/moderation/provider"
	"github.com/modsentinel/automod/internal/moderation/settingsstore"
	"github.com/modsentinel/automod/internal/moderation/trust"
	"github.com/modsentinel/automod/internal/store"
	"github.com/modsentinel/automod/pkg/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewFromEnv("automod")

	s, err := newStore(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize store", err)
	}
	defer s.Close()

	ks := keyspace.New(cfg.Store.CacheVersion)

	var sink notify.Sink
	if cfg.Host.NotifyEndpoint != "" {
		sink = notify.NewHTTPSink(cfg.Host.NotifyEndpoint, logger)
	} else {
		sink = notify.NewLoggingSink(logger)
	}

	var m *metrics.Metrics
	if metrics.Enabled() {
		m = metrics.Init("automod")
	}

	tracker := cost.New(s, cfg.Budget.DailyLimitCents, cfg.Budget.MonthlyLimitCents,
		[3]float64{cfg.Budget.WarnThreshold1, cfg.Budget.WarnThreshold2, cfg.Budget.WarnThreshold3},
		func(level model.AlertLevel, status model.BudgetStatus) {
			if m != nil {
				m.RecordBudgetAlert("automod", string(level))
			}
			if level == model.AlertNone {
				return
			}
			if err := sink.SendModmail(ctx, "automod", "Moderation budget alert", budgetAlertBody(level, status)); err != nil {
				logger.Error(ctx, "budget alert modmail failed", err, nil)
			}
		}, time.Now)

	coalescer := coalesce.New(s)

	selector := provider.NewSelector(s, newProviderCandidate(cfg.Providers.PrimaryProvider, cfg), newProviderCandidate(cfg.Providers.FallbackProvider, cfg))
	dispatcher := dispatch.New()

	az := analyzer.New(s, ks, tracker, coalescer, selector, dispatcher)
	trustMgr := trust.New(s, ks, time.Now)
	ruleEngine := cascade.NewRuleEngine(az)

	var classifier cascade.ModerationClassifier
	if cfg.Host.ClassifierEndpoint != "" {
		classifier = cascade.NewHTTPClassifier(cfg.Host.ClassifierEndpoint)
	}

	warn := func(msg string) { logger.Warn(ctx, msg, nil) }
	engine := cascade.New(trustMgr, ruleEngine, classifier, warn)

	settingsStore := settingsstore.New(s)

	var actions effector.Actions
	if cfg.Host.ActionsEndpoint != "" {
		actions = effector.NewHTTPActions(cfg.Host.ActionsEndpoint)
	}
	eff := effector.New(actions, logger)

	router := newRouter(routerConfig{
		engine:        engine,
		effector:      eff,
		settings:      settingsStore,
		trust:         trustMgr,
		logger:        logger,
		webhookSecret: cfg.Security.RedditWebhookSecret,
	})

	cronScheduler := startScheduler(settingsStore, tracker, sink, logger)
	defer cronScheduler.Stop()

	httpServer := &http.Server{
		Addr:               fmt.Sprintf("%s:%d", cfg.Server.Host, serverPort(cfg.Server.Port)),
		Handler:            router,
		ReadTimeout:        30 * time.Second,
		WriteHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info(ctx, "automod starting", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "server error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info(ctx, "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "graceful shutdown failed", err, nil)
	}
}

func serverPort(port int) int {
	if port == 0 {
		return 8080
	}
	return port
}

func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		return store.NewMemoryStore(), nil
	}
	dsn := cfg.Store.DSN
	if dsn == "" {
		dsn = cfg.Store.Addr()
	}
	return store.NewRedisStore(dsn)
}

func newProviderCandidate(name string, cfg *config.Config) *provider.Candidate {
	var p provider.Provider
	switch name {
	case "openai":
		if cfg.Providers.OpenAIAPIKey == "" {
			return nil
		}
		p = provider.NewOpenAIProvider(cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIModel)
	case "gemini":
		if cfg.Providers.GeminiAPIKey == "" {
			return nil
		}
		p = provider.NewGeminiProvider(cfg.Providers.GeminiAPIKey, cfg.Providers.GeminiModel)
	default:
		return nil
	}
	return &provider.Candidate{Provider: p, Breaker: resilience.New(resilience.DefaultConfig())}
}

func budgetAlertBody(level model.AlertLevel, status model.BudgetStatus) string {
	return fmt.Sprintf("Alert level: %s (daily spent: %d cents of %d)", level, status.DailySpentCents, status.DailyLimitCents)
}
