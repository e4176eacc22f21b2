package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/infrastructure/metrics"
	"github.com/modsentinel/automod/internal/moderation/cascade"
	"github.com/modsentinel/automod/internal/moderation/effector"
	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/moderation/settingsstore"
	"github.com/modsentinel/automod/internal/moderation/trust"
)

// server bundles the components the webhook handlers call into.
type server struct {
	engine   *cascade.Engine
	effector *effector.Effector
	settings *settingsstore.Store
	trust    *trust.Manager
	logger   *logging.Logger
}

func newRouter(cfg routerConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(loggingMiddleware(cfg.logger))
	r.Use(recoveryMiddleware(cfg.logger))
	if metrics.Enabled() {
		collector := metrics.Init("automod")
		r.Use(metricsMiddleware("automod", collector))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s := &server{
		engine:   cfg.engine,
		effector: cfg.effector,
		settings: cfg.settings,
		trust:    cfg.trust,
		logger:   cfg.logger,
	}

	webhooks := r.Group("/webhooks", webhookSignatureMiddleware(cfg.webhookSecret, cfg.logger))
	webhooks.POST("/post-submit", s.handleSubmit(model.ContentTypePost))
	webhooks.POST("/comment-submit", s.handleSubmit(model.ContentTypeComment))
	webhooks.POST("/mod-action", s.handleModAction)
	webhooks.POST("/app-install", s.handleAppInstall)

	return r
}

// routerConfig collects the wiring newRouter needs; kept as one struct so
// main's construction reads top-to-bottom instead of a 6-argument call.
type routerConfig struct {
	engine        *cascade.Engine
	effector      *effector.Effector
	settings      *settingsstore.Store
	trust         *trust.Manager
	logger        *logging.Logger
	webhookSecret string
}

func (s *server) handleSubmit(contentType model.ContentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitTriggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		subject := req.Subject.toModel()
		subject.ContentType = contentType
		profile := req.Profile.toModel()
		history := req.History.toModel()

		settings, ok, err := s.settings.Get(c.Request.Context(), subject.Subreddit)
		if err != nil {
			s.logger.WithError(err).Error("failed to load settings")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "subreddit not installed"})
			return
		}

		decision := s.engine.Evaluate(c.Request.Context(), profile, history, subject, settings)

		if err := s.effector.Apply(c.Request.Context(), decision, subject, settings); err != nil {
			s.logger.WithError(err).Warn("effector apply failed")
		}

		if !settings.DryRun.Enabled {
			if _, err := s.trust.Update(c.Request.Context(), profile.UserID, subject.Subreddit, decision.Action, contentType); err != nil {
				s.logger.WithError(err).Warn("trust update failed")
			}
			if decision.Action == model.ActionApprove {
				if err := s.trust.TrackApproved(c.Request.Context(), subject.ContentID, profile.UserID, subject.Subreddit, contentType); err != nil {
					s.logger.WithError(err).Warn("trust approval tracking failed")
				}
			}
		}

		c.JSON(http.StatusOK, decision)
	}
}

func (s *server) handleModAction(c *gin.Context) {
	var req modActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "removelink", "removecomment":
		if _, _, err := s.trust.RetroactiveRemoval(c.Request.Context(), req.ContentID); err != nil {
			s.logger.WithError(err).Warn("retroactive removal reconciliation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reconcile removal"})
			return
		}
	case "approvelink", "approvecomment":
		// A moderator affirming content the cascade already approved isn't a
		// new trust signal; nothing to reconcile.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) handleAppInstall(c *gin.Context) {
	var req appInstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.settings.Put(c.Request.Context(), req.Subreddit, req.Settings); err != nil {
		s.logger.WithError(err).Error("failed to persist installation settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "installed"})
}
