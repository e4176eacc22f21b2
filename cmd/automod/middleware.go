package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/modsentinel/automod/infrastructure/httputil"
	"github.com/modsentinel/automod/infrastructure/logging"
	"github.com/modsentinel/automod/infrastructure/metrics"
)

const maxWebhookBodyBytes = 1 << 20

// loggingMiddleware logs each request with a trace ID, the same shape as
// the gateway's request logging: generate or propagate X-Trace-ID, attach
// it to the request context, and log method/path/status/duration once the
// handler completes.
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), traceID))
		c.Header("X-Trace-ID", traceID)

		c.Next()

		logger.LogRequest(c.Request.Context(), c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// recoveryMiddleware recovers panics, logs them with a stack trace, and
// responds 500 instead of letting the connection die.
func recoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
					"panic":  fmt.Sprintf("%v", r),
					"stack":  string(debug.Stack()),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// metricsMiddleware records in-flight count and request duration/status for
// every webhook call.
func metricsMiddleware(serviceName string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncrementInFlight()
		defer m.DecrementInFlight()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		m.RecordHTTPRequest(serviceName, c.Request.Method, path, status, time.Since(start))
	}
}

// webhookSignatureMiddleware verifies the host platform's
// X-Webhook-Signature header, an HMAC-SHA256 of the raw request body keyed
// by secret, hex-encoded. An empty secret disables verification, matching
// local/dev deployments that run without a configured shared secret.
func webhookSignatureMiddleware(secret string, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, truncated, err := httputil.ReadAllWithLimit(c.Request.Body, maxWebhookBodyBytes)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if truncated {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := strings.TrimPrefix(c.GetHeader("X-Webhook-Signature"), "sha256=")
		if signature == "" || !verifyWebhookSignature([]byte(secret), body, signature) {
			logger.WithContext(c.Request.Context()).WithField("path", c.Request.URL.Path).Warn("webhook signature verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		c.Next()
	}
}

func verifyWebhookSignature(secret, body []byte, signatureHex string) bool {
	decoded, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
