// Package notify implements the notification sink (§6): SendModmail and
// SendPM, used by the Cost Tracker's alert callback and the daily digest.
// HTTPSink returns delivery failures as errors and does not log them; the
// callers in cmd/automod log those errors and continue.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modsentinel/automod/infrastructure/httputil"
	"github.com/modsentinel/automod/infrastructure/logging"
)

const maxNotifyResponseBytes = 1 << 16

// Sink sends operator-facing notifications through the host platform.
type Sink interface {
	SendModmail(ctx context.Context, subredditID, subject, body string) error
	SendPM(ctx context.Context, username, subject, body string) error
}

// HTTPSink posts notifications to a host-platform webhook callback. The
// callback URL is process-level configuration (the same deployment
// injects it as it injects the Layer 2 classifier endpoint), not part of
// per-subreddit Settings.
type HTTPSink struct {
	endpoint   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPSink returns a Sink backed by endpoint.
func NewHTTPSink(endpoint string, logger *logging.Logger) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: httputil.DefaultTransportWithMinTLS12(),
		},
		logger: logger,
	}
}

type notifyRequest struct {
	Kind        string `json:"kind"`
	SubredditID string `json:"subredditId,omitempty"`
	Username    string `json:"username,omitempty"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// SendModmail posts a modmail notification for subredditID.
func (h *HTTPSink) SendModmail(ctx context.Context, subredditID, subject, body string) error {
	return h.send(ctx, notifyRequest{Kind: "modmail", SubredditID: subredditID, Subject: subject, Body: body})
}

// SendPM posts a direct-message notification for username.
func (h *HTTPSink) SendPM(ctx context.Context, username, subject, body string) error {
	return h.send(ctx, notifyRequest{Kind: "pm", Username: username, Subject: subject, Body: body})
}

func (h *HTTPSink) send(ctx context.Context, req notifyRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute notification request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = httputil.ReadAllWithLimit(resp.Body, maxNotifyResponseBytes)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification sink error %d", resp.StatusCode)
	}
	return nil
}

// LoggingSink logs notifications instead of sending them. Used in dry-run
// deployments and local development where no host callback is configured.
type LoggingSink struct {
	logger *logging.Logger
}

// NewLoggingSink returns a Sink that only logs.
func NewLoggingSink(logger *logging.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// SendModmail logs the modmail that would have been sent.
func (l *LoggingSink) SendModmail(_ context.Context, subredditID, subject, body string) error {
	l.logger.WithFields(map[string]interface{}{
		"subreddit_id": subredditID,
		"subject":      subject,
	}).Info("modmail (dry-run): " + body)
	return nil
}

// SendPM logs the PM that would have been sent.
func (l *LoggingSink) SendPM(_ context.Context, username, subject, body string) error {
	l.logger.WithFields(map[string]interface{}{
		"username": username,
		"subject":  subject,
	}).Info("pm (dry-run): " + body)
	return nil
}
