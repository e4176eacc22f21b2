package effector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modsentinel/automod/infrastructure/httputil"
)

const maxActionsResponseBytes = 1 << 16

// HTTPActions drives host-platform actions over a webhook callback, the
// same pattern as cascade.HTTPClassifier and notify.HTTPSink: every action
// is POSTed to the one configured endpoint as a small JSON envelope whose
// "action" field names it.
type HTTPActions struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPActions returns Actions backed by endpoint.
func NewHTTPActions(endpoint string) *HTTPActions {
	return &HTTPActions{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: httputil.DefaultTransportWithMinTLS12(),
		},
	}
}

type actionRequest struct {
	Action    string `json:"action"`
	ContentID string `json:"contentId"`
	Reason    string `json:"reason,omitempty"`
	Body      string `json:"body,omitempty"`
	Sticky    bool   `json:"sticky,omitempty"`
}

func (h *HTTPActions) do(ctx context.Context, req actionRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create action request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute action request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = httputil.ReadAllWithLimit(resp.Body, maxActionsResponseBytes)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("action %s returned %d", req.Action, resp.StatusCode)
	}
	return nil
}

// ReportToModqueue reports contentID to the subreddit's modqueue.
func (h *HTTPActions) ReportToModqueue(ctx context.Context, contentID, reason string) error {
	return h.do(ctx, actionRequest{Action: "report", ContentID: contentID, Reason: reason})
}

// Remove removes contentID.
func (h *HTTPActions) Remove(ctx context.Context, contentID, reason string) error {
	return h.do(ctx, actionRequest{Action: "remove", ContentID: contentID, Reason: reason})
}

// Reply posts body as a reply to contentID, optionally sticky.
func (h *HTTPActions) Reply(ctx context.Context, contentID, body string, sticky bool) error {
	return h.do(ctx, actionRequest{Action: "reply", ContentID: contentID, Body: body, Sticky: sticky})
}
