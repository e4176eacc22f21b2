package cascade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modsentinel/automod/infrastructure/httputil"
	"github.com/modsentinel/automod/infrastructure/ratelimit"
)

// sexualMinorsCategory is always forced to REMOVE regardless of the
// configured Layer 2 action (§4.1 step 4).
const sexualMinorsCategory = "sexual/minors"

const maxClassifierResponseBytes = 1 << 20

// ModerationClassifier is the external moderation-classifier abstraction
// Layer 2 calls through. The host-configured endpoint is injected at
// construction time; installation settings carry only the API key,
// category list, and threshold.
type ModerationClassifier interface {
	Classify(ctx context.Context, text, apiKey string, categories []string) (map[string]float64, error)
}

// classifierDoer is satisfied by both *http.Client and a rate-limited
// client wrapper.
type classifierDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClassifier calls a moderation-classification HTTP endpoint that
// accepts {"input": text} and returns {"categoryScores": {category: score}}.
type HTTPClassifier struct {
	endpoint   string
	httpClient classifierDoer
}

// NewHTTPClassifier returns a ModerationClassifier backed by endpoint. Every
// subreddit's Layer 2 calls share this one process-level endpoint, so calls
// are rate-limited here rather than per-installation.
func NewHTTPClassifier(endpoint string) *HTTPClassifier {
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: httputil.DefaultTransportWithMinTLS12(),
	}
	return &HTTPClassifier{
		endpoint:   endpoint,
		httpClient: ratelimit.NewRateLimitedClient(client, ratelimit.DefaultConfig()),
	}
}

type classifierRequest struct {
	Input string `json:"input"`
}

type classifierResponse struct {
	CategoryScores map[string]float64 `json:"categoryScores"`
}

// Classify sends text to the configured endpoint and returns the scores
// for the requested categories.
func (c *HTTPClassifier) Classify(ctx context.Context, text, apiKey string, categories []string) (map[string]float64, error) {
	payload, err := json.Marshal(classifierRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("moderation classifier error %d", resp.StatusCode)
	}

	body, err := httputil.ReadAllStrict(resp.Body, maxClassifierResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed classifierResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	scores := make(map[string]float64, len(categories))
	for _, cat := range categories {
		scores[cat] = parsed.CategoryScores[cat]
	}
	return scores, nil
}
