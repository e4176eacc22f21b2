package provider

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

const (
	openAIDefaultBaseURL    = "https://api.openai.com/v1"
	maxOpenAIResponseBytes  = 1 << 20
	maxOpenAIErrorBodyBytes = 32 << 10
)

var openAIPricing = map[string]Pricing{
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
}

// httpDoer is satisfied by both *http.Client and a rate-limited client
// wrapper, letting Analyze/HealthCheck call out without caring which.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// OpenAIProvider speaks the OpenAI chat-completions wire format.
type OpenAIProvider struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient httpDoer
}

// NewOpenAIProvider returns a Provider backed by the OpenAI API. Outbound
// calls are bounded by a per-provider token-bucket limiter so a runaway
// cascade of Layer 3 batches can't exceed the account's request quota.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := &http.Client{
		Timeout:   20 * time.Second,
		Transport: httputil.DefaultTransportWithMinTLS12(),
	}
	return &OpenAIProvider{
		model:      model,
		apiKey:     apiKey,
		baseURL:    openAIDefaultBaseURL,
		httpClient: ratelimit.NewRateLimitedClient(client, ratelimit.DefaultConfig()),
	}
}

func (p *OpenAIProvider) Type() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat *openAIFormat       `json:"response_format,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Analyze sends req.Prompt as a single user message and returns the raw
// JSON payload the model replied with.
func (p *OpenAIProvider) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	start := time.Now()

	body := openAIChatRequest{
		Model: p.model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxOutputTokens,
		ResponseFormat: &openAIFormat{Type: "json_object"},
	}

	raw, usage, err := p.call(ctx, body)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	return AnalyzeResponse{
		RawJSON:      raw,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) call(ctx context.Context, body openAIChatRequest) (string, struct {
	PromptTokens     int
	CompletionTokens int
}, error) {
	type usage struct {
		PromptTokens     int
		CompletionTokens int
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", usage{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", usage{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", usage{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxOpenAIErrorBodyBytes)
		if readErr != nil {
			return "", usage{}, fmt.Errorf("read error response: %w", readErr)
		}
		msg := string(respBody)
		if truncated {
			msg += "...(truncated)"
		}
		return "", usage{}, fmt.Errorf("openai API error %d: %s", resp.StatusCode, msg)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxOpenAIResponseBytes)
	if err != nil {
		return "", usage{}, fmt.Errorf("read response: %w", err)
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", usage{}, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", usage{}, fmt.Errorf("openai response had no choices")
	}

	return parsed.Choices[0].Message.Content, usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// HealthCheck sends a minimal prompt with a 5s timeout.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, _, err := p.call(ctx, openAIChatRequest{
		Model:       p.model,
		Messages:    []openAIChatMessage{{Role: "user", Content: "ping"}},
		Temperature: 0,
		MaxTokens:   1,
	})
	return err
}

// CalculateCostUSD applies this model's per-million-token pricing.
func (p *OpenAIProvider) CalculateCostUSD(inputTokens, outputTokens int) float64 {
	pricing, ok := openAIPricing[p.model]
	if !ok {
		pricing = openAIPricing["gpt-4o-mini"]
	}
	return pricing.cost(inputTokens, outputTokens)
}
