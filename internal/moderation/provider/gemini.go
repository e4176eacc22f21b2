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
	geminiDefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	maxGeminiResponseBytes  = 1 << 20
	maxGeminiErrorBodyBytes = 32 << 10
)

var geminiPricing = map[string]Pricing{
	"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

// GeminiProvider speaks the Gemini generateContent wire format.
type GeminiProvider struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient httpDoer
}

// NewGeminiProvider returns a Provider backed by the Gemini API. Outbound
// calls share the same per-provider rate-limiting treatment as
// NewOpenAIProvider.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client := &http.Client{
		Timeout:   20 * time.Second,
		Transport: httputil.DefaultTransportWithMinTLS12(),
	}
	return &GeminiProvider{
		model:      model,
		apiKey:     apiKey,
		baseURL:    geminiDefaultBaseURL,
		httpClient: ratelimit.NewRateLimitedClient(client, ratelimit.DefaultConfig()),
	}
}

func (p *GeminiProvider) Type() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Analyze sends req.Prompt as a single content part and returns the raw
// JSON payload the model replied with.
func (p *GeminiProvider) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	start := time.Now()

	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	}

	raw, inTok, outTok, err := p.call(ctx, body, 20*time.Second)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	return AnalyzeResponse{
		RawJSON:      raw,
		InputTokens:  inTok,
		OutputTokens: outTok,
		LatencyMS:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *GeminiProvider) call(ctx context.Context, body geminiRequest, timeout time.Duration) (string, int, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxGeminiErrorBodyBytes)
		if readErr != nil {
			return "", 0, 0, fmt.Errorf("read error response: %w", readErr)
		}
		msg := string(respBody)
		if truncated {
			msg += "...(truncated)"
		}
		return "", 0, 0, fmt.Errorf("gemini API error %d: %s", resp.StatusCode, msg)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxGeminiResponseBytes)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, 0, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", 0, 0, fmt.Errorf("gemini response had no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text,
		parsed.UsageMetadata.PromptTokenCount,
		parsed.UsageMetadata.CandidatesTokenCount,
		nil
}

// HealthCheck sends a minimal prompt with a 5s timeout.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, _, _, err := p.call(ctx, geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: "ping"}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: 0, MaxOutputTokens: 1},
	}, healthCheckTimeout)
	return err
}

// CalculateCostUSD applies this model's per-million-token pricing.
func (p *GeminiProvider) CalculateCostUSD(inputTokens, outputTokens int) float64 {
	pricing, ok := geminiPricing[p.model]
	if !ok {
		pricing = geminiPricing["gemini-1.5-flash"]
	}
	return pricing.cost(inputTokens, outputTokens)
}
