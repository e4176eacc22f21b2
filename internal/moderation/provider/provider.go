// Package provider defines the LLM Provider abstraction (§6) and the
// Provider Selector (§4.8): health-cached, circuit-breaker-gated choice
// between the configured primary and fallback providers.
package provider

import (
	"context"
	"time"
)

// AnalyzeRequest is the fully-assembled prompt handed to a provider.
type AnalyzeRequest struct {
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// AnalyzeResponse is a provider's raw reply plus usage accounting.
type AnalyzeResponse struct {
	RawJSON      string
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
}

// Provider is the abstract LLM backend the dispatcher calls through.
// Concrete implementations (OpenAI, Gemini) speak provider-specific HTTP
// but are interchangeable from the core's perspective.
type Provider interface {
	Type() string
	Model() string
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
	HealthCheck(ctx context.Context) error
	CalculateCostUSD(inputTokens, outputTokens int) float64
}

// Pricing holds per-million-token input/output rates in USD, used by
// CalculateCostUSD implementations.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

func (p Pricing) cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
}

// healthCheckTimeout bounds the minimal-prompt health probe.
const healthCheckTimeout = 5 * time.Second
