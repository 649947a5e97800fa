package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/normanking/cortex-emotion/internal/metrics"
)

// MetricsProvider wraps a provider with Prometheus call, latency and token metrics.
type MetricsProvider struct {
	provider Provider
	name     string
	log      zerolog.Logger
}

// NewMetricsProvider wraps a provider with metrics collection.
func NewMetricsProvider(provider Provider) *MetricsProvider {
	return &MetricsProvider{
		provider: provider,
		name:     provider.Name(),
		log:      log.With().Str("component", "llm").Str("provider", provider.Name()).Logger(),
	}
}

// Chat implements Provider with metrics.
func (m *MetricsProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	m.log.Debug().Str("model", req.Model).Msg("provider call started")

	resp, err := m.provider.Chat(ctx, req)

	latency := time.Since(start)
	metrics.ProviderLatency.WithLabelValues(m.name).Observe(latency.Seconds())

	if err != nil {
		metrics.ProviderCalls.WithLabelValues(m.name, "error").Inc()
		m.log.Debug().Err(err).Dur("latency", latency).Msg("provider call failed")
		return nil, err
	}

	metrics.ProviderCalls.WithLabelValues(m.name, "ok").Inc()
	metrics.ProviderTokens.WithLabelValues(m.name, "input").Add(float64(resp.PromptTokens))
	metrics.ProviderTokens.WithLabelValues(m.name, "output").Add(float64(resp.CompletionTokens))
	m.log.Debug().
		Str("model", resp.Model).
		Int("tokens", resp.TokensUsed).
		Dur("latency", latency).
		Msg("provider call finished")

	return resp, nil
}

// Name returns the wrapped provider's name.
func (m *MetricsProvider) Name() string {
	return m.name
}

// Available delegates to the wrapped provider.
func (m *MetricsProvider) Available() bool {
	return m.provider.Available()
}

// Unwrap returns the wrapped provider.
func (m *MetricsProvider) Unwrap() Provider {
	return m.provider
}
