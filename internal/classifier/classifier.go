// Package classifier detects the emotion carried by a piece of text.
//
// The rule path combines prioritized trigger patterns, weighted keyword
// markers and a lexicon sentiment score. The optional AI path asks a
// completion provider for a structured classification and falls back to the
// rule path on any failure. Results are memoized per (text, useAI).
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/llm"
	"github.com/normanking/cortex-emotion/internal/logging"
	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

// DefaultAITimeout bounds a single provider call.
const DefaultAITimeout = 10 * time.Second

// Classifier is safe for concurrent use.
type Classifier struct {
	provider  llm.Provider
	cache     *Cache
	aiTimeout time.Duration
	log       zerolog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithProvider enables the AI-assisted path.
func WithProvider(p llm.Provider) Option {
	return func(c *Classifier) { c.provider = p }
}

// WithCache replaces the default cache.
func WithCache(cache *Cache) Option {
	return func(c *Classifier) { c.cache = cache }
}

// WithAITimeout sets the provider call timeout.
func WithAITimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.aiTimeout = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// New creates a classifier. Without WithProvider, requests for the AI path
// are served by the rule path.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		aiTimeout: DefaultAITimeout,
		log:       logging.Component("classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultCacheMaxEntries, DefaultCacheTTL)
	}
	return c
}

// Analyze classifies text. It never fails: provider errors, timeouts and
// unusable replies all degrade to the rule-based result.
func (c *Classifier) Analyze(text string, useAI bool) emotion.Analysis {
	if a, ok := c.cache.Get(text, useAI); ok {
		return a
	}

	a := c.classify(text, useAI)
	c.cache.Put(text, useAI, a)
	return a.Clone()
}

func (c *Classifier) classify(text string, useAI bool) (result emotion.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("classification panicked, using default")
			metrics.Classifications.WithLabelValues("rule", "panic").Inc()
			result = emotion.Default()
		}
	}()

	if useAI && c.provider != nil {
		a, err := c.classifyWithAI(text)
		if err == nil {
			metrics.Classifications.WithLabelValues("ai", "ok").Inc()
			return a
		}
		metrics.Classifications.WithLabelValues("ai", "fallback").Inc()
		c.log.Warn().Err(err).Str("provider", c.provider.Name()).Msg("AI classification failed, using rules")
	}

	metrics.Classifications.WithLabelValues("rule", "ok").Inc()
	return analyzeRules(text)
}

// classifyWithAI runs the provider path, reporting a panic inside it as an
// error so the caller still reaches the rules.
func (c *Classifier) classifyWithAI(text string) (a emotion.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("AI classification panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.aiTimeout)
	defer cancel()
	return analyzeWithAI(ctx, c.provider, text, c.log)
}

// ClearCache drops all memoized analyses.
func (c *Classifier) ClearCache() {
	c.cache.Clear()
	c.log.Debug().Msg("classification cache cleared")
}

// CacheLen reports the number of cached entries.
func (c *Classifier) CacheLen() int {
	return c.cache.Len()
}

// Explain returns the keyword markers and sentiment behind a rule-based
// analysis of text, for diagnostics.
func (c *Classifier) Explain(text string) ([]emotion.Marker, SentimentScore) {
	return Markers(text), Sentiment(text)
}
