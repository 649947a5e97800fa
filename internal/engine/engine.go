// Package engine is the entry point of the emotion engine. An Engine owns
// the classifier, the markup generator, the conversation tracker and the
// snapshot store, and exposes every operation the CLI and embedding
// programs use.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/classifier"
	"github.com/normanking/cortex-emotion/internal/config"
	"github.com/normanking/cortex-emotion/internal/conversation"
	"github.com/normanking/cortex-emotion/internal/llm"
	"github.com/normanking/cortex-emotion/internal/logging"
	"github.com/normanking/cortex-emotion/internal/snapshot"
	"github.com/normanking/cortex-emotion/internal/ssml"
	"github.com/normanking/cortex-emotion/pkg/emotion"
	"github.com/normanking/cortex-emotion/pkg/voice"
)

// flushTimeout bounds the final snapshot written by Close.
const flushTimeout = 5 * time.Second

// Engine is safe for concurrent use. Turns of one session must not overlap;
// see internal/worker.
type Engine struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	generator  *ssml.Generator
	tracker    *conversation.Tracker
	store      snapshot.Store
	provider   llm.Provider
	log        zerolog.Logger
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	provider    llm.Provider
	store       snapshot.Store
	logger      *zerolog.Logger
	clock       func() time.Time
	skipRestore bool
}

// WithProvider supplies the completion provider instead of building the
// configured default.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithStore supplies the snapshot store instead of opening the configured one.
func WithStore(s snapshot.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger overrides the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithClock replaces time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithoutRestore skips loading stored sessions in New.
func WithoutRestore() Option {
	return func(o *options) { o.skipRestore = true }
}

// New wires an Engine from cfg. When AI classification is enabled but the
// provider cannot be built, the engine runs rules-only and logs a warning.
// Stored sessions are restored unless WithoutRestore is given.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.Component("engine")
	if o.logger != nil {
		logger = o.logger.With().Str("component", "engine").Logger()
	}

	e := &Engine{cfg: cfg, log: logger, provider: o.provider}

	if e.provider == nil && cfg.Classifier.UseAI {
		p, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.Warn().Err(err).Str("provider", cfg.LLM.DefaultProvider).Msg("AI classification unavailable, using rules only")
		} else {
			e.provider = p
		}
	}

	copts := []classifier.Option{
		classifier.WithCache(classifier.NewCache(cfg.Classifier.CacheMaxEntries, cfg.Classifier.CacheTTL)),
		classifier.WithAITimeout(cfg.Classifier.AITimeout),
	}
	if e.provider != nil {
		copts = append(copts, classifier.WithProvider(e.provider))
	}
	if o.logger != nil {
		copts = append(copts, classifier.WithLogger(o.logger.With().Str("component", "classifier").Logger()))
	}
	e.classifier = classifier.New(copts...)

	genLog := logging.Component("ssml")
	if o.logger != nil {
		genLog = o.logger.With().Str("component", "ssml").Logger()
	}
	e.generator = ssml.New(genLog)

	topts := []conversation.Option{
		conversation.WithMarkupOptions(ssml.FromConfig(cfg.SSML)),
		conversation.WithAI(cfg.Classifier.UseAI && e.provider != nil),
	}
	if o.clock != nil {
		topts = append(topts, conversation.WithClock(o.clock))
	}
	if o.logger != nil {
		topts = append(topts, conversation.WithLogger(o.logger.With().Str("component", "conversation").Logger()))
	}
	e.tracker = conversation.NewTracker(e.classifier, e.generator, topts...)

	e.store = o.store
	if e.store == nil {
		s, err := snapshot.Open(cfg.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		e.store = s
	}

	if !o.skipRestore {
		if _, err := e.Restore(ctx); err != nil {
			e.store.Close()
			return nil, err
		}
	}
	return e, nil
}

// Analyze classifies text, optionally through the AI-assisted path.
func (e *Engine) Analyze(text string, useAI bool) emotion.Analysis {
	return e.classifier.Analyze(text, useAI)
}

// Explain returns the rule markers and sentiment behind a rule-based analysis.
func (e *Engine) Explain(text string) ([]emotion.Marker, classifier.SentimentScore) {
	return e.classifier.Explain(text)
}

// MapToVoiceParameters turns an analysis into synthesizer settings.
func (e *Engine) MapToVoiceParameters(a emotion.Analysis) voice.Parameters {
	return voice.Map(a)
}

// GenerateSSML renders text as speech markup for the emotion in a.
func (e *Engine) GenerateSSML(text string, a emotion.Analysis, opts ssml.Options) string {
	return e.generator.Generate(text, a, opts)
}

// DefaultMarkupOptions returns the markup options from the configuration.
func (e *Engine) DefaultMarkupOptions() ssml.Options {
	return ssml.FromConfig(e.cfg.SSML)
}

// ProcessConversationTurn handles one exchange of a session.
func (e *Engine) ProcessConversationTurn(sessionID, userInput, responseText string) conversation.TurnResult {
	return e.tracker.ProcessTurn(sessionID, userInput, responseText)
}

// ConversationState returns a copy of a session's state.
func (e *Engine) ConversationState(sessionID string) (conversation.State, bool) {
	return e.tracker.State(sessionID)
}

// ClearConversation forgets a session. Unknown ids are ignored.
func (e *Engine) ClearConversation(sessionID string) {
	e.tracker.Clear(sessionID)
}

// EmotionalStats aggregates over all live sessions.
func (e *Engine) EmotionalStats() conversation.Stats {
	return e.tracker.Stats()
}

// ClearClassificationCache drops every memoized analysis.
func (e *Engine) ClearClassificationCache() {
	e.classifier.ClearCache()
}

// SynthesisRequest packages a turn for the speech synthesizer.
func (e *Engine) SynthesisRequest(res conversation.TurnResult) voice.SynthesisRequest {
	return voice.NewSynthesisRequest(res.SSML, res.VoiceParams, e.cfg.SSML.TargetVoice)
}

// PruneIdle removes sessions idle for longer than the configured timeout
// and returns their ids.
func (e *Engine) PruneIdle() []string {
	return e.tracker.PruneIdle(e.cfg.Conversation.IdleTimeout)
}

// Snapshot writes every live session to the store.
func (e *Engine) Snapshot(ctx context.Context) (int, error) {
	states := e.tracker.Snapshot()
	if err := e.store.Save(ctx, states); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	e.log.Debug().Int("sessions", len(states)).Str("backend", e.store.Backend()).Msg("snapshot saved")
	return len(states), nil
}

// Restore loads stored sessions into the tracker.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	states, err := e.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	n := e.tracker.Restore(states)
	if n > 0 {
		e.log.Info().Int("sessions", n).Str("backend", e.store.Backend()).Msg("conversations restored")
	}
	return n, nil
}

// Store returns the snapshot store.
func (e *Engine) Store() snapshot.Store {
	return e.store
}

// Provider returns the completion provider, or nil when running rules-only.
func (e *Engine) Provider() llm.Provider {
	return e.provider
}

// Close flushes a final snapshot and releases the store. The flush survives
// cancellation of ctx but is bounded by its own timeout.
func (e *Engine) Close(ctx context.Context) error {
	flushCtx, cancel := logging.DetachContextWithTimeout(ctx, flushTimeout)
	defer cancel()

	_, flushErr := e.Snapshot(flushCtx)
	if flushErr != nil {
		e.log.Error().Err(flushErr).Msg("final snapshot failed")
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close snapshot store: %w", err)
	}
	return flushErr
}
