// Package conversation keeps responses emotionally consistent across the
// turns of a session.
//
// Each turn classifies the user's input and the response text, combines the
// two under the session's current adaptation strategy, renders the response
// as speech markup, and then updates the session's journey, stability,
// engagement and next strategy.
package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/logging"
	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/internal/ssml"
	"github.com/normanking/cortex-emotion/pkg/emotion"
	"github.com/normanking/cortex-emotion/pkg/voice"
)

// Analyzer classifies text.
type Analyzer interface {
	Analyze(text string, useAI bool) emotion.Analysis
}

// Renderer turns text and an emotion into speech markup.
type Renderer interface {
	Generate(text string, a emotion.Analysis, opts ssml.Options) string
}

// Tracker owns the session table. Turns for different sessions may run
// concurrently; turns for one session must be serialized by the caller.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*State

	analyzer Analyzer
	renderer Renderer
	markup   ssml.Options
	useAI    bool
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMarkupOptions sets the options used to render responses.
func WithMarkupOptions(opts ssml.Options) Option {
	return func(t *Tracker) { t.markup = opts }
}

// WithAI lets user input go through the AI-assisted classifier path.
// Response text is always classified by rules.
func WithAI(enabled bool) Option {
	return func(t *Tracker) { t.useAI = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// NewTracker creates an empty tracker.
func NewTracker(analyzer Analyzer, renderer Renderer, opts ...Option) *Tracker {
	t := &Tracker{
		sessions: make(map[string]*State),
		analyzer: analyzer,
		renderer: renderer,
		markup:   ssml.DefaultOptions(),
		now:      time.Now,
		log:      logging.Component("conversation"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ProcessTurn produces the response markup and voice parameters for one
// exchange and folds it into the session's state.
func (t *Tracker) ProcessTurn(sessionID, userInput, responseText string) TurnResult {
	start := time.Now()
	st := t.session(sessionID)

	t.mu.RLock()
	used, stability, dominant := st.Strategy, st.EmotionalStability, st.DominantEmotion
	t.mu.RUnlock()

	user := t.analyzer.Analyze(userInput, t.useAI)
	natural := t.analyzer.Analyze(responseText, false)
	response := combine(used, user, natural, stability, dominant)

	markup := t.renderer.Generate(responseText, response, t.markup)
	params := voice.Map(response)

	t.mu.Lock()
	st.Journey = append(st.Journey, user.Clone(), response.Clone())
	if n := len(st.Journey); n > MaxJourney {
		st.Journey = append(st.Journey[:0], st.Journey[n-MaxJourney:]...)
	}
	st.DominantEmotion = dominantOf(st.Journey, st.DominantEmotion)
	st.EmotionalStability = journeyStability(st.Journey)
	st.UserEngagement = userEngagement(user, len(st.Journey))
	st.Strategy = nextStrategy(st.UserEngagement, st.EmotionalStability, st.DominantEmotion)
	st.LastInteraction = t.now()
	st.TurnCount++
	meta := TurnMetadata{
		TurnID:          uuid.NewString(),
		SessionID:       sessionID,
		UserEmotion:     user,
		NaturalEmotion:  natural,
		StrategyUsed:    used,
		NextStrategy:    st.Strategy,
		Stability:       st.EmotionalStability,
		Engagement:      st.UserEngagement,
		DominantEmotion: st.DominantEmotion,
		JourneyLength:   len(st.Journey),
		TurnCount:       st.TurnCount,
	}
	t.mu.Unlock()

	if meta.NextStrategy != used {
		t.log.Debug().
			Str("session_id", sessionID).
			Str("from", string(used)).
			Str("to", string(meta.NextStrategy)).
			Float64("stability", meta.Stability).
			Float64("engagement", meta.Engagement).
			Msg("adaptation strategy changed")
	}

	elapsed := time.Since(start)
	metrics.TurnDuration.Observe(elapsed.Seconds())

	return TurnResult{
		SSML:             markup,
		VoiceParams:      params,
		Emotions:         response,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		Metadata:         meta,
	}
}

// session returns the state of sessionID, creating it on first use.
func (t *Tracker) session(sessionID string) *State {
	t.mu.RLock()
	st, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.sessions[sessionID]; ok {
		return st
	}
	st = newState(sessionID, t.now())
	t.sessions[sessionID] = st
	metrics.ActiveConversations.Set(float64(len(t.sessions)))
	t.log.Debug().Str("session_id", sessionID).Msg("conversation started")
	return st
}

// State returns a copy of the session's state.
func (t *Tracker) State(sessionID string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.sessions[sessionID]
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

// Clear forgets a session. Unknown ids are ignored.
func (t *Tracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; !ok {
		return
	}
	delete(t.sessions, sessionID)
	metrics.ActiveConversations.Set(float64(len(t.sessions)))
}

// Stats aggregates stability, engagement and dominant emotions over all sessions.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		ActiveConversations: len(t.sessions),
		EmotionDistribution: make(map[emotion.Kind]int),
	}
	if len(t.sessions) == 0 {
		return s
	}
	for _, st := range t.sessions {
		s.AverageStability += st.EmotionalStability
		s.AverageEngagement += st.UserEngagement
		s.EmotionDistribution[st.DominantEmotion]++
	}
	n := float64(len(t.sessions))
	s.AverageStability /= n
	s.AverageEngagement /= n
	return s
}

// PruneIdle removes sessions whose last turn is older than maxIdle and
// returns their ids in sorted order. maxIdle <= 0 disables pruning.
func (t *Tracker) PruneIdle(maxIdle time.Duration) []string {
	if maxIdle <= 0 {
		return nil
	}
	cutoff := t.now().Add(-maxIdle)

	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []string
	for id, st := range t.sessions {
		if st.LastInteraction.Before(cutoff) {
			delete(t.sessions, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		metrics.ActiveConversations.Set(float64(len(t.sessions)))
		t.log.Info().Int("removed", len(removed)).Dur("max_idle", maxIdle).Msg("pruned idle conversations")
	}
	return removed
}

// Snapshot copies every session, for persistence.
func (t *Tracker) Snapshot() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]State, 0, len(t.sessions))
	for _, st := range t.sessions {
		out = append(out, st.Clone())
	}
	return out
}

// Restore loads persisted sessions, replacing live sessions with the same id.
// Entries without an id are skipped; out-of-range fields are normalized.
func (t *Tracker) Restore(states []State) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	restored := 0
	for i := range states {
		s := states[i].Clone()
		if s.SessionID == "" {
			continue
		}
		if n := len(s.Journey); n > MaxJourney {
			s.Journey = s.Journey[n-MaxJourney:]
		}
		if !s.DominantEmotion.Valid() {
			s.DominantEmotion = emotion.Helpful
		}
		if !s.Strategy.Valid() {
			s.Strategy = StrategyMirror
		}
		s.EmotionalStability = emotion.Clamp01(s.EmotionalStability)
		s.UserEngagement = emotion.Clamp01(s.UserEngagement)
		t.sessions[s.SessionID] = &s
		restored++
	}
	metrics.ActiveConversations.Set(float64(len(t.sessions)))
	return restored
}

// Len counts live sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
