package conversation

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortex-emotion/internal/classifier"
	"github.com/normanking/cortex-emotion/internal/ssml"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

const (
	excitedUser     = "I'm so excited about this new feature!"
	excitedResponse = "That's wonderful! I'm thrilled to help you explore it!"
	happyUser       = "I'm so happy with how this turned out."
	thoughtfulUser  = "Hmm, let me think about that."
)

func newTracker(opts ...Option) *Tracker {
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewTracker(classifier.New(), ssml.New(zerolog.Nop()), opts...)
}

func TestProcessTurnExcitedUser(t *testing.T) {
	tr := newTracker()
	res := tr.ProcessTurn("s1", excitedUser, excitedResponse)

	assert.Equal(t, emotion.Excited, res.Emotions.Primary)
	assert.NotContains(t, res.Emotions.Secondary, emotion.Excited)
	assert.Equal(t, StrategyMirror, res.Metadata.StrategyUsed)
	assert.Equal(t, StrategyMirror, res.Metadata.NextStrategy)
	assert.Equal(t, emotion.Excited, res.Metadata.UserEmotion.Primary)
	assert.Equal(t, 2, res.Metadata.JourneyLength)
	assert.Equal(t, 1.0, res.Metadata.Stability)
	assert.Equal(t, 1.0, res.Metadata.Engagement)
	assert.NotEmpty(t, res.Metadata.TurnID)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, 0.0)

	assert.True(t, ssml.Validate(res.SSML).Valid, res.SSML)
	assert.Contains(t, res.SSML, `name="excited"`)
	assert.NotEmpty(t, res.VoiceParams.Rate)
	require.NotNil(t, res.VoiceParams.Emphasis)
	assert.Equal(t, emotion.EmphasisStrong, *res.VoiceParams.Emphasis)

	st, ok := tr.State("s1")
	require.True(t, ok)
	assert.Equal(t, emotion.Excited, st.DominantEmotion)
	assert.Equal(t, 1, st.TurnCount)
}

func TestJourneyIsCapped(t *testing.T) {
	tr := newTracker()
	for i := 0; i < 1000; i++ {
		tr.ProcessTurn("long", fmt.Sprintf("turn %d, how does this work?", i), "Here's how.")
	}
	st, ok := tr.State("long")
	require.True(t, ok)
	assert.Len(t, st.Journey, MaxJourney)
	assert.Equal(t, 1000, st.TurnCount)
}

func TestAlternatingUserEmotionsUnderMirror(t *testing.T) {
	tr := newTracker()
	var last TurnResult
	for i := 0; i < 10; i++ {
		user := happyUser
		if i%2 == 1 {
			user = thoughtfulUser
		}
		last = tr.ProcessTurn("alt", user, "Okay.")
		assert.Equal(t, StrategyMirror, last.Metadata.StrategyUsed, "turn %d", i)
		assert.NotEqual(t, StrategyStabilize, last.Metadata.NextStrategy, "turn %d", i)
	}

	// each mirrored turn appends two equal primaries, so half the pairs score 1.0
	assert.InDelta(t, 12.7/19, last.Metadata.Stability, 1e-9)
	assert.Equal(t, emotion.Happy, last.Metadata.DominantEmotion)
}

func TestRestoredStabilizeStrategy(t *testing.T) {
	tr := newTracker()
	tr.Restore([]State{{
		SessionID:          "s",
		DominantEmotion:    emotion.Calm,
		EmotionalStability: 0.9,
		UserEngagement:     0.5,
		Strategy:           StrategyStabilize,
	}})

	res := tr.ProcessTurn("s", "whatever", "That's wonderful!")
	assert.Equal(t, StrategyStabilize, res.Metadata.StrategyUsed)
	assert.Equal(t, emotion.Calm, res.Emotions.Primary)
	assert.Equal(t, []emotion.Kind{res.Metadata.NaturalEmotion.Primary}, res.Emotions.Secondary)

	tr.Restore([]State{{
		SessionID:          "s",
		DominantEmotion:    emotion.Calm,
		EmotionalStability: 0.5,
		Strategy:           StrategyStabilize,
	}})
	res = tr.ProcessTurn("s", "whatever", "That's wonderful!")
	assert.Equal(t, res.Metadata.NaturalEmotion, res.Emotions)
}

func TestRestoredGuideStrategy(t *testing.T) {
	tr := newTracker()
	tr.Restore([]State{{SessionID: "g", Strategy: StrategyGuide, DominantEmotion: emotion.Helpful}})

	res := tr.ProcessTurn("g", "this is broken and terrible", "Let me show you how to fix it.")
	assert.Equal(t, StrategyGuide, res.Metadata.StrategyUsed)
	assert.Equal(t, emotion.Encouraging, res.Emotions.Primary)
	assert.Equal(t, emotion.Positive, res.Emotions.Sentiment)
	assert.InDelta(t, res.Metadata.NaturalEmotion.Confidence*0.7+0.24, res.Emotions.Confidence, 1e-9)
}

func TestStateIsACopy(t *testing.T) {
	tr := newTracker()
	tr.ProcessTurn("s", excitedUser, excitedResponse)

	st, _ := tr.State("s")
	st.Journey[0].Primary = emotion.Calm
	st.Journey = st.Journey[:0]

	again, _ := tr.State("s")
	require.Len(t, again.Journey, 2)
	assert.Equal(t, emotion.Excited, again.Journey[0].Primary)

	_, ok := tr.State("missing")
	assert.False(t, ok)
}

func TestClearAndStats(t *testing.T) {
	tr := newTracker()
	assert.Equal(t, Stats{EmotionDistribution: map[emotion.Kind]int{}}, tr.Stats())

	tr.ProcessTurn("a", excitedUser, excitedResponse)
	tr.ProcessTurn("b", excitedUser, excitedResponse)
	tr.ProcessTurn("c", thoughtfulUser, "Okay.")

	stats := tr.Stats()
	assert.Equal(t, 3, stats.ActiveConversations)
	assert.Equal(t, 2, stats.EmotionDistribution[emotion.Excited])
	assert.Equal(t, 1, stats.EmotionDistribution[emotion.Thoughtful])
	assert.InDelta(t, 1.0, stats.AverageStability, 1e-9)
	assert.InDelta(t, 2.5/3, stats.AverageEngagement, 1e-9)

	tr.Clear("a")
	tr.Clear("unknown")
	assert.Equal(t, 2, tr.Stats().ActiveConversations)
	_, ok := tr.State("a")
	assert.False(t, ok)
}

func TestPruneIdle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tr := newTracker(WithClock(func() time.Time { return now }))

	tr.ProcessTurn("old", "hi", "hello")
	now = now.Add(20 * time.Minute)
	tr.ProcessTurn("fresh", "hi", "hello")
	now = now.Add(15 * time.Minute)

	assert.Empty(t, tr.PruneIdle(0))
	assert.Equal(t, []string{"old"}, tr.PruneIdle(30*time.Minute))
	assert.Equal(t, 1, tr.Len())
	_, ok := tr.State("fresh")
	assert.True(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	src := newTracker()
	src.ProcessTurn("a", excitedUser, excitedResponse)
	src.ProcessTurn("b", thoughtfulUser, "Okay.")

	snap := src.Snapshot()
	require.Len(t, snap, 2)

	dst := newTracker()
	assert.Equal(t, 2, dst.Restore(snap))
	for _, id := range []string{"a", "b"} {
		want, _ := src.State(id)
		got, ok := dst.State(id)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestRestoreNormalizes(t *testing.T) {
	journey := make([]emotion.Analysis, 30)
	for i := range journey {
		journey[i] = emotion.Default()
	}
	tr := newTracker()
	n := tr.Restore([]State{
		{SessionID: ""},
		{SessionID: "x", Journey: journey, Strategy: "panic", DominantEmotion: "angry", EmotionalStability: 3, UserEngagement: -1},
	})
	assert.Equal(t, 1, n)

	st, ok := tr.State("x")
	require.True(t, ok)
	assert.Len(t, st.Journey, MaxJourney)
	assert.Equal(t, StrategyMirror, st.Strategy)
	assert.Equal(t, emotion.Helpful, st.DominantEmotion)
	assert.Equal(t, 1.0, st.EmotionalStability)
	assert.Equal(t, 0.0, st.UserEngagement)
}

func TestConcurrentSessions(t *testing.T) {
	tr := newTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tr.ProcessTurn(id, excitedUser, excitedResponse)
				tr.Stats()
			}
		}(fmt.Sprintf("session-%d", i))
	}
	wg.Wait()

	assert.Equal(t, 8, tr.Len())
	for _, st := range tr.Snapshot() {
		assert.Equal(t, 25, st.TurnCount)
		assert.True(t, strings.HasPrefix(st.SessionID, "session-"))
	}
}
