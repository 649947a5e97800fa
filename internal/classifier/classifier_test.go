package classifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortex-emotion/internal/llm"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

type stubProvider struct {
	reply   string
	err     error
	block   bool
	panics  bool
	calls   atomic.Int32
	lastReq *llm.ChatRequest
}

func (s *stubProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls.Add(1)
	s.lastReq = req
	if s.panics {
		panic("provider exploded")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.reply, Model: "stub"}, nil
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Available() bool { return true }

func TestAnalyzeEmptyText(t *testing.T) {
	c := New()
	a := c.Analyze("", false)

	assert.Equal(t, emotion.Helpful, a.Primary)
	assert.Equal(t, emotion.Neutral, a.Sentiment)
	assert.Empty(t, a.Secondary)
	assert.InDelta(t, 0.6, a.Confidence, 1e-9)
}

func TestAnalyzeShoutedExcitedKeywords(t *testing.T) {
	a := New().Analyze("EXCITED! THRILLED! PUMPED!", false)

	assert.Equal(t, emotion.Excited, a.Primary)
	assert.Equal(t, emotion.High, a.Intensity)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
}

func TestAnalyzeExclaimedExcitedKeywords(t *testing.T) {
	for _, text := range []string{
		"amazing! awesome! incredible!",
		"wow! amazing! thrilled!",
	} {
		a := New().Analyze(text, false)
		assert.Equal(t, emotion.Excited, a.Primary, text)
		assert.Equal(t, emotion.High, a.Intensity, text)
		assert.InDelta(t, 0.7, a.Confidence, 1e-9, text)
	}

	calm := New().Analyze("amazing awesome incredible", false)
	assert.Equal(t, emotion.Excited, calm.Primary)
	assert.Equal(t, emotion.Medium, calm.Intensity, "no exclamation, no boost")
}

func TestBucket(t *testing.T) {
	tests := []struct {
		avg  float64
		want emotion.Intensity
	}{
		{0.95, emotion.High},
		{0.6 + 0.1, emotion.High},
		{0.7, emotion.High},
		{0.69, emotion.Medium},
		{0.41, emotion.Medium},
		{0.4, emotion.Low},
		{0, emotion.Low},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucket(tt.avg), "%v", tt.avg)
	}
}

func TestAnalyzeExcitedPattern(t *testing.T) {
	a := New().Analyze("I'm so excited about this new feature!", false)

	assert.Equal(t, emotion.Excited, a.Primary)
	assert.Equal(t, emotion.High, a.Intensity)
	assert.Equal(t, emotion.Positive, a.Sentiment)
	assert.NotContains(t, a.Secondary, emotion.Excited)
}

func TestPatternPriority(t *testing.T) {
	tests := []struct {
		text string
		want emotion.Kind
	}{
		{"Whoa, really? I can't wait!", emotion.Surprised},
		{"I can't wait to try it", emotion.Excited},
		{"Don't give up, you can do it", emotion.Encouraging},
		{"How does the cache expire?", emotion.Curious},
		{"Hmm, let me think about that.", emotion.Thoughtful},
		{"No rush, take your time.", emotion.Calm},
		{"I'm happy to help with that.", emotion.Helpful},
		{"I love this idea", emotion.Enthusiastic},
		{"I'm so happy with how this turned out.", emotion.Happy},
		{"I'm sure it works", emotion.Confident},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Analyze(tt.text, false).Primary)
		})
	}
}

func TestKeywordTieFallsBackToHelpful(t *testing.T) {
	a := New().Analyze("glad and curious", false)

	assert.Equal(t, emotion.Helpful, a.Primary)
	assert.Equal(t, []emotion.Kind{emotion.Happy, emotion.Curious}, a.Secondary)
	assert.Equal(t, emotion.Medium, a.Intensity)
	assert.InDelta(t, 0.6, a.Confidence, 1e-9)
}

func TestOverlappingKeywordsAreCountedPerList(t *testing.T) {
	markers := Markers("wonderful")
	require.Len(t, markers, 2)
	assert.Equal(t, emotion.Happy, markers[0].Emotion)
	assert.Equal(t, emotion.Curious, markers[1].Emotion)
	assert.Equal(t, "wonder", markers[1].Text)

	markers = Markers("happy to help")
	counts := map[emotion.Kind]int{}
	for _, m := range markers {
		counts[m.Emotion]++
	}
	assert.Equal(t, 1, counts[emotion.Happy])
	assert.Equal(t, 2, counts[emotion.Helpful])
}

func TestMarkerBoosts(t *testing.T) {
	markers := Markers("This is really amazing")
	require.Len(t, markers, 1)
	assert.InDelta(t, 0.8, markers[0].Intensity, 1e-9, "emphasis word within two tokens")

	markers = Markers("amazing!")
	require.Len(t, markers, 1)
	assert.InDelta(t, 0.7, markers[0].Intensity, 1e-9)

	markers = Markers("AMAZING")
	require.Len(t, markers, 1)
	assert.InDelta(t, 0.75, markers[0].Intensity, 1e-9)
	assert.Equal(t, "AMAZING", markers[0].Text)

	markers = Markers("REALLY AMAZING!")
	require.Len(t, markers, 1)
	assert.InDelta(t, 1.0, markers[0].Intensity, 1e-9, "clamped")
}

func TestSecondaryNeverContainsPrimary(t *testing.T) {
	c := New()
	texts := []string{
		"That's wonderful! I'm thrilled to help you explore it!",
		"I'm so happy, this is great and wonderful and amazing",
		"Let me explain how this works, step by step, no rush.",
		"Whoa, really? That is unexpected and amazing!",
	}
	for _, text := range texts {
		a := c.Analyze(text, false)
		assert.NotContains(t, a.Secondary, a.Primary, text)
		assert.LessOrEqual(t, len(a.Secondary), 2, text)
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
	}
}

func TestSentiment(t *testing.T) {
	pos := Sentiment("This is great and I love it")
	assert.Equal(t, emotion.Positive, pos.Label)
	assert.InDelta(t, 1.0, pos.Score, 1e-9)
	assert.InDelta(t, 2.0/7+0.3, pos.Confidence, 1e-9)

	neg := Sentiment("this is broken and terrible")
	assert.Equal(t, emotion.Negative, neg.Label)
	assert.InDelta(t, -1.0, neg.Score, 1e-9)

	neu := Sentiment("maybe")
	assert.Equal(t, emotion.Neutral, neu.Label)
	assert.InDelta(t, 0.95, neu.Confidence, 1e-9)

	none := Sentiment("the cat sat")
	assert.Equal(t, SentimentScore{Score: 0, Label: emotion.Neutral, Confidence: 0.5}, none)

	// "goodness" is not the token "good"
	assert.Equal(t, emotion.Neutral, Sentiment("goodness me").Label)
}

func TestAnalyzeIsCached(t *testing.T) {
	stub := &stubProvider{reply: `{"primaryEmotion":"calm","secondaryEmotions":[],"confidence":0.9,"sentiment":"neutral","intensity":"low","reasoning":"r"}`}
	c := New(WithProvider(stub))

	first := c.Analyze("hello there", true)
	second := c.Analyze("hello there", true)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load())

	c.Analyze("hello there", false)
	assert.Equal(t, int32(1), stub.calls.Load(), "rule path never calls the provider")
	assert.Equal(t, 2, c.CacheLen())

	c.ClearCache()
	assert.Equal(t, 0, c.CacheLen())
	c.Analyze("hello there", true)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCacheExpiresLazily(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(10, 5*time.Minute)
	cache.now = func() time.Time { return now }

	stub := &stubProvider{reply: `{"primaryEmotion":"calm","confidence":0.9,"sentiment":"neutral","intensity":"low"}`}
	c := New(WithProvider(stub), WithCache(cache))

	c.Analyze("x", true)
	now = now.Add(4 * time.Minute)
	c.Analyze("x", true)
	assert.Equal(t, int32(1), stub.calls.Load())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, cache.Len(), "stale entries stay until looked up")
	c.Analyze("x", true)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCacheIsBounded(t *testing.T) {
	cache := NewCache(2, time.Minute)
	c := New(WithCache(cache))
	c.Analyze("a", false)
	c.Analyze("b", false)
	c.Analyze("c", false)
	assert.Equal(t, 2, cache.Len())
}

func TestCachedResultIsACopy(t *testing.T) {
	c := New()
	a := c.Analyze("glad and curious", false)
	a.Secondary[0] = emotion.Calm

	b := c.Analyze("glad and curious", false)
	assert.Equal(t, emotion.Happy, b.Secondary[0])
}

func TestAIPathValidatesEachField(t *testing.T) {
	stub := &stubProvider{reply: "Sure! Here you go: " +
		`{"primaryEmotion":"Calm","secondaryEmotions":["calm","happy","bogus","curious","thoughtful"],` +
		`"confidence":1.7,"sentiment":"Positive","intensity":"extreme","reasoning":"soothing {tone}"}` +
		" hope that helps"}
	a := New(WithProvider(stub)).Analyze("Take a breath.", true)

	assert.Equal(t, emotion.Calm, a.Primary)
	assert.Equal(t, []emotion.Kind{emotion.Happy, emotion.Curious}, a.Secondary)
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, emotion.Positive, a.Sentiment)
	assert.Equal(t, emotion.Medium, a.Intensity)
	assert.Equal(t, "soothing {tone}", a.Reasoning)

	require.NotNil(t, stub.lastReq)
	require.NotNil(t, stub.lastReq.Schema)
	assert.Equal(t, "EmotionAnalysis", stub.lastReq.Schema.Name)
	assert.Contains(t, stub.lastReq.Messages[0].Content, "Take a breath.")
}

func TestAIPathDefaults(t *testing.T) {
	stub := &stubProvider{reply: `{"primaryEmotion":"angry","confidence":"high"}`}
	a := New(WithProvider(stub)).Analyze("whatever", true)

	assert.Equal(t, emotion.Helpful, a.Primary)
	assert.Empty(t, a.Secondary)
	assert.Equal(t, 0.7, a.Confidence)
	assert.Equal(t, emotion.Neutral, a.Sentiment)
	assert.Equal(t, emotion.Medium, a.Intensity)
}

func TestAIPathAcceptsStringConfidence(t *testing.T) {
	stub := &stubProvider{reply: `{"primaryEmotion":"happy","confidence":"0.42","secondaryEmotions":"calm"}`}
	a := New(WithProvider(stub)).Analyze("whatever", true)

	assert.InDelta(t, 0.42, a.Confidence, 1e-9)
	assert.Equal(t, []emotion.Kind{emotion.Calm}, a.Secondary)
}

func TestAIPathFallsBackToRules(t *testing.T) {
	text := "I'm so excited about this new feature!"
	want := analyzeRules(text)

	tests := []struct {
		name string
		stub *stubProvider
	}{
		{"provider error", &stubProvider{err: errors.New("status 500")}},
		{"no json", &stubProvider{reply: "I think it's excited."}},
		{"broken json", &stubProvider{reply: `{"primaryEmotion": "happy",`}},
		{"malformed object", &stubProvider{reply: `{"primaryEmotion" "happy"}`}},
		{"provider panics", &stubProvider{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(WithProvider(tt.stub)).Analyze(text, true)
			assert.Equal(t, want, got)
		})
	}
}

func TestAIPathTimeout(t *testing.T) {
	stub := &stubProvider{block: true}
	c := New(WithProvider(stub), WithAITimeout(20*time.Millisecond))

	start := time.Now()
	a := c.Analyze("I'm so excited about this new feature!", true)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, emotion.Excited, a.Primary)
}

func TestUseAIWithoutProviderUsesRules(t *testing.T) {
	a := New().Analyze("EXCITED! THRILLED! PUMPED!", true)
	assert.Equal(t, emotion.Excited, a.Primary)
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"prefix {\"a\":{\"b\":2}} suffix {\"c\":3}", `{"a":{"b":2}}`, true},
		{`{"a":"}"}`, `{"a":"}"}`, true},
		{`{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{`no braces`, "", false},
		{`{"open":`, "", false},
	}
	for _, tt := range tests {
		got, ok := extractObject(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReplySchemaAndPrompt(t *testing.T) {
	required, ok := replySchema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{
		"primaryEmotion", "secondaryEmotions", "confidence", "sentiment", "intensity", "reasoning",
	}, required)
	assert.Equal(t, false, replySchema["additionalProperties"])

	for _, k := range emotion.All {
		assert.Contains(t, systemPrompt, string(k))
	}
}

func TestParseReplyLogsSubstitutions(t *testing.T) {
	a, err := parseReply(`{"primaryEmotion":"excited","confidence":0.8,"sentiment":"positive","intensity":"high"}`, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, emotion.Excited, a.Primary)
	assert.Equal(t, emotion.High, a.Intensity)
}
