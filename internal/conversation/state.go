package conversation

import (
	"time"

	"github.com/normanking/cortex-emotion/pkg/emotion"
	"github.com/normanking/cortex-emotion/pkg/voice"
)

// MaxJourney is the number of analyses kept per session.
const MaxJourney = 20

// Strategy is the policy used to pick a response emotion.
type Strategy string

const (
	// StrategyMirror matches the user's emotion.
	StrategyMirror Strategy = "mirror"
	// StrategyComplement answers with an opposite-energy emotion.
	StrategyComplement Strategy = "complement"
	// StrategyGuide steers towards encouraging, confident or helpful.
	StrategyGuide Strategy = "guide"
	// StrategyStabilize holds the session's dominant emotion.
	StrategyStabilize Strategy = "stabilize"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMirror, StrategyComplement, StrategyGuide, StrategyStabilize:
		return true
	}
	return false
}

// State is the emotional record of one conversation.
type State struct {
	SessionID          string             `json:"sessionId"`
	Journey            []emotion.Analysis `json:"emotionalJourney"`
	DominantEmotion    emotion.Kind       `json:"dominantEmotion"`
	EmotionalStability float64            `json:"emotionalStability"`
	UserEngagement     float64            `json:"userEngagement"`
	Strategy           Strategy           `json:"adaptationStrategy"`
	LastInteraction    time.Time          `json:"lastInteraction"`
	TurnCount          int                `json:"turnCount"`
	CreatedAt          time.Time          `json:"createdAt"`
}

func newState(sessionID string, now time.Time) *State {
	return &State{
		SessionID:          sessionID,
		Journey:            make([]emotion.Analysis, 0, MaxJourney),
		DominantEmotion:    emotion.Helpful,
		EmotionalStability: 1.0,
		UserEngagement:     0.5,
		Strategy:           StrategyMirror,
		LastInteraction:    now,
		CreatedAt:          now,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	out := *s
	out.Journey = make([]emotion.Analysis, len(s.Journey))
	for i, a := range s.Journey {
		out.Journey[i] = a.Clone()
	}
	return out
}

// TurnResult is everything produced for one response.
type TurnResult struct {
	SSML             string           `json:"ssml"`
	VoiceParams      voice.Parameters `json:"voiceParams"`
	Emotions         emotion.Analysis `json:"emotions"`
	ProcessingTimeMs float64          `json:"processingTimeMs"`
	Metadata         TurnMetadata     `json:"metadata"`
}

// TurnMetadata explains how the response emotion was chosen.
type TurnMetadata struct {
	TurnID          string           `json:"turnId"`
	SessionID       string           `json:"sessionId"`
	UserEmotion     emotion.Analysis `json:"userEmotion"`
	NaturalEmotion  emotion.Analysis `json:"naturalEmotion"`
	StrategyUsed    Strategy         `json:"strategyUsed"`
	NextStrategy    Strategy         `json:"nextStrategy"`
	Stability       float64          `json:"emotionalStability"`
	Engagement      float64          `json:"userEngagement"`
	DominantEmotion emotion.Kind     `json:"dominantEmotion"`
	JourneyLength   int              `json:"journeyLength"`
	TurnCount       int              `json:"turnCount"`
}

// Stats aggregates over all live sessions.
type Stats struct {
	ActiveConversations int                  `json:"activeConversations"`
	AverageStability    float64              `json:"averageStability"`
	AverageEngagement   float64              `json:"averageEngagement"`
	EmotionDistribution map[emotion.Kind]int `json:"emotionDistribution"`
}
