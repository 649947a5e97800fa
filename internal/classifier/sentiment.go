package classifier

import (
	"strings"

	"github.com/normanking/cortex-emotion/pkg/emotion"
)

// SentimentScore is the lexicon-based polarity of a text.
type SentimentScore struct {
	Score      float64           `json:"score"` // -1..1
	Label      emotion.Sentiment `json:"label"`
	Confidence float64           `json:"confidence"`
}

// Sentiment scores text against the positive, negative and neutral lexicons.
// Only whole tokens count.
func Sentiment(text string) SentimentScore {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return SentimentScore{Score: 0, Label: emotion.Neutral, Confidence: 0.5}
	}

	var pos, neg, neu int
	for _, tok := range tokens {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		case neutralWords[tok]:
			neu++
		}
	}
	if pos+neg+neu == 0 {
		return SentimentScore{Score: 0, Label: emotion.Neutral, Confidence: 0.5}
	}

	total := float64(len(tokens))
	score := emotion.Clamp(float64(pos-neg)/total*5, -1, 1)

	label := emotion.Neutral
	switch {
	case score > 0.05:
		label = emotion.Positive
	case score < -0.05:
		label = emotion.Negative
	}

	conf := float64(pos+neg+neu)/total + 0.3
	if conf > 0.95 {
		conf = 0.95
	}
	return SentimentScore{Score: score, Label: label, Confidence: conf}
}
