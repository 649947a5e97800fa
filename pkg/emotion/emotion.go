// Package emotion defines the closed emotional vocabulary used for expressive
// speech along with the analysis result types shared by the classifier, the
// voice mapper, the conversation tracker and the SSML generator.
package emotion

import (
	"fmt"
	"strings"
)

// Kind is one of the ten emotions the engine knows how to voice.
type Kind string

const (
	Happy        Kind = "happy"
	Excited      Kind = "excited"
	Curious      Kind = "curious"
	Helpful      Kind = "helpful"
	Calm         Kind = "calm"
	Enthusiastic Kind = "enthusiastic"
	Confident    Kind = "confident"
	Surprised    Kind = "surprised"
	Thoughtful   Kind = "thoughtful"
	Encouraging  Kind = "encouraging"
)

// All lists every Kind in declaration order. Ties are broken by this order.
var All = []Kind{
	Happy,
	Excited,
	Curious,
	Helpful,
	Calm,
	Enthusiastic,
	Confident,
	Surprised,
	Thoughtful,
	Encouraging,
}

// Valid reports whether k belongs to the vocabulary.
func (k Kind) Valid() bool {
	switch k {
	case Happy, Excited, Curious, Helpful, Calm,
		Enthusiastic, Confident, Surprised, Thoughtful, Encouraging:
		return true
	default:
		return false
	}
}

// Index returns the declaration position of k, or -1 for an unknown value.
func (k Kind) Index() int {
	for i, v := range All {
		if v == k {
			return i
		}
	}
	return -1
}

// ParseKind converts free text (case and surrounding space ignored) into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown emotion %q", s)
	}
	return k, nil
}

// Sentiment is the coarse polarity of a piece of text.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Valid reports whether s is a known sentiment label.
func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Neutral, Negative:
		return true
	}
	return false
}

// Intensity buckets how strongly an emotion is expressed.
type Intensity string

const (
	Low    Intensity = "low"
	Medium Intensity = "medium"
	High   Intensity = "high"
)

// Valid reports whether i is a known intensity label.
func (i Intensity) Valid() bool {
	switch i {
	case Low, Medium, High:
		return true
	}
	return false
}

// Ordinal maps low/medium/high to 1/2/3. Unknown values count as medium.
func (i Intensity) Ordinal() int {
	switch i {
	case Low:
		return 1
	case High:
		return 3
	default:
		return 2
	}
}

// IntensityFromOrdinal is the inverse of Ordinal, clamping to the valid range.
func IntensityFromOrdinal(n int) Intensity {
	switch {
	case n <= 1:
		return Low
	case n >= 3:
		return High
	default:
		return Medium
	}
}

// Analysis is the result of classifying one piece of text.
type Analysis struct {
	Primary    Kind      `json:"primaryEmotion"`
	Secondary  []Kind    `json:"secondaryEmotions"`
	Confidence float64   `json:"confidence"`
	Sentiment  Sentiment `json:"sentiment"`
	Intensity  Intensity `json:"intensity"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// Clone returns a copy that shares no slices with a.
func (a Analysis) Clone() Analysis {
	out := a
	if a.Secondary != nil {
		out.Secondary = make([]Kind, len(a.Secondary))
		copy(out.Secondary, a.Secondary)
	}
	return out
}

// Default is the analysis used when nothing can be inferred from the text.
func Default() Analysis {
	return Analysis{
		Primary:    Helpful,
		Secondary:  []Kind{},
		Confidence: 0.6,
		Sentiment:  Neutral,
		Intensity:  Medium,
		Reasoning:  "no emotional markers found",
	}
}

// Marker is a single piece of evidence for an emotion found in the text.
type Marker struct {
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Text      string  `json:"text"`
	Emotion   Kind    `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Reason    string  `json:"reason"`
}

// SecondaryList builds a secondary list from candidates: invalid kinds,
// duplicates and the primary are dropped, and at most two are kept.
func SecondaryList(primary Kind, candidates ...Kind) []Kind {
	out := make([]Kind, 0, 2)
	for _, c := range candidates {
		if len(out) == 2 {
			break
		}
		if !c.Valid() || c == primary {
			continue
		}
		dup := false
		for _, o := range out {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// Clamp01 pins v to [0,1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp pins v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
