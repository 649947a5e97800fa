// Package voice turns emotional analyses into synthesis-engine parameters.
package voice

import (
	"math"
	"strconv"
	"strings"

	"github.com/normanking/cortex-emotion/pkg/emotion"
)

// Parameters are the knobs handed to the speech synthesizer together with the markup.
type Parameters struct {
	Rate            string                 `json:"rate"`
	Pitch           string                 `json:"pitch"`
	Volume          string                 `json:"volume"`
	Stability       float64                `json:"stability"`
	SimilarityBoost float64                `json:"similarityBoost"`
	Emphasis        *emotion.EmphasisLevel `json:"emphasis,omitempty"`
	PauseBefore     string                 `json:"pauseBefore,omitempty"`
	PauseAfter      string                 `json:"pauseAfter,omitempty"`
}

// Blend ratios picked by Map from the analysis confidence.
const (
	HighConfidenceRatio = 0.8
	LowConfidenceRatio  = 0.6
)

// FromPreset copies a preset into a fresh Parameters value.
func FromPreset(p emotion.VoicePreset) Parameters {
	out := Parameters{
		Rate:            p.Rate,
		Pitch:           p.Pitch,
		Volume:          p.Volume,
		Stability:       p.Stability,
		SimilarityBoost: p.SimilarityBoost,
		PauseBefore:     p.PauseBefore,
		PauseAfter:      p.PauseAfter,
	}
	if p.Emphasis != "" {
		e := p.Emphasis
		out.Emphasis = &e
	}
	return out
}

// ForEmotion returns the unblended preset parameters of k.
func ForEmotion(k emotion.Kind) Parameters {
	return FromPreset(emotion.MustConfig(k).Voice)
}

// Map converts an analysis into voice parameters. A single emotion uses its
// preset as-is; with secondaries the primary preset is blended with the first
// secondary, weighted by confidence.
func Map(a emotion.Analysis) Parameters {
	primary := ForEmotion(a.Primary)
	if len(a.Secondary) == 0 {
		return primary
	}

	ratio := LowConfidenceRatio
	if a.Confidence > 0.8 {
		ratio = HighConfidenceRatio
	}
	return Blend(primary, ForEmotion(a.Secondary[0]), ratio)
}

// Blend mixes two parameter sets: value = a*ratio + b*(1-ratio).
// Emphasis and pauses follow a. At ratio 1 the result is a, at ratio 0 it is b.
func Blend(a, b Parameters, ratio float64) Parameters {
	if ratio >= 1 {
		return a.clone()
	}
	if ratio <= 0 {
		return b.clone()
	}

	mix := func(x, y float64) float64 { return x*ratio + y*(1-ratio) }

	out := Parameters{
		Rate:            formatRate(mix(parseRate(a.Rate), parseRate(b.Rate))),
		Pitch:           formatSigned(mix(parseSigned(a.Pitch, "%"), parseSigned(b.Pitch, "%")), "%"),
		Volume:          formatSigned(mix(parseSigned(a.Volume, "dB"), parseSigned(b.Volume, "dB")), "dB"),
		Stability:       emotion.Clamp01(mix(a.Stability, b.Stability)),
		SimilarityBoost: emotion.Clamp01(mix(a.SimilarityBoost, b.SimilarityBoost)),
		PauseBefore:     a.PauseBefore,
		PauseAfter:      a.PauseAfter,
	}
	if a.Emphasis != nil {
		e := *a.Emphasis
		out.Emphasis = &e
	}
	return out
}

func (p Parameters) clone() Parameters {
	out := p
	if p.Emphasis != nil {
		e := *p.Emphasis
		out.Emphasis = &e
	}
	return out
}

func parseRate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 1.0
	}
	return v
}

// parseSigned reads "+10%", "-2dB" or "medium" (zero).
func parseSigned(s, unit string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "medium") {
		return 0
	}
	s = strings.TrimSuffix(s, unit)
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatRate(v float64) string {
	return strconv.FormatFloat(round(v, 2), 'f', -1, 64)
}

func formatSigned(v float64, unit string) string {
	v = round(v, 1)
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v >= 0 {
		s = "+" + strings.TrimPrefix(s, "-")
	}
	return s + unit
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
