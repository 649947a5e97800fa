package ssml

import (
	"github.com/normanking/cortex-emotion/internal/config"
)

// Mode trades expressiveness for markup size.
type Mode string

const (
	// ModeQuality keeps all expressive markup.
	ModeQuality Mode = "quality"
	// ModeSpeed strips break and emphasis markup.
	ModeSpeed Mode = "speed"
)

// Options selects which markup the generator emits.
type Options struct {
	Prosody     bool
	Breaks      bool
	Emphasis    bool
	EmotionTags bool

	// TargetVoice rescales rates and pauses for a known voice id.
	TargetVoice string
	Mode        Mode

	// PlainText strips markdown and code fences before markup is built.
	PlainText bool
}

// DefaultOptions enables everything in quality mode.
func DefaultOptions() Options {
	return Options{
		Prosody:     true,
		Breaks:      true,
		Emphasis:    true,
		EmotionTags: true,
		Mode:        ModeQuality,
		PlainText:   true,
	}
}

// FromConfig builds Options from the ssml config section.
func FromConfig(cfg config.SSMLConfig) Options {
	opts := Options{
		Prosody:     cfg.IncludeProsody,
		Breaks:      cfg.IncludeBreaks,
		Emphasis:    cfg.IncludeEmphasis,
		EmotionTags: cfg.IncludeEmotionTags,
		TargetVoice: cfg.TargetVoice,
		Mode:        Mode(cfg.PerformanceMode),
		PlainText:   true,
	}
	if opts.Mode != ModeSpeed {
		opts.Mode = ModeQuality
	}
	return opts
}

// voiceFactors scale prosody rates and break durations per voice id. Voices
// not listed are left unchanged.
var voiceFactors = map[string]float64{
	"af_bella":   0.95,
	"af_sarah":   1.0,
	"af_sky":     1.05,
	"am_adam":    0.9,
	"am_michael": 1.1,
	"bf_emma":    0.95,
	"bm_george":  0.9,
}

// VoiceFactor returns the adjustment factor of a voice id, 1 for unknown ids.
func VoiceFactor(voiceID string) float64 {
	if f, ok := voiceFactors[voiceID]; ok {
		return f
	}
	return 1
}
