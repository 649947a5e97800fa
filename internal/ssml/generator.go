// Package ssml renders text as emotionally expressive speech markup.
//
// Markup is built from the per-emotion presets in pkg/emotion, checked by
// Validate, repaired when the damage is bounded, and replaced by a minimal
// fallback document otherwise. Generate never fails.
package ssml

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

const prePauseMs = 150

// chargedWords get a short pause in front of them when intensity is high.
var chargedWords = map[string]bool{
	"amazing":      true,
	"incredible":   true,
	"wonderful":    true,
	"fantastic":    true,
	"unbelievable": true,
	"absolutely":   true,
	"really":       true,
	"truly":        true,
	"finally":      true,
	"wow":          true,
}

var (
	chunkPattern = regexp.MustCompile(`\s+|\S+`)
	trailingMark = regexp.MustCompile(`[.!?,;:]+$`)
	wordParts    = regexp.MustCompile(`^([^\p{L}\p{N}']*)([\p{L}\p{N}']+)(.*)$`)

	timedTag  = regexp.MustCompile(`<(?:prosody|break)\b[^>]*>`)
	rateAttr  = regexp.MustCompile(`rate="(\d+(?:\.\d+)?)%"`)
	breakTime = regexp.MustCompile(`time="(\d+)ms"`)
	breakTag  = regexp.MustCompile(`<break\b[^>]*/>`)
	emphTag   = regexp.MustCompile(`</?emphasis\b[^>]*>`)
)

// Generator builds speech markup. It holds no per-call state.
type Generator struct {
	log zerolog.Logger
}

// New creates a generator logging through logger.
func New(logger zerolog.Logger) *Generator {
	return &Generator{log: logger}
}

// Generate renders text for the emotion in a. The result always holds exactly
// one speak root; assembly failures degrade to Fallback.
func (g *Generator) Generate(text string, a emotion.Analysis, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("markup assembly panicked, using fallback")
			metrics.SSMLOutcomes.WithLabelValues("fallback").Inc()
			out = Fallback(text, a)
		}
	}()

	markup := g.assemble(text, a, opts)
	v := Validate(markup)
	if v.Valid {
		metrics.SSMLOutcomes.WithLabelValues("ok").Inc()
		return markup
	}

	repaired := Repair(markup)
	if rv := Validate(repaired); rv.Valid {
		g.log.Debug().Strs("errors", v.Errors).Msg("markup repaired")
		metrics.SSMLOutcomes.WithLabelValues("repaired").Inc()
		return repaired
	}

	g.log.Warn().Strs("errors", v.Errors).Str("emotion", string(a.Primary)).Msg("markup invalid after repair, using fallback")
	metrics.SSMLOutcomes.WithLabelValues("fallback").Inc()
	return Fallback(text, a)
}

func (g *Generator) assemble(text string, a emotion.Analysis, opts Options) string {
	cfg := emotion.MustConfig(a.Primary)
	if opts.PlainText {
		text = PlainText(text)
	}

	content := annotate(text, a, cfg.Markup, opts)

	if opts.EmotionTags {
		intensity := a.Intensity
		if !intensity.Valid() {
			intensity = emotion.Medium
		}
		content = fmt.Sprintf(`<amazon:emotion name="%s" intensity="%s">%s</amazon:emotion>`,
			cfg.Emotion, intensity, content)
	}
	if opts.Prosody {
		m := cfg.Markup
		content = fmt.Sprintf(`<prosody rate="%s" pitch="%s" volume="%s">%s</prosody>`,
			m.Rate, m.Pitch, m.Volume, content)
	}

	markup := "<speak>" + content + "</speak>"
	markup = adjustForVoice(markup, VoiceFactor(opts.TargetVoice))
	if opts.Mode == ModeSpeed {
		markup = stripExpressive(markup)
	}
	return markup
}

// annotate escapes text and inserts pauses and emphasis word by word.
func annotate(text string, a emotion.Analysis, m emotion.MarkupPreset, opts Options) string {
	emphasis := make(map[string]bool, len(m.EmphasisWords))
	for _, w := range m.EmphasisWords {
		emphasis[w] = true
	}
	high := a.Intensity == emotion.High

	chunks := chunkPattern.FindAllString(text, -1)
	lastWord := -1
	for i := len(chunks) - 1; i >= 0; i-- {
		if strings.TrimSpace(chunks[i]) != "" {
			lastWord = i
			break
		}
	}

	var b strings.Builder
	b.Grow(len(text) * 2)
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			b.WriteString(chunk)
			continue
		}

		punct := trailingMark.FindString(chunk)
		body := chunk[:len(chunk)-len(punct)]

		prefix, core, suffix := body, "", ""
		if parts := wordParts.FindStringSubmatch(body); parts != nil {
			prefix, core, suffix = parts[1], parts[2], parts[3]
		}
		lower := strings.ToLower(core)

		if opts.Breaks && high && chargedWords[lower] && b.Len() > 0 {
			fmt.Fprintf(&b, `<break time="%dms"/>`, prePauseMs)
		}

		b.WriteString(Escape(prefix))
		if opts.Emphasis && m.Emphasis != "" && emphasis[lower] {
			fmt.Fprintf(&b, `<emphasis level="%s">%s</emphasis>`, m.Emphasis, Escape(core))
		} else {
			b.WriteString(Escape(core))
		}
		b.WriteString(Escape(suffix))
		b.WriteString(Escape(punct))

		if opts.Breaks && punct != "" && i != lastWord {
			b.WriteString(breakFor(punct[len(punct)-1], m))
		}
	}
	return b.String()
}

// breakFor renders the pause after a punctuation mark.
func breakFor(mark byte, m emotion.MarkupPreset) string {
	ms := m.Pauses.For(mark)
	switch mark {
	case '.', '!', '?':
		if m.BreakStrength != "" {
			return fmt.Sprintf(`<break time="%dms" strength="%s"/>`, ms, m.BreakStrength)
		}
	}
	return fmt.Sprintf(`<break time="%dms"/>`, ms)
}

func scaleMs(ms int, f float64) int {
	return int(math.Round(float64(ms) * f))
}

// adjustForVoice rescales the rate of every prosody tag and the duration of
// every break tag. Text is escaped, so only generated tags match.
func adjustForVoice(markup string, factor float64) string {
	if factor == 1 {
		return markup
	}
	return timedTag.ReplaceAllStringFunc(markup, func(tag string) string {
		tag = rateAttr.ReplaceAllStringFunc(tag, func(s string) string {
			v, err := strconv.ParseFloat(rateAttr.FindStringSubmatch(s)[1], 64)
			if err != nil {
				return s
			}
			return fmt.Sprintf(`rate="%d%%"`, int(math.Round(v*factor)))
		})
		return breakTime.ReplaceAllStringFunc(tag, func(s string) string {
			v, err := strconv.Atoi(breakTime.FindStringSubmatch(s)[1])
			if err != nil {
				return s
			}
			return fmt.Sprintf(`time="%dms"`, scaleMs(v, factor))
		})
	})
}

func stripExpressive(markup string) string {
	markup = breakTag.ReplaceAllString(markup, "")
	return emphTag.ReplaceAllString(markup, "")
}

// Fallback is the minimal document used when generated markup cannot be
// trusted: escaped text inside the primary emotion's rate and pitch.
func Fallback(text string, a emotion.Analysis) string {
	m := emotion.MustConfig(a.Primary).Markup
	return fmt.Sprintf(`<speak><prosody rate="%s" pitch="%s">%s</prosody></speak>`, m.Rate, m.Pitch, Escape(text))
}
