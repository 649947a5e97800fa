package classifier

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/normanking/cortex-emotion/pkg/emotion"
)

const (
	keywordBase     = 0.6
	patternBase     = 0.75
	emphasisBoost   = 0.2
	exclamationBump = 0.1
	capsBoost       = 0.15
)

// scanContext holds per-call derived views of the input text.
type scanContext struct {
	text        string
	lower       string
	tokens      [][]int
	exclamation bool
	sameLength  bool
}

func newScanContext(text string) *scanContext {
	lower := strings.ToLower(text)
	return &scanContext{
		text:        text,
		lower:       lower,
		tokens:      tokenPattern.FindAllStringIndex(lower, -1),
		exclamation: strings.Contains(text, "!"),
		sameLength:  len(lower) == len(text),
	}
}

// intensity scores a match spanning [start,end) of the lower-cased text.
func (s *scanContext) intensity(base float64, start, end int) float64 {
	v := base
	if s.nearEmphasis(start, end) {
		v += emphasisBoost
	}
	if s.exclamation {
		v += exclamationBump
	}
	if s.sameLength && isShouted(s.text[start:end]) {
		v += capsBoost
	}
	return emotion.Clamp01(v)
}

// nearEmphasis reports whether an emphasis word sits within two tokens
// before or after the match.
func (s *scanContext) nearEmphasis(start, end int) bool {
	first, last := -1, -1
	for i, tok := range s.tokens {
		if tok[1] > start && tok[0] < end {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return false
	}
	check := func(i int) bool {
		if i < 0 || i >= len(s.tokens) {
			return false
		}
		tok := s.tokens[i]
		return emphasisWords[s.lower[tok[0]:tok[1]]]
	}
	return check(first-1) || check(first-2) || check(last+1) || check(last+2)
}

func isShouted(s string) bool {
	if len(s) <= 2 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// Markers returns every keyword marker found in text, grouped by emotion in
// declaration order and by position within each emotion.
func Markers(text string) []emotion.Marker {
	return newScanContext(text).keywordMarkers()
}

func (s *scanContext) keywordMarkers() []emotion.Marker {
	var out []emotion.Marker
	for _, k := range emotion.All {
		var found []emotion.Marker
		for _, kw := range keywords[k] {
			for from := 0; from < len(s.lower); {
				idx := strings.Index(s.lower[from:], kw)
				if idx < 0 {
					break
				}
				start := from + idx
				end := start + len(kw)
				found = append(found, emotion.Marker{
					Start:     start,
					End:       end,
					Text:      s.original(start, end),
					Emotion:   k,
					Intensity: s.intensity(keywordBase, start, end),
					Reason:    fmt.Sprintf("keyword %q", kw),
				})
				from = start + 1
			}
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })
		out = append(out, found...)
	}
	return out
}

func (s *scanContext) original(start, end int) string {
	if s.sameLength {
		return s.text[start:end]
	}
	return s.lower[start:end]
}

// firstPattern runs the trigger table in priority order against the raw text.
func (s *scanContext) firstPattern() (emotion.Marker, bool) {
	for _, set := range triggers {
		for _, re := range set.patterns {
			loc := re.FindStringIndex(s.text)
			if loc == nil {
				continue
			}
			start, end := loc[0], loc[1]
			m := emotion.Marker{
				Start:   start,
				End:     end,
				Text:    s.text[start:end],
				Emotion: set.emotion,
				Reason:  fmt.Sprintf("pattern %s", re.String()),
			}
			if s.sameLength {
				m.Intensity = s.intensity(patternBase, start, end)
			} else {
				m.Intensity = emotion.Clamp01(patternBase)
			}
			return m, true
		}
	}
	return emotion.Marker{}, false
}

// analyzeRules is the deterministic classification path.
func analyzeRules(text string) emotion.Analysis {
	s := newScanContext(text)
	markers := s.keywordMarkers()
	sent := Sentiment(text)

	scores := make(map[emotion.Kind]float64, len(emotion.All))
	for _, m := range markers {
		scores[m.Emotion] += m.Intensity
	}

	if pm, ok := s.firstPattern(); ok {
		used := []emotion.Marker{pm}
		for _, m := range markers {
			if m.Emotion == pm.Emotion {
				used = append(used, m)
			}
		}
		avg := average(used)
		return emotion.Analysis{
			Primary:    pm.Emotion,
			Secondary:  rankSecondary(scores, pm.Emotion),
			Confidence: emotion.Clamp(avg, 0.4, 0.95),
			Sentiment:  sent.Label,
			Intensity:  bucket(avg),
			Reasoning:  fmt.Sprintf("matched %s trigger %q", pm.Emotion, pm.Text),
		}
	}

	if len(markers) == 0 {
		a := emotion.Default()
		a.Sentiment = sent.Label
		return a
	}

	primary := topEmotion(scores)
	avg := average(markers)
	return emotion.Analysis{
		Primary:    primary,
		Secondary:  rankSecondary(scores, primary),
		Confidence: emotion.Clamp(avg, 0.4, 0.95),
		Sentiment:  sent.Label,
		Intensity:  bucket(avg),
		Reasoning:  fmt.Sprintf("%d keyword markers, strongest %s", len(markers), primary),
	}
}

// topEmotion picks the highest score. A shared maximum falls back to helpful.
func topEmotion(scores map[emotion.Kind]float64) emotion.Kind {
	best := emotion.Helpful
	bestScore := 0.0
	tied := false
	for _, k := range emotion.All {
		v := scores[k]
		switch {
		case v > bestScore:
			best, bestScore, tied = k, v, false
		case v == bestScore && v > 0:
			tied = true
		}
	}
	if tied || bestScore == 0 {
		return emotion.Helpful
	}
	return best
}

func rankSecondary(scores map[emotion.Kind]float64, primary emotion.Kind) []emotion.Kind {
	ranked := make([]emotion.Kind, 0, len(emotion.All))
	for _, k := range emotion.All {
		if k != primary && scores[k] > 0 {
			ranked = append(ranked, k)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })
	return emotion.SecondaryList(primary, ranked...)
}

func average(markers []emotion.Marker) float64 {
	if len(markers) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range markers {
		sum += m.Intensity
	}
	return sum / float64(len(markers))
}

// scoreEpsilon absorbs float error in summed boosts (0.6+0.1 is not exactly 0.7).
const scoreEpsilon = 1e-9

// bucket maps an average marker intensity to a level. The high boundary is
// inclusive: a plain keyword in an exclaimed sentence scores 0.7 and is high.
func bucket(avg float64) emotion.Intensity {
	switch {
	case avg >= 0.7-scoreEpsilon:
		return emotion.High
	case avg > 0.4:
		return emotion.Medium
	default:
		return emotion.Low
	}
}
