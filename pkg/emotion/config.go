package emotion

// EmphasisLevel is the SSML emphasis strength attached to a preset.
type EmphasisLevel string

const (
	EmphasisStrong   EmphasisLevel = "strong"
	EmphasisModerate EmphasisLevel = "moderate"
	EmphasisReduced  EmphasisLevel = "reduced"
)

// VoicePreset is the synthesis-engine setting for one emotion.
// Rate is a plain multiplier ("1.1"), Pitch a signed percentage or "medium",
// Volume a signed decibel value or "medium".
type VoicePreset struct {
	Rate            string
	Pitch           string
	Volume          string
	Stability       float64
	SimilarityBoost float64
	Emphasis        EmphasisLevel // empty means no emphasis
	PauseBefore     string
	PauseAfter      string
}

// Pauses holds the break duration in milliseconds after each punctuation mark.
type Pauses struct {
	Period      int
	Exclamation int
	Question    int
	Comma       int
	Semicolon   int
	Colon       int
}

// For returns the pause after mark, or 0 when mark takes no break.
func (p Pauses) For(mark byte) int {
	switch mark {
	case '.':
		return p.Period
	case '!':
		return p.Exclamation
	case '?':
		return p.Question
	case ',':
		return p.Comma
	case ';':
		return p.Semicolon
	case ':':
		return p.Colon
	}
	return 0
}

// MarkupPreset drives SSML generation for one emotion.
type MarkupPreset struct {
	Rate          string // prosody rate, numeric with a trailing %
	Pitch         string
	Volume        string
	Emphasis      EmphasisLevel
	Pauses        Pauses
	BreakStrength string // attached to sentence-ending breaks
	EmphasisWords []string
}

// Config bundles the voice and markup presets of an emotion.
type Config struct {
	Emotion     Kind
	Description string
	Voice       VoicePreset
	Markup      MarkupPreset
}

var configs = map[Kind]Config{
	Happy: {
		Emotion:     Happy,
		Description: "warm, upbeat and pleased",
		Voice:       VoicePreset{Rate: "1.1", Pitch: "+10%", Volume: "+2dB", Stability: 0.6, SimilarityBoost: 0.8, Emphasis: EmphasisModerate},
		Markup: MarkupPreset{
			Rate: "110%", Pitch: "+10%", Volume: "+2dB", Emphasis: EmphasisModerate,
			Pauses: Pauses{Period: 300, Exclamation: 250, Question: 350, Comma: 120, Semicolon: 180, Colon: 220},
			BreakStrength: "medium",
			EmphasisWords: []string{"great", "wonderful", "happy", "glad", "love"},
		},
	},
	Excited: {
		Emotion:     Excited,
		Description: "energetic and thrilled",
		Voice:       VoicePreset{Rate: "1.2", Pitch: "+15%", Volume: "+4dB", Stability: 0.4, SimilarityBoost: 0.75, Emphasis: EmphasisStrong},
		Markup: MarkupPreset{
			Rate: "120%", Pitch: "+15%", Volume: "+4dB", Emphasis: EmphasisStrong,
			Pauses: Pauses{Period: 200, Exclamation: 150, Question: 250, Comma: 80, Semicolon: 120, Colon: 160},
			BreakStrength: "weak",
			EmphasisWords: []string{"amazing", "incredible", "awesome", "wow", "thrilled", "excited"},
		},
	},
	Curious: {
		Emotion:     Curious,
		Description: "inquisitive and interested",
		Voice:       VoicePreset{Rate: "1.0", Pitch: "+5%", Volume: "medium", Stability: 0.65, SimilarityBoost: 0.8, Emphasis: EmphasisModerate},
		Markup: MarkupPreset{
			Rate: "100%", Pitch: "+5%", Volume: "medium", Emphasis: EmphasisModerate,
			Pauses: Pauses{Period: 350, Exclamation: 300, Question: 450, Comma: 140, Semicolon: 210, Colon: 260},
			BreakStrength: "medium",
			EmphasisWords: []string{"interesting", "curious", "wonder", "why", "how"},
		},
	},
	Helpful: {
		Emotion:     Helpful,
		Description: "clear, friendly and supportive",
		Voice:       VoicePreset{Rate: "1.0", Pitch: "medium", Volume: "medium", Stability: 0.75, SimilarityBoost: 0.85},
		Markup: MarkupPreset{
			Rate: "100%", Pitch: "medium", Volume: "medium", Emphasis: EmphasisModerate,
			Pauses: Pauses{Period: 300, Exclamation: 280, Question: 380, Comma: 120, Semicolon: 180, Colon: 240},
			BreakStrength: "medium",
			EmphasisWords: []string{"here", "step", "first", "next", "important"},
		},
	},
	Calm: {
		Emotion:     Calm,
		Description: "relaxed, slow and soothing",
		Voice: VoicePreset{
			Rate: "0.9", Pitch: "-5%", Volume: "-2dB", Stability: 0.85, SimilarityBoost: 0.85,
			Emphasis: EmphasisReduced, PauseBefore: "300ms", PauseAfter: "400ms",
		},
		Markup: MarkupPreset{
			Rate: "90%", Pitch: "-5%", Volume: "-2dB", Emphasis: EmphasisReduced,
			Pauses: Pauses{Period: 500, Exclamation: 450, Question: 550, Comma: 200, Semicolon: 300, Colon: 350},
			BreakStrength: "strong",
			EmphasisWords: []string{"relax", "gently", "easy", "calm"},
		},
	},
	Enthusiastic: {
		Emotion:     Enthusiastic,
		Description: "passionate and eager",
		Voice:       VoicePreset{Rate: "1.15", Pitch: "+12%", Volume: "+3dB", Stability: 0.45, SimilarityBoost: 0.75, Emphasis: EmphasisStrong},
		Markup: MarkupPreset{
			Rate: "115%", Pitch: "+12%", Volume: "+3dB", Emphasis: EmphasisStrong,
			Pauses: Pauses{Period: 250, Exclamation: 200, Question: 300, Comma: 100, Semicolon: 150, Colon: 190},
			BreakStrength: "weak",
			EmphasisWords: []string{"love", "fantastic", "brilliant", "excellent", "absolutely"},
		},
	},
	Confident: {
		Emotion:     Confident,
		Description: "assured and steady",
		Voice:       VoicePreset{Rate: "1.0", Pitch: "-2%", Volume: "+2dB", Stability: 0.8, SimilarityBoost: 0.85, Emphasis: EmphasisModerate},
		Markup: MarkupPreset{
			Rate: "100%", Pitch: "-2%", Volume: "+2dB", Emphasis: EmphasisStrong,
			Pauses: Pauses{Period: 300, Exclamation: 260, Question: 340, Comma: 120, Semicolon: 180, Colon: 210},
			BreakStrength: "medium",
			EmphasisWords: []string{"definitely", "certainly", "clearly", "exactly", "sure"},
		},
	},
	Surprised: {
		Emotion:     Surprised,
		Description: "astonished and caught off guard",
		Voice: VoicePreset{
			Rate: "1.1", Pitch: "+20%", Volume: "+3dB", Stability: 0.4, SimilarityBoost: 0.7,
			Emphasis: EmphasisStrong, PauseBefore: "150ms",
		},
		Markup: MarkupPreset{
			Rate: "110%", Pitch: "+20%", Volume: "+3dB", Emphasis: EmphasisStrong,
			Pauses: Pauses{Period: 350, Exclamation: 250, Question: 400, Comma: 140, Semicolon: 210, Colon: 280},
			BreakStrength: "medium",
			EmphasisWords: []string{"really", "whoa", "wow", "unexpected", "surprising"},
		},
	},
	Thoughtful: {
		Emotion:     Thoughtful,
		Description: "reflective and measured",
		Voice: VoicePreset{
			Rate: "0.9", Pitch: "-3%", Volume: "-1dB", Stability: 0.8, SimilarityBoost: 0.85,
			Emphasis: EmphasisReduced, PauseBefore: "400ms", PauseAfter: "300ms",
		},
		Markup: MarkupPreset{
			Rate: "90%", Pitch: "-3%", Volume: "-1dB", Emphasis: EmphasisReduced,
			Pauses: Pauses{Period: 450, Exclamation: 400, Question: 500, Comma: 180, Semicolon: 270, Colon: 320},
			BreakStrength: "strong",
			EmphasisWords: []string{"consider", "perhaps", "think", "reflect"},
		},
	},
	Encouraging: {
		Emotion:     Encouraging,
		Description: "supportive and motivating",
		Voice:       VoicePreset{Rate: "1.05", Pitch: "+8%", Volume: "+2dB", Stability: 0.65, SimilarityBoost: 0.8, Emphasis: EmphasisModerate},
		Markup: MarkupPreset{
			Rate: "105%", Pitch: "+8%", Volume: "+2dB", Emphasis: EmphasisModerate,
			Pauses: Pauses{Period: 300, Exclamation: 260, Question: 360, Comma: 120, Semicolon: 180, Colon: 230},
			BreakStrength: "medium",
			EmphasisWords: []string{"can", "progress", "proud", "keep"},
		},
	},
}

// ConfigFor returns the preset of k.
func ConfigFor(k Kind) (Config, bool) {
	c, ok := configs[k]
	return c, ok
}

// MustConfig returns the preset of k and falls back to helpful for unknown kinds.
func MustConfig(k Kind) Config {
	if c, ok := configs[k]; ok {
		return c
	}
	return configs[Helpful]
}
