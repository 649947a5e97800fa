package classifier

import (
	"regexp"

	"github.com/normanking/cortex-emotion/pkg/emotion"
)

// keywords are matched as lower-case substrings. A keyword nested in a longer
// one ("wonder" in "wonderful") produces a marker for each list it appears in.
var keywords = map[emotion.Kind][]string{
	emotion.Happy: {
		"happy", "glad", "great", "wonderful", "delighted",
		"joy", "pleased", "lovely", "fantastic", "smile",
	},
	emotion.Excited: {
		"excited", "thrilled", "can't wait", "amazing", "wow",
		"awesome", "pumped", "incredible", "exciting", "stoked",
	},
	emotion.Curious: {
		"curious", "wonder", "interesting", "how does", "why",
		"what if", "tell me", "explore", "learn", "question",
	},
	emotion.Helpful: {
		"help", "assist", "support", "guide", "show you",
		"let me", "here's", "step", "explain", "happy to help",
	},
	emotion.Calm: {
		"calm", "relax", "peaceful", "gentle", "easy",
		"breathe", "steady", "quiet", "no rush", "take your time",
	},
	emotion.Enthusiastic: {
		"love", "passionate", "brilliant", "absolutely", "let's go",
		"excellent", "superb", "eager", "keen", "enthusiastic",
	},
	emotion.Confident: {
		"definitely", "certainly", "sure", "confident", "of course",
		"guaranteed", "without doubt", "clearly", "know", "precisely",
	},
	emotion.Surprised: {
		"surprised", "unexpected", "whoa", "no way", "shocking",
		"didn't expect", "oh my", "suddenly", "astonishing", "really?",
	},
	emotion.Thoughtful: {
		"think", "consider", "perhaps", "maybe", "reflect",
		"ponder", "understand", "hmm", "perspective", "thoughtful",
	},
	emotion.Encouraging: {
		"you can", "keep going", "don't give up", "great job", "well done",
		"proud", "believe in", "you've got this", "progress", "almost there",
	},
}

type triggerSet struct {
	emotion  emotion.Kind
	patterns []*regexp.Regexp
}

// triggers are evaluated in slice order; the first match decides the primary emotion.
var triggers = []triggerSet{
	{emotion.Surprised, compile(
		`(?i)\b(whoa|wow),?\s+(really|seriously)\b`,
		`(?i)\bi (didn'?t|did not) (expect|see that coming)\b`,
		`(?i)\bno way\b`,
	)},
	{emotion.Excited, compile(
		`(?i)\b(so|super|really|very)\s+(excited|thrilled|pumped|stoked)\b`,
		`(?i)\bcan'?t wait\b`,
		`!{2,}`,
	)},
	{emotion.Encouraging, compile(
		`(?i)\byou('ve| have) got this\b`,
		`(?i)\bkeep (it up|going)\b`,
		`(?i)\bdon'?t give up\b`,
	)},
	{emotion.Curious, compile(
		`(?i)\b(i'?m|i am) (so |really )?(curious|wondering)\b`,
		`(?i)^\s*(how|why|what|where|when)\b[^.!]*\?`,
	)},
	{emotion.Confident, compile(
		`(?i)\b(absolutely|definitely|certainly) (can|will|works?)\b`,
		`(?i)\bi('m| am) (sure|certain|confident)\b`,
	)},
	{emotion.Thoughtful, compile(
		`(?i)\blet me think\b`,
		`(?i)\b(on reflection|thinking about it|that'?s a good question)\b`,
	)},
	{emotion.Calm, compile(
		`(?i)\btake (a|your) (deep )?breath\b`,
		`(?i)\b(no rush|take your time)\b`,
	)},
	{emotion.Helpful, compile(
		`(?i)\b(happy|glad) to help\b`,
		`(?i)\bhere'?s how\b`,
		`(?i)\blet me (show|help|explain)\b`,
	)},
	{emotion.Enthusiastic, compile(
		`(?i)\bi (absolutely |really )?love (this|that|it)\b`,
		`(?i)\blet'?s (go|do (this|it))\b`,
	)},
	{emotion.Happy, compile(
		`(?i)\b(i'?m|i am) (so |really )?(happy|glad|delighted)\b`,
	)},
}

// emphasisWords boost a marker when found within two tokens of it.
var emphasisWords = map[string]bool{
	"very":       true,
	"really":     true,
	"extremely":  true,
	"super":      true,
	"absolutely": true,
	"completely": true,
}

var positiveWords = toSet(
	"good", "great", "excellent", "wonderful", "amazing", "awesome", "happy",
	"glad", "love", "like", "excited", "thrilled", "fantastic", "perfect",
	"thanks", "thank", "appreciate", "brilliant", "nice", "enjoy",
	"delighted", "pleased", "beautiful", "helpful", "best",
)

var negativeWords = toSet(
	"bad", "terrible", "awful", "hate", "sad", "angry", "frustrated",
	"annoying", "annoyed", "worried", "confused", "stuck", "broken",
	"problem", "issue", "wrong", "fail", "failed", "difficult", "hard",
	"upset", "disappointed", "poor", "worst", "error",
)

var neutralWords = toSet(
	"okay", "ok", "fine", "maybe", "perhaps", "think", "consider",
	"wonder", "possibly", "average",
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
