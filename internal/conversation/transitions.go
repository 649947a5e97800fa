package conversation

import "github.com/normanking/cortex-emotion/pkg/emotion"

type transition struct {
	from, to emotion.Kind
}

// naturalTransitions are directional shifts that read as a coherent
// conversation rather than a mood swing.
var naturalTransitions = map[transition]bool{
	{emotion.Curious, emotion.Excited}:       true,
	{emotion.Curious, emotion.Thoughtful}:    true,
	{emotion.Excited, emotion.Happy}:         true,
	{emotion.Excited, emotion.Enthusiastic}:  true,
	{emotion.Happy, emotion.Excited}:         true,
	{emotion.Happy, emotion.Helpful}:         true,
	{emotion.Surprised, emotion.Curious}:     true,
	{emotion.Surprised, emotion.Excited}:     true,
	{emotion.Calm, emotion.Thoughtful}:       true,
	{emotion.Thoughtful, emotion.Calm}:       true,
	{emotion.Thoughtful, emotion.Confident}:  true,
	{emotion.Helpful, emotion.Happy}:         true,
	{emotion.Helpful, emotion.Encouraging}:   true,
	{emotion.Encouraging, emotion.Confident}: true,
	{emotion.Confident, emotion.Happy}:       true,
	{emotion.Enthusiastic, emotion.Excited}:  true,
}

func isNatural(from, to emotion.Kind) bool {
	return naturalTransitions[transition{from, to}]
}

// complements maps an emotion to its opposite-energy counterpart.
var complements = map[emotion.Kind]emotion.Kind{
	emotion.Excited:      emotion.Calm,
	emotion.Calm:         emotion.Excited,
	emotion.Curious:      emotion.Confident,
	emotion.Confident:    emotion.Curious,
	emotion.Happy:        emotion.Thoughtful,
	emotion.Thoughtful:   emotion.Happy,
	emotion.Surprised:    emotion.Helpful,
	emotion.Helpful:      emotion.Surprised,
	emotion.Encouraging:  emotion.Happy,
	emotion.Enthusiastic: emotion.Thoughtful,
}

func complementOf(k emotion.Kind) emotion.Kind {
	if c, ok := complements[k]; ok {
		return c
	}
	return emotion.Helpful
}
