package conversation

import (
	"fmt"
	"math"

	"github.com/normanking/cortex-emotion/pkg/emotion"
)

const (
	mirrorIntensityRatio = 0.7
	guideConfidenceFloor = 0.8
)

// engaging user emotions raise engagement.
var engaging = map[emotion.Kind]bool{
	emotion.Curious:      true,
	emotion.Excited:      true,
	emotion.Surprised:    true,
	emotion.Enthusiastic: true,
}

// combine picks the response emotion from the user's emotion and the
// response text's own emotion under strategy s.
func combine(s Strategy, user, natural emotion.Analysis, stability float64, dominant emotion.Kind) emotion.Analysis {
	switch s {
	case StrategyComplement:
		primary := complementOf(user.Primary)
		return emotion.Analysis{
			Primary:    primary,
			Secondary:  emotion.SecondaryList(primary, user.Primary, natural.Primary),
			Confidence: (user.Confidence + natural.Confidence) / 2,
			Sentiment:  natural.Sentiment,
			Intensity:  emotion.Medium,
			Reasoning:  fmt.Sprintf("complementing user's %s with %s", user.Primary, primary),
		}

	case StrategyGuide:
		primary := emotion.Helpful
		switch {
		case user.Sentiment == emotion.Negative:
			primary = emotion.Encouraging
		case user.Primary == emotion.Curious:
			primary = emotion.Confident
		}
		return emotion.Analysis{
			Primary:    primary,
			Secondary:  emotion.SecondaryList(primary, natural.Primary, user.Primary),
			Confidence: emotion.Clamp01(natural.Confidence*0.7 + guideConfidenceFloor*0.3),
			Sentiment:  emotion.Positive,
			Intensity:  natural.Intensity,
			Reasoning:  fmt.Sprintf("guiding towards %s", primary),
		}

	case StrategyStabilize:
		if stability > 0.7 {
			out := natural.Clone()
			out.Primary = dominant
			out.Secondary = emotion.SecondaryList(dominant, natural.Primary)
			out.Reasoning = fmt.Sprintf("holding dominant %s", dominant)
			return out
		}
		return natural.Clone()

	default:
		candidates := []emotion.Kind{natural.Primary}
		if len(user.Secondary) > 0 {
			candidates = append(candidates, user.Secondary[0])
		}
		return emotion.Analysis{
			Primary:    user.Primary,
			Secondary:  emotion.SecondaryList(user.Primary, candidates...),
			Confidence: math.Min(user.Confidence, natural.Confidence),
			Sentiment:  user.Sentiment,
			Intensity:  blendIntensity(user.Intensity, natural.Intensity, mirrorIntensityRatio),
			Reasoning:  fmt.Sprintf("mirroring user's %s", user.Primary),
		}
	}
}

// blendIntensity mixes two buckets on the low=1..high=3 scale.
func blendIntensity(a, b emotion.Intensity, ratio float64) emotion.Intensity {
	v := float64(a.Ordinal())*ratio + float64(b.Ordinal())*(1-ratio)
	return emotion.IntensityFromOrdinal(int(math.Round(v)))
}

// nextStrategy is evaluated after every turn; the first matching rule wins.
func nextStrategy(engagement, stability float64, dominant emotion.Kind) Strategy {
	switch {
	case engagement > 0.7 && stability > 0.7:
		return StrategyMirror
	case engagement < 0.4:
		return StrategyGuide
	case stability < 0.4:
		return StrategyStabilize
	case dominant == emotion.Thoughtful || dominant == emotion.Calm:
		return StrategyComplement
	default:
		return StrategyMirror
	}
}

// journeyStability averages a score per consecutive pair of primaries:
// 1 for the same emotion, 0.7 for a natural transition, 0.3 otherwise.
func journeyStability(journey []emotion.Analysis) float64 {
	if len(journey) < 2 {
		return 1.0
	}
	sum := 0.0
	for i := 1; i < len(journey); i++ {
		from, to := journey[i-1].Primary, journey[i].Primary
		switch {
		case from == to:
			sum += 1.0
		case isNatural(from, to):
			sum += 0.7
		default:
			sum += 0.3
		}
	}
	return sum / float64(len(journey)-1)
}

// userEngagement scores the latest user emotion. The result never drops
// below the 0.5 base.
func userEngagement(user emotion.Analysis, journeyLen int) float64 {
	v := 0.5
	if user.Sentiment == emotion.Positive {
		v += 0.2
	}
	if user.Intensity == emotion.High {
		v += 0.2
	}
	if engaging[user.Primary] {
		v += 0.3
	}
	if journeyLen > 10 {
		v += 0.1
	}
	if journeyLen > MaxJourney {
		v += 0.1
	}
	return emotion.Clamp01(v)
}

// dominantOf returns the most frequent primary. A shared maximum keeps prev.
func dominantOf(journey []emotion.Analysis, prev emotion.Kind) emotion.Kind {
	counts := make(map[emotion.Kind]int, len(emotion.All))
	for _, a := range journey {
		counts[a.Primary]++
	}
	best, bestCount, tied := prev, 0, false
	for _, k := range emotion.All {
		switch c := counts[k]; {
		case c > bestCount:
			best, bestCount, tied = k, c, false
		case c == bestCount && c > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return prev
	}
	return best
}
