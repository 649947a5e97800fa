package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/normanking/cortex-emotion/internal/classifier"
	"github.com/normanking/cortex-emotion/internal/ssml"
	"github.com/normanking/cortex-emotion/pkg/emotion"
	"github.com/normanking/cortex-emotion/pkg/voice"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ANALYZE / VOICE / SSML COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

type explanation struct {
	Analysis  emotion.Analysis          `json:"analysis"`
	Markers   []emotion.Marker          `json:"markers"`
	Sentiment classifier.SentimentScore `json:"sentiment"`
}

func analyzeCmd() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Classify the emotion of text",
		Long: `Classify the emotion of text. Text is read from stdin when no
argument is given.

Examples:
  cortex-emotion analyze "I'm so excited about this new feature!"
  cortex-emotion analyze --explain "Let me show you how it works."
  echo "Why does this happen?" | cortex-emotion analyze --ai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			e, err := openStatelessEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			a := e.Analyze(text, cfg.Classifier.UseAI)
			if !explain {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			markers, sentiment := e.Explain(text)
			if markers == nil {
				markers = []emotion.Marker{}
			}
			return writeJSON(cmd.OutOrStdout(), explanation{Analysis: a, Markers: markers, Sentiment: sentiment})
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "include the rule markers and sentiment score")
	return cmd
}

func voiceCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "voice [text]",
		Short: "Show the voice parameters for text or an emotion",
		Long: `Show the synthesizer parameters for the emotion of text, or for a
named emotion with --emotion.

Examples:
  cortex-emotion voice "That's wonderful news!"
  cortex-emotion voice --emotion thoughtful`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				k, err := emotion.ParseKind(kind)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), voice.ForEmotion(k))
			}

			text, err := textArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			e, err := openStatelessEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			return writeJSON(cmd.OutOrStdout(), e.MapToVoiceParameters(e.Analyze(text, cfg.Classifier.UseAI)))
		},
	}

	cmd.Flags().StringVar(&kind, "emotion", "", "use this emotion instead of classifying text")
	return cmd
}

func ssmlCmd() *cobra.Command {
	var (
		kind      string
		intensity string
		voiceID   string
		mode      string
		validate  bool
		raw       bool
		disable   []string
	)

	cmd := &cobra.Command{
		Use:   "ssml [text]",
		Short: "Render text as speech markup",
		Long: `Render text as speech markup for its emotion, or for a named emotion
with --emotion. --disable turns off prosody, breaks, emphasis or emotion
tags.

Examples:
  cortex-emotion ssml "Great job, you're almost there!"
  cortex-emotion ssml --emotion calm --intensity low "Take your time."
  cortex-emotion ssml --disable breaks,emphasis --mode speed "Hello."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			e, err := openStatelessEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(cmd.Context())

			opts := e.DefaultMarkupOptions()
			if voiceID != "" {
				opts.TargetVoice = voiceID
			}
			if mode != "" {
				opts.Mode = ssml.Mode(mode)
			}
			if raw {
				opts.PlainText = false
			}
			for _, d := range disable {
				switch d {
				case "prosody":
					opts.Prosody = false
				case "breaks":
					opts.Breaks = false
				case "emphasis":
					opts.Emphasis = false
				case "emotion-tags", "emotion":
					opts.EmotionTags = false
				default:
					return fmt.Errorf("unknown markup feature %q", d)
				}
			}

			var a emotion.Analysis
			if kind != "" {
				k, err := emotion.ParseKind(kind)
				if err != nil {
					return err
				}
				a = emotion.Analysis{Primary: k, Secondary: []emotion.Kind{}, Confidence: 1, Sentiment: emotion.Neutral, Intensity: emotion.Medium}
			} else {
				a = e.Analyze(text, cfg.Classifier.UseAI)
			}
			if intensity != "" {
				a.Intensity = emotion.Intensity(intensity)
				if !a.Intensity.Valid() {
					return fmt.Errorf("unknown intensity %q", intensity)
				}
			}

			markup := e.GenerateSSML(text, a, opts)
			if validate {
				return writeJSON(cmd.OutOrStdout(), struct {
					SSML       string          `json:"ssml"`
					Validation ssml.Validation `json:"validation"`
				}{markup, ssml.Validate(markup)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), markup)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "emotion", "", "use this emotion instead of classifying text")
	cmd.Flags().StringVar(&intensity, "intensity", "", "override intensity (low, medium, high)")
	cmd.Flags().StringVar(&voiceID, "voice", "", "target voice id for rate and pause adjustment")
	cmd.Flags().StringVar(&mode, "mode", "", "performance mode (quality, speed)")
	cmd.Flags().BoolVar(&validate, "validate", false, "print the markup with its validation report as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep markdown instead of converting it to plain speech")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "markup features to turn off")
	return cmd
}
