package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/llm"
	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

// aiReply is the object the provider is asked to return.
type aiReply struct {
	PrimaryEmotion    string   `json:"primaryEmotion" jsonschema:"enum=happy,enum=excited,enum=curious,enum=helpful,enum=calm,enum=enthusiastic,enum=confident,enum=surprised,enum=thoughtful,enum=encouraging"`
	SecondaryEmotions []string `json:"secondaryEmotions" jsonschema:"maxItems=2"`
	Confidence        float64  `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Sentiment         string   `json:"sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
	Intensity         string   `json:"intensity" jsonschema:"enum=low,enum=medium,enum=high"`
	Reasoning         string   `json:"reasoning"`
}

const (
	defaultAIConfidence = 0.7
	aiTemperature       = 0.3
	aiMaxTokens         = 300
)

var (
	replySchema  = generateSchema[aiReply]()
	systemPrompt = buildSystemPrompt()

	errNoJSONObject = errors.New("no JSON object in reply")
)

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	requireAllProperties(m)
	return m
}

// requireAllProperties marks every property required and closes the object,
// which strict structured-output modes insist on.
func requireAllProperties(schema map[string]any) {
	if t, _ := schema["type"].(string); t != "object" {
		return
	}
	schema["additionalProperties"] = false
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	required := make([]string, 0, len(props))
	for name, p := range props {
		required = append(required, name)
		if pm, ok := p.(map[string]any); ok {
			requireAllProperties(pm)
		}
	}
	schema["required"] = required
}

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify the emotional tone of text that a voice assistant is about to speak.\n\n")
	b.WriteString("Choose the primary emotion from exactly this list:\n")
	for _, k := range emotion.All {
		fmt.Fprintf(&b, "- %s: %s\n", k, emotion.MustConfig(k).Description)
	}
	b.WriteString("\nPick up to two secondary emotions from the same list, never repeating the primary.\n")
	b.WriteString("Give confidence between 0 and 1, sentiment as positive, neutral or negative, ")
	b.WriteString("and intensity as low, medium or high. Keep reasoning to one sentence.\n\n")
	b.WriteString("Reply with a single JSON object matching this schema and nothing else:\n")
	schema, _ := json.MarshalIndent(replySchema, "", "  ")
	b.Write(schema)
	return b.String()
}

// analyzeWithAI asks the provider for a classification. Any error means the
// caller must fall back to the rule path.
func analyzeWithAI(ctx context.Context, provider llm.Provider, text string, logger zerolog.Logger) (emotion.Analysis, error) {
	resp, err := provider.Chat(ctx, &llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Classify the emotional tone of this text:\n\n%s", text)},
		},
		Temperature: aiTemperature,
		MaxTokens:   aiMaxTokens,
		Schema: &llm.JSONSchema{
			Name:        "EmotionAnalysis",
			Description: "Emotion classification of assistant speech",
			Schema:      replySchema,
		},
	})
	if err != nil {
		return emotion.Analysis{}, fmt.Errorf("completion: %w", err)
	}
	return parseReply(resp.Content, logger)
}

// parseReply decodes the first JSON object in content and validates each
// field on its own, substituting defaults for anything unusable.
func parseReply(content string, logger zerolog.Logger) (emotion.Analysis, error) {
	obj, ok := extractObject(content)
	if !ok {
		return emotion.Analysis{}, errNoJSONObject
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return emotion.Analysis{}, fmt.Errorf("decode reply: %w", err)
	}

	substitute := func(field string) {
		metrics.FieldSubstitutions.WithLabelValues(field).Inc()
		logger.Debug().Str("field", field).Msg("provider reply field replaced with default")
	}

	a := emotion.Analysis{}

	primary, err := emotion.ParseKind(rawString(raw["primaryEmotion"]))
	if err != nil {
		substitute("primaryEmotion")
		primary = emotion.Helpful
	}
	a.Primary = primary

	a.Secondary = emotion.SecondaryList(primary, parseKinds(raw["secondaryEmotions"])...)

	if c, ok := rawNumber(raw["confidence"]); ok {
		a.Confidence = emotion.Clamp01(c)
	} else {
		substitute("confidence")
		a.Confidence = defaultAIConfidence
	}

	a.Sentiment = emotion.Sentiment(strings.ToLower(rawString(raw["sentiment"])))
	if !a.Sentiment.Valid() {
		substitute("sentiment")
		a.Sentiment = emotion.Neutral
	}

	a.Intensity = emotion.Intensity(strings.ToLower(rawString(raw["intensity"])))
	if !a.Intensity.Valid() {
		substitute("intensity")
		a.Intensity = emotion.Medium
	}

	a.Reasoning = rawString(raw["reasoning"])
	return a, nil
}

// extractObject returns the first balanced {...} in s, ignoring braces inside strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func rawString(m json.RawMessage) string {
	var s string
	if len(m) == 0 || json.Unmarshal(m, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func rawNumber(m json.RawMessage) (float64, bool) {
	if len(m) == 0 {
		return 0, false
	}
	var f float64
	if json.Unmarshal(m, &f) == nil {
		return f, true
	}
	if s := rawString(m); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// parseKinds accepts a list of names or a single name and keeps the valid ones.
func parseKinds(m json.RawMessage) []emotion.Kind {
	if len(m) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(m, &names); err != nil {
		if s := rawString(m); s != "" {
			names = []string{s}
		}
	}
	out := make([]emotion.Kind, 0, len(names))
	for _, n := range names {
		if k, err := emotion.ParseKind(n); err == nil {
			out = append(out, k)
		}
	}
	return out
}
