package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// ResponsesProvider talks to the OpenAI Responses API through the official SDK.
// Request schemas become strict JSON-schema output formats.
type ResponsesProvider struct {
	config *ProviderConfig
	client *openai.Client
}

// NewResponsesProvider creates a Responses API provider.
func NewResponsesProvider(cfg *ProviderConfig) *ResponsesProvider {
	cfg = withDefaults(cfg, "openai-responses")

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := openai.NewClient(opts...)

	return &ResponsesProvider{config: cfg, client: &client}
}

// Name returns the provider identifier.
func (p *ResponsesProvider) Name() string {
	return p.config.Name
}

// Available checks if the API key is configured.
func (p *ResponsesProvider) Available() bool {
	return p.config.APIKey != ""
}

// Chat sends the request as a single Responses API call.
func (p *ResponsesProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", p.config.Name, ErrNoAPIKey)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}

	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		switch msg.Role {
		case "assistant":
			role = responses.EasyInputMessageRoleAssistant
		case "system":
			role = responses.EasyInputMessageRoleSystem
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, role))
	}

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Temperature:     openai.Float(temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}
	if req.Schema != nil {
		format := &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:   req.Schema.Name,
			Schema: req.Schema.Schema,
			Strict: openai.Bool(true),
			Type:   "json_schema",
		}
		if req.Schema.Description != "" {
			format.Description = openai.String(req.Schema.Description)
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{OfJSONSchema: format},
		}
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("responses call: %w", err)
	}

	return &ChatResponse{
		Content:          resp.OutputText(),
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TokensUsed:       int(resp.Usage.TotalTokens),
		Duration:         time.Since(start),
		FinishReason:     string(resp.Status),
	}, nil
}
