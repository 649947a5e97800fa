package llm

import (
	"fmt"
	"os"

	"github.com/normanking/cortex-emotion/internal/config"
)

// NewProvider creates the configured default provider.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	providerName := cfg.DefaultProvider
	if providerName == "" {
		providerName = "ollama"
	}

	providerCfg, exists := cfg.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider '%s' not found in configuration", providerName)
	}

	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(providerName)
	}

	return NewProviderByName(providerName, &ProviderConfig{
		Name:     providerName,
		Endpoint: providerCfg.Endpoint,
		APIKey:   apiKey,
		Model:    providerCfg.Model,
		Timeout:  providerCfg.Timeout,
	})
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"openai":           "OPENAI_API_KEY",
		"openai-responses": "OPENAI_API_KEY",
		"groq":             "GROQ_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByName creates a provider by name. Every provider is wrapped
// with MetricsProvider.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	var provider Provider

	switch name {
	case "ollama":
		provider = NewOllamaProvider(cfg)
	case "openai":
		provider = NewOpenAIProvider(cfg)
	case "groq":
		provider = NewGroqProvider(cfg)
	case "openai-responses":
		provider = NewResponsesProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return NewMetricsProvider(provider), nil
}
