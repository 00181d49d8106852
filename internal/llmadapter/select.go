package llmadapter

import "fmt"

// Provider identifies which concrete Adapter GENESIS_LLM_PROVIDER selects.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderBedrock   Provider = "bedrock"
	ProviderStub      Provider = "stub"
)

// Config carries the provider-specific settings needed to construct an
// Adapter from environment configuration (cmd/genesis wires this from
// GENESIS_LLM_* variables).
type Config struct {
	Provider Provider

	AnthropicAPIKey string
	AnthropicModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	BedrockRuntime BedrockRuntime
	BedrockModelID string
}

// New constructs the Adapter selected by cfg.Provider.
func New(cfg Config) (Adapter, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicFromAPIKey(cfg.AnthropicAPIKey, cfg.AnthropicModel, 4096)
	case ProviderOpenAI:
		return NewOpenAIFromAPIKey(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case ProviderBedrock:
		return NewBedrock(cfg.BedrockRuntime, cfg.BedrockModelID)
	case ProviderStub, "":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("llmadapter: unknown provider %q", cfg.Provider)
	}
}
