// Package config loads Genesis's GENESIS_* environment variables into a
// typed Config, grounded on the teacher's registry/cmd/registry/main.go
// envOr/envIntOr/envDurationOr helpers.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every GENESIS_* setting a cmd/genesis launcher needs,
// documented against spec.md §6 and SPEC_FULL.md §6.
type Config struct {
	// RedisAddr backs transport.RedisTransport; empty means use the
	// in-memory transport (single process only, demos/tests).
	RedisAddr string

	// GraphRetention is the OFFLINE node grace period before the
	// Monitoring Plane garbage collects it.
	GraphRetention time.Duration

	// LLMProvider selects the llmadapter.Adapter: anthropic/openai/bedrock/stub.
	LLMProvider string
	// AnthropicAPIKey/AnthropicModel, OpenAIAPIKey/OpenAIModel configure
	// their respective adapters when LLMProvider selects them.
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	BedrockModelID  string

	// ClassifierEnabled is false when GENESIS_CLASSIFIER=off, forcing
	// allToolsFallback unconditionally.
	ClassifierEnabled bool
	// ClassifierWindow is N in spec.md §4.5.
	ClassifierWindow int

	// MaxToolHops bounds the Orchestrator's tool-call loop.
	MaxToolHops int
	// RPCIdempotentRetries is the retry budget for idempotent-tagged calls.
	RPCIdempotentRetries int

	// BoltPath, when non-empty, enables monitoring.BoltGraphStore at this path.
	BoltPath string
	// WSAddr is the bind address for the monitoring WebSocket bridge.
	WSAddr string

	// DisplayName identifies this participant in logs and the topology graph.
	DisplayName string
}

// Load reads Config from the process environment, applying the documented
// defaults for every unset variable.
func Load() Config {
	return Config{
		RedisAddr:            envOr("GENESIS_REDIS_ADDR", ""),
		GraphRetention:       envDurationOr("GENESIS_GRAPH_RETENTION", 10*time.Minute),
		LLMProvider:          envOr("GENESIS_LLM_PROVIDER", "stub"),
		AnthropicAPIKey:      os.Getenv("GENESIS_ANTHROPIC_API_KEY"),
		AnthropicModel:       envOr("GENESIS_ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		OpenAIAPIKey:         os.Getenv("GENESIS_OPENAI_API_KEY"),
		OpenAIModel:          envOr("GENESIS_OPENAI_MODEL", "gpt-4o"),
		BedrockModelID:       os.Getenv("GENESIS_BEDROCK_MODEL_ID"),
		ClassifierEnabled:    envOr("GENESIS_CLASSIFIER", "on") != "off",
		ClassifierWindow:     envIntOr("GENESIS_CLASSIFIER_WINDOW", 10),
		MaxToolHops:          envIntOr("GENESIS_MAX_TOOL_HOPS", 8),
		RPCIdempotentRetries: envIntOr("GENESIS_RPC_IDEMPOTENT_RETRIES", 2),
		BoltPath:             os.Getenv("GENESIS_BOLT_PATH"),
		WSAddr:               envOr("GENESIS_WS_ADDR", ":8089"),
		DisplayName:          os.Getenv("GENESIS_DISPLAY_NAME"),
	}
}

// RequiresProviderCredentials reports whether the selected LLM provider
// needs credentials this Config lacks, used by cmd/genesis to exit(4) per
// spec.md §6 ("provider-required env missing").
func (c Config) RequiresProviderCredentials() bool {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey == ""
	case "openai":
		return c.OpenAIAPIKey == ""
	case "bedrock":
		return c.BedrockModelID == ""
	default:
		return false
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
