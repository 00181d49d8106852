package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	os.Unsetenv("GENESIS_LLM_PROVIDER")
	os.Unsetenv("GENESIS_CLASSIFIER_WINDOW")
	os.Unsetenv("GENESIS_MAX_TOOL_HOPS")

	cfg := Load()
	require.Equal(t, "stub", cfg.LLMProvider)
	require.Equal(t, 10, cfg.ClassifierWindow)
	require.Equal(t, 8, cfg.MaxToolHops)
	require.True(t, cfg.ClassifierEnabled)
}

func TestRequiresProviderCredentialsForAnthropicWithoutKey(t *testing.T) {
	os.Setenv("GENESIS_LLM_PROVIDER", "anthropic")
	os.Unsetenv("GENESIS_ANTHROPIC_API_KEY")
	defer os.Unsetenv("GENESIS_LLM_PROVIDER")

	cfg := Load()
	require.True(t, cfg.RequiresProviderCredentials())
}

func TestStubProviderNeverRequiresCredentials(t *testing.T) {
	os.Setenv("GENESIS_LLM_PROVIDER", "stub")
	defer os.Unsetenv("GENESIS_LLM_PROVIDER")

	cfg := Load()
	require.False(t, cfg.RequiresProviderCredentials())
}
