package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	"github.com/genesis-run/genesis/internal/config"
	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/telemetry"
	"github.com/genesis-run/genesis/internal/transport"
)

// buildTransport constructs the Transport named by cfg: a multi-process
// Redis transport when GENESIS_REDIS_ADDR is set, or the in-memory
// transport otherwise (single process, for demos/tests). A reachability
// check against Redis surfaces TransportUnavailable at join time, per
// spec.md §6's exit code 3.
func buildTransport(ctx context.Context, cfg config.Config) (transport.Transport, error) {
	if cfg.RedisAddr == "" {
		return transport.NewInMemory(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, wrapExit(3, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err))
	}
	return transport.NewRedis(client), nil
}

// buildLLM constructs the llmadapter.Adapter named by cfg, failing with
// exit code 4 when the selected provider lacks required credentials.
func buildLLM(ctx context.Context, cfg config.Config) (llmadapter.Adapter, error) {
	if cfg.RequiresProviderCredentials() {
		return nil, wrapExit(4, fmt.Errorf("provider %q requires credentials that were not supplied", cfg.LLMProvider))
	}

	llmCfg := llmadapter.Config{
		Provider:        llmadapter.Provider(cfg.LLMProvider),
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		BedrockModelID:  cfg.BedrockModelID,
	}
	if llmCfg.Provider == llmadapter.ProviderBedrock {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, wrapExit(2, fmt.Errorf("load AWS config for bedrock: %w", err))
		}
		llmCfg.BedrockRuntime = bedrockruntime.NewFromConfig(awsCfg)
	}

	adapter, err := llmadapter.New(llmCfg)
	if err != nil {
		return nil, wrapExit(2, err)
	}
	return adapter, nil
}

func newLogger() telemetry.Logger {
	return telemetry.NewClueLogger()
}
