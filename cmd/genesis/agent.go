package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/config"
	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/orchestrator"
	"github.com/genesis-run/genesis/internal/participant"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/tools"
)

var (
	agentName           string
	agentServiceClass   string
	agentSystemPrompt   string
	agentDefaultCapable bool
	agentSpecializations []string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run an agent participant: advertises itself as AGENT and serves delegated requests via its own Orchestrator",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentName, "name", "generalist", "agent advertisement name")
	agentCmd.Flags().StringVar(&agentServiceClass, "service-class", "", "RPC service_class to serve (defaults to --name)")
	agentCmd.Flags().StringVar(&agentSystemPrompt, "system-prompt", "You are a helpful Genesis agent.", "system prompt for the LLM adapter")
	agentCmd.Flags().BoolVar(&agentDefaultCapable, "default-capable", false, "advertise default_capable=true so this agent is a fallback delegate")
	agentCmd.Flags().StringSliceVar(&agentSpecializations, "specializations", nil, "comma-separated specialization tags")
}

type agentRequestArgs struct {
	Query string `json:"query"`
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger()

	t, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}

	serviceClass := agentServiceClass
	if serviceClass == "" {
		serviceClass = agentName
	}

	rt := participant.New(participant.Options{
		Transport:   t,
		Kind:        participant.KindAgent,
		DisplayName: cfg.DisplayName,
		Logger:      logger,
	})
	if err := rt.Start(ctx); err != nil {
		return wrapExit(3, err)
	}
	defer rt.Close(ctx)

	ads, err := advertisement.NewCache(ctx, t, nil, advertisement.WithLogger(logger))
	if err != nil {
		return wrapExit(3, err)
	}
	defer ads.Close()

	monitor := monitoring.New(t)
	orc := orchestrator.New(orchestrator.Options{
		ParticipantID:    rt.ParticipantID,
		LLM:              llm,
		Classifier:       classifier.New(llm, logger, cfg.ClassifierEnabled),
		RPC:              rpcplane.New(t, rt.ParticipantID, logger),
		Ads:              ads,
		Monitor:          monitor,
		Logger:           logger,
		MaxToolHops:      cfg.MaxToolHops,
		ClassifierWindow: cfg.ClassifierWindow,
		IdempotentRetryBudget: cfg.RPCIdempotentRetries,
		SystemPrompt:     agentSystemPrompt,
		InternalTools:    []orchestrator.InternalTool{tools.Calculator()},
	})

	if _, err := rt.Advertise(ctx, advertisement.KindAgent, agentName, serviceClass, advertisement.AgentPayload{
		Specializations: agentSpecializations,
		DefaultCapable:  agentDefaultCapable,
	}, nil); err != nil {
		return wrapExit(2, err)
	}

	serverPlane := rpcplane.New(t, rt.ParticipantID, logger)
	stopServe, err := serverPlane.Serve(ctx, serviceClass, func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		var reqArgs agentRequestArgs
		if err := json.Unmarshal(req.Arguments, &reqArgs); err != nil {
			return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusError, Error: err.Error()}
		}
		text, err := orc.Handle(ctx, req.ConversationID, reqArgs.Query)
		if err != nil {
			kind := generrors.KindToolCallFailed
			if gerr, ok := err.(*generrors.Error); ok {
				kind = gerr.Kind
			}
			return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusError, Error: fmt.Sprintf("%s: %v", kind, err), ConversationID: req.ConversationID}
		}
		result, _ := json.Marshal(map[string]string{"text": text})
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusOK, Result: result, ConversationID: req.ConversationID}
	})
	if err != nil {
		return wrapExit(3, err)
	}
	defer stopServe()

	fmt.Fprintf(cmd.OutOrStdout(), "genesis agent %q ready as %s (service_class=%s)\n", agentName, rt.ParticipantID, serviceClass)
	<-ctx.Done()
	return nil
}
