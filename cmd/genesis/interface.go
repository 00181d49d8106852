package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/config"
	"github.com/genesis-run/genesis/internal/orchestrator"
	"github.com/genesis-run/genesis/internal/participant"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/tools"
)

var interfaceSystemPrompt string

var interfaceCmd = &cobra.Command{
	Use:   "interface",
	Short: "Run an interface participant: reads queries from stdin, prints Orchestrator responses",
	RunE:  runInterface,
}

func init() {
	interfaceCmd.Flags().StringVar(&interfaceSystemPrompt, "system-prompt", "You are a helpful Genesis agent.", "system prompt for the LLM adapter")
}

func runInterface(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
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

	rt := participant.New(participant.Options{
		Transport:   t,
		Kind:        participant.KindInterface,
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

	orc := orchestrator.New(orchestrator.Options{
		ParticipantID:    rt.ParticipantID,
		LLM:              llm,
		Classifier:       classifier.New(llm, logger, cfg.ClassifierEnabled),
		RPC:              rpcplane.New(t, rt.ParticipantID, logger),
		Ads:              ads,
		Logger:           logger,
		MaxToolHops:      cfg.MaxToolHops,
		ClassifierWindow: cfg.ClassifierWindow,
		IdempotentRetryBudget: cfg.RPCIdempotentRetries,
		SystemPrompt:     interfaceSystemPrompt,
		InternalTools:    []orchestrator.InternalTool{tools.Calculator()},
	})

	fmt.Fprintln(cmd.OutOrStdout(), "genesis interface ready; type a query per line (Ctrl-D to exit)")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	conversationID := rt.ParticipantID
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		resp, err := orc.Handle(ctx, conversationID, line)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp)
	}
	return nil
}
