package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/config"
	"github.com/genesis-run/genesis/internal/participant"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/tools"
)

var serviceName string

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run a service participant: advertises a FUNCTION and serves it over the RPC Plane",
	RunE:  runService,
}

func init() {
	serviceCmd.Flags().StringVar(&serviceName, "name", "calculator", "service_class and advertised SERVICE name")
}

func runService(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger()

	t, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	rt := participant.New(participant.Options{
		Transport:   t,
		Kind:        participant.KindService,
		DisplayName: cfg.DisplayName,
		Logger:      logger,
	})
	if err := rt.Start(ctx); err != nil {
		return wrapExit(3, err)
	}
	defer rt.Close(ctx)

	calc := tools.Calculator()

	if _, err := rt.Advertise(ctx, advertisement.KindService, serviceName, serviceName, advertisement.ServicePayload{
		Functions:    []string{calc.Spec.Name},
		Capabilities: []string{"idempotent"},
	}, nil); err != nil {
		return wrapExit(2, err)
	}

	if _, err := rt.Advertise(ctx, advertisement.KindFunction, calc.Spec.Name, serviceName, advertisement.FunctionPayload{
		ParameterSchema: calc.Spec.ParameterSchema,
		Capabilities:    []string{"idempotent"},
		ServiceName:     serviceName,
	}, nil); err != nil {
		return wrapExit(2, err)
	}

	serverPlane := rpcplane.New(t, rt.ParticipantID, logger)
	stopServe, err := serverPlane.Serve(ctx, serviceName, func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		out, err := calc.Handler(ctx, req.Arguments)
		if err != nil {
			return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusError, Error: err.Error()}
		}
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusOK, Result: out}
	})
	if err != nil {
		return wrapExit(3, err)
	}
	defer stopServe()

	fmt.Fprintf(cmd.OutOrStdout(), "genesis service %q ready as %s\n", serviceName, rt.ParticipantID)
	<-ctx.Done()
	return nil
}
