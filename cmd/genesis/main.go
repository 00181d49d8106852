// Command genesis launches a Genesis participant: an interface, agent, or
// service process, or a monitoring bridge, per spec.md §2/§6.
//
// # Configuration
//
// Environment variables (all optional, documented defaults in
// internal/config):
//
//	GENESIS_REDIS_ADDR            - Redis address (default: in-memory transport)
//	GENESIS_GRAPH_RETENTION       - OFFLINE node grace period (default: 10m)
//	GENESIS_LLM_PROVIDER          - anthropic|openai|bedrock|stub (default: stub)
//	GENESIS_CLASSIFIER            - "off" to disable LLM-based classification
//	GENESIS_CLASSIFIER_WINDOW     - candidate tool window size (default: 10)
//	GENESIS_MAX_TOOL_HOPS         - orchestrator tool-loop bound (default: 8)
//	GENESIS_BOLT_PATH             - enables a durable BoltGraphStore
//	GENESIS_WS_ADDR               - monitoring WebSocket bind address
//
// Exit codes: 0 success, 2 configuration error, 3 transport unavailable at
// join, 4 provider-required env missing, 1 otherwise (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "genesis:", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Genesis: a distributed runtime for collaborating AI agents, services, and interfaces",
	Long: `Genesis coordinates interface, agent, and service participants over a
data-centric pub/sub substrate: participant lifecycle, capability
advertisement, RPC dispatch, agent orchestration, and topology monitoring.`,
}

func init() {
	rootCmd.AddCommand(interfaceCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(monitorCmd)
}

// exitCode tags an error with the process exit code it should produce, per
// spec.md §6.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func wrapExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCode{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ec *exitCode
	if as, ok := err.(*exitCode); ok {
		ec = as
	}
	if ec != nil {
		return ec.code
	}
	return 1
}
