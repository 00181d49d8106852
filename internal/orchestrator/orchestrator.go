// Package orchestrator implements the Agent Orchestrator of spec.md §4.4:
// the tool-calling loop that unifies FUNCTION/AGENT advertisements and
// internal tools into one LLM toolset, dispatches tool calls over the RPC
// Plane, and emits CHAIN START/COMPLETE/ERROR events to the Monitoring
// Plane for the whole turn.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/ids"
	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/memoryadapter"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/policy"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/telemetry"
)

// DefaultMaxToolHops bounds the tool-call loop (spec.md §4.4 step 5,
// GENESIS_MAX_TOOL_HOPS in SPEC_FULL.md).
const DefaultMaxToolHops = 8

// DefaultCallTimeout bounds a single RPC hop when the caller supplies no
// deadline of its own.
const DefaultCallTimeout = 30 * time.Second

// InternalTool is a locally-invoked tool offered alongside FUNCTION/AGENT
// advertisements, realizing spec.md §4.4 step 4.c.
type InternalTool struct {
	Spec    llmadapter.ToolSpec
	Handler func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error)
}

// Options configures an Orchestrator.
type Options struct {
	ParticipantID string
	LLM           llmadapter.Adapter
	Classifier    classifier.Classifier
	RPC           *rpcplane.Plane
	Ads           *advertisement.Cache
	Monitor       *monitoring.Plane
	Memory        memoryadapter.Adapter // optional; absence must not change correctness
	InternalTools []InternalTool
	Logger        telemetry.Logger
	Breakers      *policy.Breakers   // optional
	RateLimiters  *policy.RateLimiters // optional
	MaxToolHops   int
	ClassifierWindow int
	// IdempotentRetryBudget is the configured budget passed to
	// policy.RetryBudget for providers advertising the "idempotent"
	// capability (spec.md §7, GENESIS_RPC_IDEMPOTENT_RETRIES). Zero means
	// policy.RetryBudget's own default.
	IdempotentRetryBudget int
	SystemPrompt  string
}

// Orchestrator is one participant's handle onto the Agent Orchestrator.
type Orchestrator struct {
	opts          Options
	internalByName map[string]InternalTool
}

// New constructs an Orchestrator from opts, applying defaults for
// MaxToolHops and ClassifierWindow.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.MaxToolHops <= 0 {
		opts.MaxToolHops = DefaultMaxToolHops
	}
	if opts.ClassifierWindow <= 0 {
		opts.ClassifierWindow = classifier.DefaultWindow
	}
	byName := make(map[string]InternalTool, len(opts.InternalTools))
	for _, t := range opts.InternalTools {
		byName[t.Spec.Name] = t
	}
	return &Orchestrator{opts: opts, internalByName: byName}
}

// candidateKind distinguishes which dispatch path a classifier.Candidate
// resolves to.
type candidateKind int

const (
	candidateInternal candidateKind = iota
	candidateFunction
	candidateAgent
)

// resolved pairs a classifier.Candidate with the dispatch metadata needed
// to route a tool call the LLM selects.
type resolved struct {
	candidate    classifier.Candidate
	kind         candidateKind
	ads          []advertisement.Advertisement // all providers advertising this name+kind, for tie-break
	capabilities []string
}

// Handle runs one full turn per spec.md §4.4: retrieve memory, build the
// candidate toolset, invoke the LLM, dispatch any tool calls, and loop
// until a terminal text response or MaxToolHops is exceeded.
func (o *Orchestrator) Handle(ctx context.Context, conversationID, userMsg string) (string, error) {
	var memoryItems []llmadapter.Message
	if o.opts.Memory != nil {
		items, err := o.opts.Memory.Retrieve(ctx, userMsg, 10, memoryadapter.RetrievalPolicy{PreferPromoted: true})
		if err != nil {
			o.opts.Logger.Warn(ctx, "memory retrieve failed, proceeding without it", "error", err)
		} else {
			for _, it := range items {
				memoryItems = append(memoryItems, llmadapter.Message{Role: llmadapter.RoleAssistant, Text: it.Text})
			}
		}
	}

	universe, resolvedByName := o.buildUniverse()
	candidates, err := o.opts.Classifier.Classify(ctx, userMsg, universe, o.opts.ClassifierWindow)
	if err != nil {
		return "", generrors.Wrap(generrors.KindLLMUnavailable, "classify", err)
	}
	if len(candidates) == 0 {
		return "", generrors.New(generrors.KindNoCapableProvider, "no capable tool or agent for this request")
	}

	tools := make([]llmadapter.ToolSpec, 0, len(candidates))
	for _, c := range candidates {
		tools = append(tools, c.ToolSpec)
	}

	messages := o.opts.LLM.FormatMessages(userMsg, o.opts.SystemPrompt, memoryItems)

	chainID := ids.NewChainID()
	hops := 0
	var chainStarted bool

	for {
		resp, err := o.opts.LLM.Call(ctx, messages, tools, o.opts.LLM.GetToolChoice())
		if err != nil {
			if chainStarted {
				o.emitChain(ctx, chainID, "", "", monitoring.ChainPhaseError, err.Error())
			}
			return "", generrors.Wrap(generrors.KindLLMUnavailable, "llm call", err)
		}

		calls := o.opts.LLM.ExtractToolCalls(resp)
		if len(calls) == 0 {
			text := o.opts.LLM.ExtractText(resp)
			if chainStarted {
				o.emitChain(ctx, chainID, "", "", monitoring.ChainPhaseComplete, "")
			}
			if o.opts.Memory != nil && text != "" {
				_ = o.opts.Memory.Write(ctx, memoryadapter.Item{Text: text, Timestamp: time.Now()})
			}
			return text, nil
		}

		hops++
		if hops > o.opts.MaxToolHops {
			o.emitChain(ctx, chainID, "", "", monitoring.ChainPhaseError, "tool loop exceeded")
			return "", generrors.New(generrors.KindToolLoopExceeded, fmt.Sprintf("exceeded %d tool hops", o.opts.MaxToolHops))
		}

		messages = append(messages, o.opts.LLM.CreateAssistantMessage(resp))
		if !chainStarted {
			chainStarted = true
		}

		for _, call := range calls {
			res, toolErr := o.dispatch(ctx, chainID, conversationID, call, resolvedByName)
			messages = append(messages, toolResultMessage(call, res, toolErr))
			if toolErr != nil {
				o.opts.Logger.Warn(ctx, "tool call failed", "tool", call.Name, "error", toolErr)
			}
		}
	}
}

func toolResultMessage(call llmadapter.ToolCall, result json.RawMessage, toolErr error) llmadapter.Message {
	if toolErr != nil {
		errPayload, _ := json.Marshal(map[string]string{"status": "error", "message": toolErr.Error()})
		return llmadapter.Message{Role: llmadapter.RoleTool, ToolCallID: call.ID, Text: string(errPayload)}
	}
	return llmadapter.Message{Role: llmadapter.RoleTool, ToolCallID: call.ID, Text: string(result)}
}

// buildUniverse assembles the classifier.Candidate universe from internal
// tools plus every live FUNCTION/AGENT advertisement, and returns a lookup
// from tool name back to its dispatch metadata.
func (o *Orchestrator) buildUniverse() ([]classifier.Candidate, map[string]resolved) {
	byName := make(map[string]resolved)
	var universe []classifier.Candidate

	for _, t := range o.opts.InternalTools {
		universe = append(universe, classifier.Candidate{ToolSpec: t.Spec})
		byName[t.Spec.Name] = resolved{kind: candidateInternal}
	}

	group := func(kind advertisement.Kind, ck candidateKind) {
		byGroupName := make(map[string][]advertisement.Advertisement)
		for _, ad := range o.opts.Ads.ByKind(kind) {
			byGroupName[ad.Name] = append(byGroupName[ad.Name], ad)
		}
		for name, ads := range byGroupName {
			cand := classifier.Candidate{ToolSpec: llmadapter.ToolSpec{Name: name, Description: ads[0].Description}}
			var capabilities []string
			if kind == advertisement.KindFunction {
				var payload advertisement.FunctionPayload
				if json.Unmarshal(ads[0].Payload, &payload) == nil {
					cand.ToolSpec.ParameterSchema = payload.ParameterSchema
					cand.ClassificationTags = payload.ClassificationTags
					capabilities = payload.Capabilities
				}
			} else {
				var payload advertisement.AgentPayload
				if json.Unmarshal(ads[0].Payload, &payload) == nil {
					cand.ClassificationTags = payload.ClassificationTags
					cand.Specializations = payload.Specializations
					cand.DefaultCapable = payload.DefaultCapable
					capabilities = payload.Capabilities
				}
				cand.ToolSpec.ParameterSchema = agentToolSchema(cand.Specializations)
			}
			universe = append(universe, cand)
			byName[name] = resolved{candidate: cand, kind: ck, ads: ads, capabilities: capabilities}
		}
	}
	group(advertisement.KindFunction, candidateFunction)
	group(advertisement.KindAgent, candidateAgent)

	return universe, byName
}

// agentToolSchema builds the JSON Schema every AGENT advertisement is
// presented to the LLM with, per spec.md §4.4's key invariant: "a tool
// whose schema is {message: string} plus any declared specialization
// args". Each specialization becomes an optional string property the LLM
// may fill in alongside the required message.
func agentToolSchema(specializations []string) json.RawMessage {
	properties := map[string]any{
		"message": map[string]any{"type": "string"},
	}
	for _, spec := range specializations {
		properties[spec] = map[string]any{"type": "string"}
	}
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{"message"},
	})
	return schema
}

// dispatch routes one LLM tool call to an internal handler or an RPC call,
// applying the tie-break rule of spec.md §4.4 when multiple providers
// advertise the same name.
func (o *Orchestrator) dispatch(ctx context.Context, chainID, conversationID string, call llmadapter.ToolCall, byName map[string]resolved) (json.RawMessage, error) {
	r, ok := byName[call.Name]
	if !ok {
		return nil, generrors.Errorf(generrors.KindNoCapableProvider, "no tool named %q in the offered candidate set", call.Name)
	}

	switch r.kind {
	case candidateInternal:
		tool, ok := o.internalByName[call.Name]
		if !ok {
			return nil, generrors.Errorf(generrors.KindNoCapableProvider, "internal tool %q not registered", call.Name)
		}
		out, err := tool.Handler(ctx, call.Arguments)
		if err != nil {
			return nil, generrors.Wrap(generrors.KindToolCallFailed, "internal tool "+call.Name, err)
		}
		return out, nil
	case candidateFunction, candidateAgent:
		return o.dispatchRPC(ctx, chainID, conversationID, call, r)
	default:
		return nil, generrors.Errorf(generrors.KindNoCapableProvider, "unresolved candidate kind for %q", call.Name)
	}
}

func (o *Orchestrator) dispatchRPC(ctx context.Context, chainID, conversationID string, call llmadapter.ToolCall, r resolved) (json.RawMessage, error) {
	target := selectProvider(r.ads, time.Now().UnixNano())
	if target.ProviderID == "" {
		return nil, generrors.Errorf(generrors.KindNoCapableProvider, "no provider currently advertises %q", call.Name)
	}

	serviceClass := target.ServiceClass
	if serviceClass == "" {
		serviceClass = target.Name
	}

	arguments := call.Arguments
	if r.kind == candidateAgent {
		translated, err := agentRPCEnvelope(call.Arguments)
		if err != nil {
			return nil, generrors.Wrap(generrors.KindSchemaViolation, "translate agent-as-tool arguments", err)
		}
		arguments = translated
	}

	callID := ids.NewCallID()
	o.emitChain(ctx, chainID, target.ProviderID, callID, monitoring.ChainPhaseStart, "")
	o.emitEdge(ctx, target.ProviderID, edgeTypeFor(r.kind))

	deadline := time.Now().Add(DefaultCallTimeout)
	invoke := func(ctx context.Context) (any, error) {
		if o.opts.RateLimiters != nil {
			if err := o.opts.RateLimiters.Wait(ctx, serviceClass); err != nil {
				return nil, err
			}
		}
		reply, err := o.opts.RPC.Call(ctx, serviceClass, target.ProviderID, call.Name, arguments, deadline, conversationID)
		if err != nil {
			return nil, err
		}
		if reply.Status != rpcplane.StatusOK {
			return nil, generrors.New(generrors.KindToolCallFailed, reply.Error)
		}
		return reply.Result, nil
	}

	retries := policy.RetryBudget(advertisement.HasCapability(r.capabilities, "idempotent"), o.opts.IdempotentRetryBudget)

	var out any
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if o.opts.Breakers != nil {
			out, err = o.opts.Breakers.Execute(ctx, policy.BreakerKey{ServiceClass: serviceClass, ProviderID: target.ProviderID}, invoke)
		} else {
			out, err = invoke(ctx)
		}
		if err == nil {
			break
		}
		if attempt < retries {
			o.opts.Logger.Warn(ctx, "retrying idempotent rpc call", "tool", call.Name, "attempt", attempt+1, "error", err)
		}
	}

	if err != nil {
		o.emitChain(ctx, chainID, target.ProviderID, callID, monitoring.ChainPhaseError, err.Error())
		return nil, generrors.Wrap(generrors.KindToolCallFailed, "rpc "+call.Name, err)
	}
	o.emitChain(ctx, chainID, target.ProviderID, callID, monitoring.ChainPhaseComplete, "")

	result, _ := out.(json.RawMessage)
	return result, nil
}

// agentRPCEnvelope translates the {message: string, ...} arguments an LLM
// supplies for an AGENT-as-tool call into the {query: string} envelope
// every `genesis agent` RPC handler decodes (cmd/genesis/agent.go).
func agentRPCEnvelope(arguments json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Query string `json:"query"`
	}{Query: args.Message})
}

// edgeTypeFor names the GraphTopology edge type for a dispatch hop, per
// spec.md §3's "Interface→Primary" / "Primary→WeatherAgent" examples.
func edgeTypeFor(kind candidateKind) string {
	if kind == candidateAgent {
		return "DELEGATES_TO"
	}
	return "CALLS"
}

// emitEdge upserts the GraphTopology edge for one dispatch hop. Edges are
// idempotent upserts keyed by (source, target, edge_type), so repeated
// hops between the same pair of participants collapse onto one record.
func (o *Orchestrator) emitEdge(ctx context.Context, targetParticipant, edgeType string) {
	if o.opts.Monitor == nil {
		return
	}
	if err := o.opts.Monitor.PublishEdge(ctx, monitoring.Edge{
		ElementID: ids.EdgeElementID(o.opts.ParticipantID, targetParticipant, edgeType),
		Type:      edgeType,
		Source:    o.opts.ParticipantID,
		Target:    targetParticipant,
	}); err != nil {
		o.opts.Logger.Warn(ctx, "failed to publish chain edge", "error", err)
	}
}

// selectProvider implements spec.md §4.4's tie-break: lowest last_seen
// staleness, then a deterministic hash of provider_id.
func selectProvider(ads []advertisement.Advertisement, nowUnixNano int64) advertisement.Advertisement {
	if len(ads) == 0 {
		return advertisement.Advertisement{}
	}
	best := ads[0]
	bestStaleness := best.Staleness(nowUnixNano)
	bestHash := hashProviderID(best.ProviderID)
	for _, ad := range ads[1:] {
		staleness := ad.Staleness(nowUnixNano)
		h := hashProviderID(ad.ProviderID)
		if staleness < bestStaleness || (staleness == bestStaleness && h < bestHash) {
			best, bestStaleness, bestHash = ad, staleness, h
		}
	}
	return best
}

func hashProviderID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}

func (o *Orchestrator) emitChain(ctx context.Context, chainID, targetParticipant, callID string, phase monitoring.ChainPhase, reason string) {
	if o.opts.Monitor == nil {
		return
	}
	payload, _ := json.Marshal(monitoring.ChainEventPayload{
		ChainID:           chainID,
		CallID:            callID,
		SourceParticipant: o.opts.ParticipantID,
		TargetParticipant: targetParticipant,
		Phase:             phase,
		Reason:            reason,
	})
	sev := "info"
	if phase == monitoring.ChainPhaseError {
		sev = "error"
	}
	if err := o.opts.Monitor.PublishEvent(ctx, monitoring.Event{
		Kind:        monitoring.EventKindChain,
		ComponentID: o.opts.ParticipantID,
		EventType:   "chain." + string(phase),
		Severity:    sev,
		Message:     reason,
		Payload:     payload,
	}); err != nil {
		o.opts.Logger.Warn(ctx, "failed to publish chain event", "error", err)
	}
}
