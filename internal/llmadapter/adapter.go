// Package llmadapter implements the External Bindings LLM adapter of
// spec.md §4.7: the sole place provider-specific schema translation lives.
// Every concrete adapter (Anthropic, OpenAI, Bedrock, or the deterministic
// stub) implements the same six capabilities so the Orchestrator and
// Classifier never see a provider-specific type.
package llmadapter

import (
	"context"
	"encoding/json"
)

// Role is a conversation participant role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one turn of the conversation presented to, or produced by, the
// adapter. ToolCallID is set on a RoleTool message to tie a tool result back
// to the ToolCall that produced it.
type Message struct {
	Role       Role       `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec describes one callable tool in the unified toolset the
// Orchestrator builds from FUNCTION/AGENT advertisements plus internal
// tools (spec.md §4.4's "agent-as-tool" property).
type ToolSpec struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ParameterSchema json.RawMessage `json:"parameter_schema"`
}

// ToolChoice selects how strongly the model should be pushed toward calling
// a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Response is the adapter-neutral result of a Call.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	// Raw carries the provider-native response for adapters/tests that need
	// it; callers outside this package should not depend on its shape.
	Raw any
}

// Adapter is the External Bindings LLM contract of spec.md §4.7. Failure
// modes are mapped by callers to generrors.KindLLMUnavailable or
// generrors.KindToolCallFailed — the adapter itself returns plain errors.
type Adapter interface {
	// Call invokes the model with messages, offering tools under toolChoice.
	Call(ctx context.Context, messages []Message, tools []ToolSpec, toolChoice ToolChoice) (Response, error)

	// FormatMessages assembles a conversation from a system prompt, retrieved
	// memory items, and the triggering user message, in the order this
	// adapter's provider expects them.
	FormatMessages(userMsg, system string, memory []Message) []Message

	// ExtractToolCalls returns every tool call present in resp.
	ExtractToolCalls(resp Response) []ToolCall

	// ExtractText returns the plain-text portion of resp, if any.
	ExtractText(resp Response) string

	// CreateAssistantMessage converts resp into a Message suitable for
	// appending to the conversation before the next turn.
	CreateAssistantMessage(resp Response) Message

	// GetToolChoice returns this adapter's default tool choice policy.
	GetToolChoice() ToolChoice
}
