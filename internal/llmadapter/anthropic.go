// Package llmadapter: Anthropic binding, grounded on the teacher's
// features/model/anthropic/client.go translation of model.Request into
// sdk.MessageNewParams and back, narrowed to Genesis's six-capability
// Adapter contract instead of the teacher's full model.Client surface.
package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessages captures the subset of the Anthropic SDK client this
// adapter depends on, so tests can supply a mock in place of *sdk.MessageService.
type AnthropicMessages interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicAdapter implements Adapter on top of the Anthropic Messages API.
type AnthropicAdapter struct {
	base
	msg       AnthropicMessages
	model     string
	maxTokens int64
}

// NewAnthropic constructs an AnthropicAdapter. model is a Claude model
// identifier (e.g. string(sdk.ModelClaudeSonnet4_5)).
func NewAnthropic(msg AnthropicMessages, model string, maxTokens int64) (*AnthropicAdapter, error) {
	if msg == nil {
		return nil, errors.New("llmadapter: anthropic client is required")
	}
	if model == "" {
		return nil, errors.New("llmadapter: anthropic model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicAdapter{msg: msg, model: model, maxTokens: maxTokens}, nil
}

// NewAnthropicFromAPIKey constructs an AnthropicAdapter using the default
// Anthropic HTTP client, authenticating with apiKey via option.WithAPIKey.
func NewAnthropicFromAPIKey(apiKey, model string, maxTokens int64) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("llmadapter: anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&client.Messages, model, maxTokens)
}

func (a *AnthropicAdapter) Call(ctx context.Context, messages []Message, tools []ToolSpec, toolChoice ToolChoice) (Response, error) {
	params, err := a.prepareRequest(messages, tools, toolChoice)
	if err != nil {
		return Response{}, err
	}
	msg, err := a.msg.New(ctx, *params)
	if err != nil {
		return Response{}, fmt.Errorf("llmadapter: anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg), nil
}

func (a *AnthropicAdapter) prepareRequest(messages []Message, tools []ToolSpec, toolChoice ToolChoice) (*sdk.MessageNewParams, error) {
	if len(messages) == 0 {
		return nil, errors.New("llmadapter: anthropic requires at least one message")
	}

	var system []sdk.TextBlockParam
	conversation := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if m.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Text})
			}
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case RoleAssistant:
			conversation = append(conversation, encodeAnthropicAssistantMessage(m))
		case RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		sdkTools, err := encodeAnthropicTools(tools)
		if err != nil {
			return nil, err
		}
		params.Tools = sdkTools
	}
	switch toolChoice {
	case ToolChoiceNone:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfNone: &sdk.ToolChoiceNoneParam{}}
	case ToolChoiceRequired:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	}
	return &params, nil
}

func encodeAnthropicAssistantMessage(m Message) sdk.MessageParam {
	var blocks []sdk.ContentBlockParamUnion
	if m.Text != "" {
		blocks = append(blocks, sdk.NewTextBlock(m.Text))
	}
	for _, tc := range m.ToolCalls {
		var input map[string]any
		_ = json.Unmarshal(tc.Arguments, &input)
		blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
	}
	return sdk.NewAssistantMessage(blocks...)
}

func encodeAnthropicTools(tools []ToolSpec) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if len(t.ParameterSchema) > 0 {
			if err := json.Unmarshal(t.ParameterSchema, &schema); err != nil {
				return nil, fmt.Errorf("llmadapter: tool %q schema: %w", t.Name, err)
			}
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func translateAnthropicResponse(msg *sdk.Message) Response {
	var resp Response
	resp.Raw = msg
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Text += v.Text
		case sdk.ToolUseBlock:
			args, _ := json.Marshal(v.Input)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	return resp
}
