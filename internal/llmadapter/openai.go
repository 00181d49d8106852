// Package llmadapter: OpenAI binding. No example repo in the corpus uses
// github.com/openai/openai-go directly, so this adapter mirrors the shape of
// the Anthropic adapter above (narrow client interface, prepareRequest /
// translateResponse split) applied to the OpenAI Chat Completions API.
package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatCompletions captures the subset of the OpenAI SDK client this
// adapter depends on.
type OpenAIChatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIAdapter implements Adapter on top of OpenAI Chat Completions.
type OpenAIAdapter struct {
	base
	chat  OpenAIChatCompletions
	model string
}

// NewOpenAI constructs an OpenAIAdapter.
func NewOpenAI(chat OpenAIChatCompletions, model string) (*OpenAIAdapter, error) {
	if chat == nil {
		return nil, errors.New("llmadapter: openai client is required")
	}
	if model == "" {
		return nil, errors.New("llmadapter: openai model identifier is required")
	}
	return &OpenAIAdapter{chat: chat, model: model}, nil
}

// NewOpenAIFromAPIKey constructs an OpenAIAdapter using the default OpenAI
// HTTP client, authenticating with apiKey via option.WithAPIKey.
func NewOpenAIFromAPIKey(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("llmadapter: openai api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAI(&client.Chat.Completions, model)
}

func (a *OpenAIAdapter) Call(ctx context.Context, messages []Message, tools []ToolSpec, toolChoice ToolChoice) (Response, error) {
	params, err := a.prepareRequest(messages, tools, toolChoice)
	if err != nil {
		return Response{}, err
	}
	resp, err := a.chat.New(ctx, *params)
	if err != nil {
		return Response{}, fmt.Errorf("llmadapter: openai chat.completions.new: %w", err)
	}
	return translateOpenAIResponse(resp), nil
}

func (a *OpenAIAdapter) prepareRequest(messages []Message, tools []ToolSpec, toolChoice ToolChoice) (*openai.ChatCompletionNewParams, error) {
	if len(messages) == 0 {
		return nil, errors.New("llmadapter: openai requires at least one message")
	}

	conversation := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			conversation = append(conversation, openai.SystemMessage(m.Text))
		case RoleUser:
			conversation = append(conversation, openai.UserMessage(m.Text))
		case RoleAssistant:
			conversation = append(conversation, encodeOpenAIAssistantMessage(m))
		case RoleTool:
			conversation = append(conversation, openai.ToolMessage(m.Text, m.ToolCallID))
		}
	}

	params := &openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: conversation,
	}
	if len(tools) > 0 {
		params.Tools = encodeOpenAITools(tools)
	}
	switch toolChoice {
	case ToolChoiceNone:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	case ToolChoiceRequired:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
	}
	return params, nil
}

func encodeOpenAIAssistantMessage(m Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{
		Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Text)},
	}
	for _, tc := range m.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func encodeOpenAITools(tools []ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		_ = json.Unmarshal(t.ParameterSchema, &params)
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}
	return out
}

func translateOpenAIResponse(resp *openai.ChatCompletion) Response {
	var out Response
	out.Raw = resp
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
