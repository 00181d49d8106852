// Package llmadapter: AWS Bedrock binding, grounded on the teacher's
// features/model/bedrock/client.go translation of conversations and tool
// schemas into the Converse API's brtypes, narrowed to Genesis's
// six-capability Adapter contract.
package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockRuntime mirrors the subset of *bedrockruntime.Client this adapter
// depends on.
type BedrockRuntime interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockAdapter implements Adapter on top of the AWS Bedrock Converse API.
type BedrockAdapter struct {
	base
	runtime BedrockRuntime
	modelID string
}

// NewBedrock constructs a BedrockAdapter for the given model ID (e.g. an
// inference profile ARN or a foundation model ID).
func NewBedrock(runtime BedrockRuntime, modelID string) (*BedrockAdapter, error) {
	if runtime == nil {
		return nil, errors.New("llmadapter: bedrock runtime client is required")
	}
	if modelID == "" {
		return nil, errors.New("llmadapter: bedrock model id is required")
	}
	return &BedrockAdapter{runtime: runtime, modelID: modelID}, nil
}

func (a *BedrockAdapter) Call(ctx context.Context, messages []Message, tools []ToolSpec, toolChoice ToolChoice) (Response, error) {
	input, err := a.prepareRequest(messages, tools, toolChoice)
	if err != nil {
		return Response{}, err
	}
	out, err := a.runtime.Converse(ctx, input)
	if err != nil {
		return Response{}, fmt.Errorf("llmadapter: bedrock converse: %w", err)
	}
	return translateBedrockResponse(out), nil
}

func (a *BedrockAdapter) prepareRequest(messages []Message, tools []ToolSpec, toolChoice ToolChoice) (*bedrockruntime.ConverseInput, error) {
	if len(messages) == 0 {
		return nil, errors.New("llmadapter: bedrock requires at least one message")
	}

	var system []brtypes.SystemContentBlock
	conversation := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if m.Text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text})
			}
		case RoleUser:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}},
			})
		case RoleAssistant:
			conversation = append(conversation, encodeBedrockAssistantMessage(m))
		case RoleTool:
			conversation = append(conversation, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: &m.ToolCallID,
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Text}},
					},
				}},
			})
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &a.modelID,
		Messages: conversation,
		System:   system,
	}
	if len(tools) > 0 {
		cfg, err := encodeBedrockTools(tools, toolChoice)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = cfg
	}
	return input, nil
}

func encodeBedrockAssistantMessage(m Message) brtypes.Message {
	var blocks []brtypes.ContentBlock
	if m.Text != "" {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
	}
	for _, tc := range m.ToolCalls {
		var input map[string]any
		_ = json.Unmarshal(tc.Arguments, &input)
		name := tc.Name
		id := tc.ID
		blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
			Value: brtypes.ToolUseBlock{ToolUseId: &id, Name: &name, Input: document.NewLazyDocument(input)},
		})
	}
	return brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks}
}

func encodeBedrockTools(tools []ToolSpec, toolChoice ToolChoice) (*brtypes.ToolConfiguration, error) {
	toolList := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if len(t.ParameterSchema) > 0 {
			if err := json.Unmarshal(t.ParameterSchema, &schema); err != nil {
				return nil, fmt.Errorf("llmadapter: tool %q schema: %w", t.Name, err)
			}
		}
		name := t.Name
		desc := t.Description
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        &name,
			Description: &desc,
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	cfg := &brtypes.ToolConfiguration{Tools: toolList}
	if toolChoice == ToolChoiceRequired {
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	}
	return cfg, nil
}

func translateBedrockResponse(out *bedrockruntime.ConverseOutput) Response {
	var resp Response
	resp.Raw = out
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			var args json.RawMessage
			if v.Value.Input != nil {
				var m map[string]any
				if err := v.Value.Input.UnmarshalSmithyDocument(&m); err == nil {
					args, _ = json.Marshal(m)
				}
			}
			id := ""
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			name := ""
			if v.Value.Name != nil {
				name = *v.Value.Name
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: id, Name: name, Arguments: args})
		}
	}
	return resp
}
