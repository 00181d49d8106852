package llmadapter

// base implements the five provider-agnostic capabilities (FormatMessages,
// ExtractToolCalls, ExtractText, CreateAssistantMessage, GetToolChoice)
// shared by every concrete adapter; only Call is provider-specific.
type base struct {
	defaultToolChoice ToolChoice
}

func (b base) FormatMessages(userMsg, system string, memory []Message) []Message {
	var out []Message
	if system != "" {
		out = append(out, Message{Role: RoleSystem, Text: system})
	}
	out = append(out, memory...)
	if userMsg != "" {
		out = append(out, Message{Role: RoleUser, Text: userMsg})
	}
	return out
}

func (b base) ExtractToolCalls(resp Response) []ToolCall {
	return resp.ToolCalls
}

func (b base) ExtractText(resp Response) string {
	return resp.Text
}

func (b base) CreateAssistantMessage(resp Response) Message {
	return Message{Role: RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls}
}

func (b base) GetToolChoice() ToolChoice {
	if b.defaultToolChoice == "" {
		return ToolChoiceAuto
	}
	return b.defaultToolChoice
}
