package testutil

import (
	"github.com/agentdeck/agentdeck/internal/agent"
)

// Emit wraps an event into a script step.
func Emit(e agent.Event) agent.Step {
	return agent.EmitStep{Event: e}
}

// InitEvent builds a system/init event carrying the backend session id.
func InitEvent(backendSessionID string) agent.SystemEvent {
	return agent.SystemEvent{
		Type:      agent.EventTypeSystem,
		Subtype:   agent.SystemSubtypeInit,
		SessionID: backendSessionID,
		Model:     "default",
	}
}

// AssistantText builds an assistant event with a single text block.
func AssistantText(uuid, text string) agent.AssistantEvent {
	return agent.AssistantEvent{
		Type: agent.EventTypeAssistant,
		UUID: uuid,
		Message: agent.MessageContent{
			Role: "assistant",
			Content: agent.ContentBlocks{
				agent.TextBlock{Type: "text", Text: text},
			},
		},
	}
}

// AssistantBlocks builds an assistant event from arbitrary content blocks.
func AssistantBlocks(uuid string, blocks ...agent.ContentBlock) agent.AssistantEvent {
	return agent.AssistantEvent{
		Type:    agent.EventTypeAssistant,
		UUID:    uuid,
		Message: agent.MessageContent{Role: "assistant", Content: blocks},
	}
}

// ToolUse builds a tool_use content block.
func ToolUse(callID, toolName string, input map[string]any) agent.ToolUseBlock {
	if input == nil {
		input = map[string]any{}
	}
	return agent.ToolUseBlock{Type: "tool_use", ID: callID, Name: toolName, Input: input}
}

// ToolResult builds a user event echoing one tool result.
func ToolResult(callID, content string, isError bool) agent.UserEvent {
	return agent.UserEvent{
		Type: agent.EventTypeUser,
		UUID: "user-" + callID,
		Message: agent.MessageContent{
			Role: "user",
			Content: agent.ContentBlocks{
				agent.ToolResultBlock{
					Type:      "tool_result",
					ToolUseID: callID,
					Content:   []byte(`"` + content + `"`),
					IsError:   &isError,
				},
			},
		},
	}
}

// SuccessResult builds the terminal success event of a turn.
func SuccessResult() agent.ResultEvent {
	return agent.ResultEvent{
		Type:    agent.EventTypeResult,
		Subtype: agent.ResultSubtypeSuccess,
	}
}

// ErrorResult builds a terminal non-success event carrying an error text.
func ErrorResult(text string) agent.ResultEvent {
	return agent.ResultEvent{
		Type:    agent.EventTypeResult,
		Subtype: "error_during_execution",
		IsError: true,
		Result:  text,
	}
}

// SimpleTurn is the canonical happy-path script: init, one assistant text
// message, success.
func SimpleTurn(backendSessionID, uuid, text string) []agent.Step {
	return []agent.Step{
		Emit(InitEvent(backendSessionID)),
		Emit(AssistantText(uuid, text)),
		Emit(SuccessResult()),
	}
}
