// Package agent defines the streamed event protocol of the coding-agent
// backend and the Querier interface through which the session core drives it.
package agent

// EventType discriminates streamed backend events.
type EventType string

const (
	EventTypeSystem    EventType = "system"
	EventTypeAssistant EventType = "assistant"
	EventTypeUser      EventType = "user"
	EventTypeResult    EventType = "result"
	EventTypeError     EventType = "error"
)

// System event subtypes.
const (
	SystemSubtypeInit            = "init"
	SystemSubtypeCompactBoundary = "compact_boundary"
)

// Result event subtypes.
const (
	ResultSubtypeSuccess = "success"
)

// Event is one streamed backend event.
type Event interface {
	EvType() EventType
}

// MCPServerStatus reports one MCP server connection as the backend sees it.
type MCPServerStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// PluginStatus reports one loaded plugin.
type PluginStatus struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// CompactMetadata accompanies a compact_boundary system event.
type CompactMetadata struct {
	Trigger    string `json:"trigger,omitempty"`
	PreTokens  int    `json:"pre_tokens"`
	PostTokens int    `json:"post_tokens"`
}

// SystemEvent carries session initialization and other system notices.
type SystemEvent struct {
	Type            EventType         `json:"type"`
	Subtype         string            `json:"subtype"`
	SessionID       string            `json:"session_id,omitempty"`
	Model           string            `json:"model,omitempty"`
	CWD             string            `json:"cwd,omitempty"`
	MCPServers      []MCPServerStatus `json:"mcp_servers,omitempty"`
	Plugins         []PluginStatus    `json:"plugins,omitempty"`
	SlashCommands   []string          `json:"slash_commands,omitempty"`
	CompactMetadata *CompactMetadata  `json:"compact_metadata,omitempty"`
	Message         string            `json:"message,omitempty"`
}

// EvType returns the event type.
func (e SystemEvent) EvType() EventType { return EventTypeSystem }

// MessageContent is the inner content of assistant/user events.
type MessageContent struct {
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role"`
	Content ContentBlocks `json:"content"`
}

// AssistantEvent is one assistant message from the backend. UUID identifies
// the upstream message; repeated events with the same UUID replace earlier
// content rather than appending.
type AssistantEvent struct {
	Type            EventType      `json:"type"`
	UUID            string         `json:"uuid"`
	SessionID       string         `json:"session_id,omitempty"`
	ParentToolUseID *string        `json:"parent_tool_use_id"`
	Message         MessageContent `json:"message"`
}

// EvType returns the event type.
func (e AssistantEvent) EvType() EventType { return EventTypeAssistant }

// UserEvent carries tool results echoed back by the backend.
type UserEvent struct {
	Type            EventType      `json:"type"`
	UUID            string         `json:"uuid"`
	SessionID       string         `json:"session_id,omitempty"`
	ParentToolUseID *string        `json:"parent_tool_use_id"`
	Message         MessageContent `json:"message"`
}

// EvType returns the event type.
func (e UserEvent) EvType() EventType { return EventTypeUser }

// ResultEvent terminates a turn.
type ResultEvent struct {
	Type       EventType `json:"type"`
	Subtype    string    `json:"subtype"`
	SessionID  string    `json:"session_id,omitempty"`
	IsError    bool      `json:"is_error"`
	Result     string    `json:"result,omitempty"`
	NumTurns   int       `json:"num_turns,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// EvType returns the event type.
func (e ResultEvent) EvType() EventType { return EventTypeResult }

// ErrorEvent surfaces a stream-level failure as an event so consumers see a
// single channel of outcomes.
type ErrorEvent struct {
	Err error
}

// EvType returns the event type.
func (e ErrorEvent) EvType() EventType { return EventTypeError }
