// Package types provides the core data types for the agentdeck server.
package types

import "context"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusError   SessionStatus = "error"
)

// Session represents one multi-turn conversation with the agent backend.
type Session struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Status   SessionStatus `json:"status"`
	Messages []*Message    `json:"messages"`
	Time     SessionTime   `json:"time"`

	// LastError holds the most recent turn failure, if any.
	LastError *string `json:"lastError,omitempty"`

	// ResumeToken is the backend's own session identifier, captured from the
	// first init event and reused to continue conversation state across turns.
	// Once set it is never cleared except by deleting the session.
	ResumeToken string `json:"resumeToken,omitempty"`

	// Init is the backend-reported snapshot from the most recent turn start.
	Init *SessionInitData `json:"init,omitempty"`

	// TitleStarted guards against dispatching title generation twice.
	TitleStarted bool `json:"-"`

	// Cancel aborts the in-flight turn, when one is running.
	Cancel context.CancelFunc `json:"-"`
}

// Clone returns a read-safe snapshot of the session. Stored messages are
// shared, not copied: they are immutable once stored, only ever replaced
// wholesale. The cancellation handle stays behind.
func (s *Session) Clone() *Session {
	c := *s
	c.Cancel = nil
	if s.Messages != nil {
		c.Messages = make([]*Message, len(s.Messages))
		copy(c.Messages, s.Messages)
	}
	return &c
}

// SessionTime contains timestamps for a session (unix milliseconds).
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// SessionInitData is the snapshot the backend reports when a turn starts.
type SessionInitData struct {
	Model         string            `json:"model,omitempty"`
	CWD           string            `json:"cwd,omitempty"`
	MCPServers    []MCPServerStatus `json:"mcpServers"`
	Plugins       []PluginStatus    `json:"plugins"`
	SlashCommands []string          `json:"slashCommands,omitempty"`
}

// MCPServerStatus is the backend-reported connection status of one MCP server.
type MCPServerStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// PluginStatus is the backend-reported status of one loaded plugin.
type PluginStatus struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// MCPServerDef is a merged MCP server definition passed to the backend.
// Either Command (stdio transport) or URL (HTTP transport) is set.
type MCPServerDef struct {
	Type    string            `json:"type"` // "stdio" | "http"
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// PluginDef is a merged plugin definition passed to the backend.
type PluginDef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ModelInfo describes one model the backend can run.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}
