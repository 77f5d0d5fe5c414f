package types

import "encoding/json"

// Part represents one fragment of a message.
type Part interface {
	PartType() string
}

// Part type tags.
const (
	PartTypeText     = "text"
	PartTypeThinking = "thinking"
	PartTypeTool     = "tool"
	PartTypeFile     = "file"
)

// ToolState is the lifecycle state of a tool invocation.
type ToolState string

const (
	ToolStatePending ToolState = "pending"
	ToolStateSuccess ToolState = "success"
	ToolStateFailure ToolState = "failure"
)

// TaskToolName is the tool representing a sub-agent invocation. Other tool
// calls may be logically nested under it (compared case-insensitively).
const TaskToolName = "Task"

// TextPart is plain text content.
type TextPart struct {
	Type      string `json:"type"` // always "text"
	Text      string `json:"text"`
	MessageID string `json:"messageID,omitempty"`
}

func (p *TextPart) PartType() string { return "text" }

// ThinkingPart is extended reasoning content.
type ThinkingPart struct {
	Type      string `json:"type"` // always "thinking"
	Thinking  string `json:"thinking"`
	MessageID string `json:"messageID,omitempty"`
}

func (p *ThinkingPart) PartType() string { return "thinking" }

// ToolPart is one tool invocation and, once merged, its result. CallID joins
// the invocation event with the later result event; it is unique per turn.
type ToolPart struct {
	Type     string         `json:"type"` // always "tool"
	ToolName string         `json:"toolName"`
	CallID   string         `json:"callID"`
	Input    map[string]any `json:"input,omitempty"`
	State    ToolState      `json:"state"`
	Output   *string        `json:"output,omitempty"` // set iff State == success
	Error    *string        `json:"error,omitempty"`  // set iff State == failure

	MessageID        string `json:"messageID,omitempty"`
	ParentTaskCallID string `json:"parentTaskCallID,omitempty"`

	// Diff is populated only for recognized file-editing tools.
	Diff *FileDiff `json:"diff,omitempty"`

	// MCP is set when the tool is provided by an MCP server.
	MCP *MCPToolInfo `json:"mcp,omitempty"`
}

func (p *ToolPart) PartType() string { return "tool" }

// FilePart is a file attachment reference.
type FilePart struct {
	Type      string `json:"type"` // always "file"
	Path      string `json:"path"`
	MediaType string `json:"mediaType,omitempty"`
	MessageID string `json:"messageID,omitempty"`
}

func (p *FilePart) PartType() string { return "file" }

// FileDiff describes the change a file-editing tool made.
type FileDiff struct {
	Path      string `json:"path"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// MCPToolInfo identifies the MCP server a tool came from.
type MCPToolInfo struct {
	Server string `json:"server"`
}

// Clone returns a deep copy of the tool part, detached from any later state
// merges on the original.
func (p *ToolPart) Clone() *ToolPart {
	c := *p
	if p.Input != nil {
		c.Input = make(map[string]any, len(p.Input))
		for k, v := range p.Input {
			c.Input[k] = v
		}
	}
	if p.Output != nil {
		out := *p.Output
		c.Output = &out
	}
	if p.Error != nil {
		errText := *p.Error
		c.Error = &errText
	}
	if p.Diff != nil {
		d := *p.Diff
		c.Diff = &d
	}
	if p.MCP != nil {
		m := *p.MCP
		c.MCP = &m
	}
	return &c
}

// ClonePart returns a deep copy of a part.
func ClonePart(p Part) Part {
	switch v := p.(type) {
	case *TextPart:
		c := *v
		return &c
	case *ThinkingPart:
		c := *v
		return &c
	case *ToolPart:
		return v.Clone()
	case *FilePart:
		c := *v
		return &c
	default:
		return p
	}
}

// UnmarshalPart decodes a JSON part into the appropriate concrete type.
// Unknown part types fail closed with a nil part rather than a miscast.
func UnmarshalPart(data []byte) (Part, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "thinking":
		var p ThinkingPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "tool":
		var p ToolPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "file":
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, nil
	}
}
