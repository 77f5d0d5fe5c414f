package session

import "github.com/agentdeck/agentdeck/pkg/types"

// Tracker is the per-turn registry of tool invocations, keyed by call ID. It
// merges the invocation event and the later result event into one part. One
// instance lives for exactly one turn; never share across turns.
type Tracker struct {
	order []string
	tools map[string]*types.ToolPart
}

// ToolResult carries the fields merged into a tool part when its result
// arrives.
type ToolResult struct {
	State  types.ToolState
	Output *string
	Error  *string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tools: make(map[string]*types.ToolPart)}
}

// AddTool registers a tool invocation. First write wins: a duplicate call ID
// leaves the stored part untouched. Insertion order is preserved.
func (t *Tracker) AddTool(callID string, part *types.ToolPart, parentTaskCallID string) {
	if _, exists := t.tools[callID]; exists {
		return
	}
	part.CallID = callID
	part.ParentTaskCallID = parentTaskCallID
	t.tools[callID] = part
	t.order = append(t.order, callID)
}

// UpdateResult merges a result into an existing part. A result for an unseen
// call ID is ignored; it must not crash the turn.
func (t *Tracker) UpdateResult(callID string, result ToolResult) {
	part, ok := t.tools[callID]
	if !ok {
		return
	}
	part.State = result.State
	if result.Output != nil {
		part.Output = result.Output
	}
	if result.Error != nil {
		part.Error = result.Error
	}
}

// GetTool returns the tracked part for a call ID.
func (t *Tracker) GetTool(callID string) (*types.ToolPart, bool) {
	part, ok := t.tools[callID]
	return part, ok
}

// GetTools returns all tracked parts in first-seen order.
func (t *Tracker) GetTools() []*types.ToolPart {
	tools := make([]*types.ToolPart, 0, len(t.order))
	for _, id := range t.order {
		tools = append(tools, t.tools[id])
	}
	return tools
}
