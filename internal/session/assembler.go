package session

import (
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/pkg/types"
)

// orderedEntry is one accumulated non-text fragment: either thinking content
// or a reference to a tracked tool call. Entries are tagged with the upstream
// message ID that produced them so resends can be reconciled.
type orderedEntry struct {
	messageID string
	thinking  *types.ThinkingPart
	callID    string
}

// Assembler incrementally reconstructs messages from the raw event stream of
// one turn. The upstream resends each assistant message in full as it grows,
// so the assembler must distinguish a re-send of a message already seen
// (replace its accumulated entries) from a genuinely new message (append).
type Assembler struct {
	sessionID string
	registry  *Registry
	tracker   *Tracker
	notify    func(msg *types.Message)

	ordered   []orderedEntry
	textParts map[string][]*types.TextPart
	messages  map[string]*types.Message
}

// NewAssembler creates an assembler for one turn. notify is invoked after
// every message mutation; consumers must tolerate redundant updates.
func NewAssembler(sessionID string, registry *Registry, tracker *Tracker, notify func(msg *types.Message)) *Assembler {
	return &Assembler{
		sessionID: sessionID,
		registry:  registry,
		tracker:   tracker,
		notify:    notify,
		textParts: make(map[string][]*types.TextPart),
		messages:  make(map[string]*types.Message),
	}
}

// HandleAssistant consumes one assistant event and returns the call IDs of
// Task tool invocations newly seen in it.
func (a *Assembler) HandleAssistant(ev agent.AssistantEvent) []string {
	messageID := upstreamMessageID(ev.UUID, ev.Message.ID)

	parentTaskID := ""
	if ev.ParentToolUseID != nil {
		parentTaskID = *ev.ParentToolUseID
	}

	texts, entries, newTaskIDs := a.parseBlocks(messageID, ev.Message.Content, parentTaskID)

	// A resend is recognized by its ID, not by adjacency: the upstream may
	// interleave other messages between sends of the same one.
	if a.hasEntries(messageID) {
		a.replaceResend(messageID, entries)
	} else {
		a.appendContinuation(entries)
	}
	// The upstream always resends the full current text, so text parts are
	// replaced wholesale rather than accumulated.
	a.textParts[messageID] = texts

	a.rebuild(messageID)
	return newTaskIDs
}

// HandleUser consumes a user event echoing tool results. It only merges
// result state into the tracker; the user's own prompt message was created
// before the stream began and is never duplicated here. Returns the call IDs
// of Task tools whose results completed them.
func (a *Assembler) HandleUser(ev agent.UserEvent) []string {
	var completed []string
	affected := make(map[string]bool)
	for _, block := range ev.Message.Content {
		result, ok := block.(agent.ToolResultBlock)
		if !ok {
			continue
		}

		state := types.ToolStateSuccess
		text := result.ContentText()
		update := ToolResult{State: state, Output: &text}
		if result.IsError != nil && *result.IsError {
			update = ToolResult{State: types.ToolStateFailure, Error: &text}
		}
		a.tracker.UpdateResult(result.ToolUseID, update)

		if tool, known := a.tracker.GetTool(result.ToolUseID); known {
			affected[tool.MessageID] = true
			if isTaskTool(tool.ToolName) {
				completed = append(completed, result.ToolUseID)
			}
		}
	}

	// Re-emit each touched assistant message so merged result state becomes
	// visible without waiting for the next assistant event.
	for messageID := range affected {
		a.rebuild(messageID)
	}
	return completed
}

// AccumulatedParts returns the turn's ordered non-text parts with tool
// references resolved live against the tracker. Grouping for rendering runs
// over this sequence, so it spans upstream message boundaries.
func (a *Assembler) AccumulatedParts() []types.Part {
	var parts []types.Part
	for _, entry := range a.ordered {
		if entry.thinking != nil {
			parts = append(parts, entry.thinking)
			continue
		}
		if tool, ok := a.tracker.GetTool(entry.callID); ok {
			parts = append(parts, tool)
		}
	}
	return parts
}

func (a *Assembler) parseBlocks(messageID string, blocks agent.ContentBlocks, parentTaskID string) ([]*types.TextPart, []orderedEntry, []string) {
	var texts []*types.TextPart
	var entries []orderedEntry
	var newTaskIDs []string

	for _, block := range blocks {
		switch b := block.(type) {
		case agent.TextBlock:
			texts = append(texts, &types.TextPart{
				Type:      types.PartTypeText,
				Text:      b.Text,
				MessageID: messageID,
			})
		case agent.ThinkingBlock:
			entries = append(entries, orderedEntry{
				messageID: messageID,
				thinking: &types.ThinkingPart{
					Type:      types.PartTypeThinking,
					Thinking:  b.Thinking,
					MessageID: messageID,
				},
			})
		case agent.ToolUseBlock:
			_, seen := a.tracker.GetTool(b.ID)
			part := &types.ToolPart{
				Type:      types.PartTypeTool,
				ToolName:  b.Name,
				Input:     b.Input,
				State:     types.ToolStatePending,
				MessageID: messageID,
				MCP:       mcpInfo(b.Name),
			}
			enrichToolPart(part)
			a.tracker.AddTool(b.ID, part, parentTaskID)
			entries = append(entries, orderedEntry{messageID: messageID, callID: b.ID})
			if !seen && isTaskTool(b.Name) {
				newTaskIDs = append(newTaskIDs, b.ID)
			}
		}
	}
	return texts, entries, newTaskIDs
}

// appendContinuation handles a new upstream message: its entries extend the
// turn's accumulated sequence.
func (a *Assembler) appendContinuation(entries []orderedEntry) {
	a.ordered = append(a.ordered, entries...)
}

// replaceResend handles a streaming re-send of the message last seen: all
// entries tagged with its ID are dropped and the new set spliced in their
// place, so accumulated state never duplicates.
func (a *Assembler) replaceResend(messageID string, entries []orderedEntry) {
	spliceAt := len(a.ordered)
	kept := a.ordered[:0]
	for i, entry := range a.ordered {
		if entry.messageID == messageID {
			if i < spliceAt {
				spliceAt = len(kept)
			}
			continue
		}
		kept = append(kept, entry)
	}

	rebuilt := make([]orderedEntry, 0, len(kept)+len(entries))
	rebuilt = append(rebuilt, kept[:spliceAt]...)
	rebuilt = append(rebuilt, entries...)
	rebuilt = append(rebuilt, kept[spliceAt:]...)
	a.ordered = rebuilt
}

func (a *Assembler) hasEntries(messageID string) bool {
	for _, entry := range a.ordered {
		if entry.messageID == messageID {
			return true
		}
	}
	return false
}

// rebuild recomputes a message's part list and flattened content, then stores
// and announces a fresh snapshot. Stored messages are never mutated in place:
// the registry hands them to concurrent readers.
func (a *Assembler) rebuild(messageID string) {
	proto, exists := a.messages[messageID]
	if !exists {
		proto = &types.Message{
			ID:        messageID,
			Role:      types.RoleAssistant,
			CreatedAt: time.Now(),
		}
		a.messages[messageID] = proto
	}

	var parts []types.Part
	for _, entry := range a.ordered {
		if entry.messageID != messageID {
			continue
		}
		if entry.thinking != nil {
			parts = append(parts, entry.thinking)
			continue
		}
		// Tracker parts keep changing as results merge; the snapshot gets a
		// detached copy reflecting the current state.
		if tool, ok := a.tracker.GetTool(entry.callID); ok {
			parts = append(parts, tool.Clone())
		}
	}

	var content strings.Builder
	for _, text := range a.textParts[messageID] {
		content.WriteString(text.Text)
		parts = append(parts, text)
	}

	snapshot := &types.Message{
		ID:        proto.ID,
		Role:      proto.Role,
		CreatedAt: proto.CreatedAt,
		Parts:     parts,
		Content:   content.String(),
	}
	a.registry.UpsertMessage(a.sessionID, snapshot)
	a.notify(snapshot)
}

func upstreamMessageID(uuid, innerID string) string {
	if uuid != "" {
		return uuid
	}
	if innerID != "" {
		return innerID
	}
	return generateID()
}

// mcpInfo extracts MCP origin metadata from a namespaced tool name of the
// form mcp__<server>__<tool>.
func mcpInfo(toolName string) *types.MCPToolInfo {
	if !strings.HasPrefix(toolName, "mcp__") {
		return nil
	}
	rest := strings.TrimPrefix(toolName, "mcp__")
	server, _, ok := strings.Cut(rest, "__")
	if !ok {
		return nil
	}
	return &types.MCPToolInfo{Server: server}
}
