package session

import (
	"strings"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// GroupedItem is one rendered item: either a standalone part, or a Task tool
// invocation with the ordinary tool calls attributed to it. Groups are a
// derived view; they are never stored on a message.
type GroupedItem struct {
	Part     types.Part        `json:"part"`
	Children []*types.ToolPart `json:"children,omitempty"`
}

// IsTaskGroup reports whether the item is a Task (sub-agent) group.
func (g *GroupedItem) IsTaskGroup() bool {
	tool, ok := g.Part.(*types.ToolPart)
	return ok && isTaskTool(tool.ToolName)
}

func isTaskTool(name string) bool {
	return strings.EqualFold(name, types.TaskToolName)
}

// GroupParts attributes non-Task tool invocations to their owning Task in a
// single left-to-right pass. A tool's parent resolves in this order: its
// explicit parent-task call ID if that Task is known, else the most recent
// Task in the current contiguous run of tool parts, else standalone.
//
// Thinking, text and file parts sever the positional anchor but not the
// explicit-parent map, so late explicit links still resolve. Nested Tasks are
// each their own top-level group; Task groups never nest. Output order equals
// input order of group-initiating items.
func GroupParts(parts []types.Part) []*GroupedItem {
	var items []*GroupedItem
	taskGroups := make(map[string]*GroupedItem)
	var currentTask *GroupedItem

	for _, part := range parts {
		tool, ok := part.(*types.ToolPart)
		if !ok {
			items = append(items, &GroupedItem{Part: part})
			currentTask = nil
			continue
		}

		if isTaskTool(tool.ToolName) {
			group := &GroupedItem{Part: tool}
			items = append(items, group)
			taskGroups[tool.CallID] = group
			currentTask = group
			continue
		}

		if tool.ParentTaskCallID != "" {
			if group, known := taskGroups[tool.ParentTaskCallID]; known {
				group.Children = append(group.Children, tool)
				continue
			}
			// Unknown explicit parent falls through to the positional rule.
		}
		if currentTask != nil {
			currentTask.Children = append(currentTask.Children, tool)
			continue
		}
		items = append(items, &GroupedItem{Part: tool})
	}

	return items
}
