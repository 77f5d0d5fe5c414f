package agent

import (
	"context"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// PermissionMode controls how the backend gates tool execution.
type PermissionMode string

const (
	PermissionModeDefault     PermissionMode = "default"
	PermissionModeAcceptEdits PermissionMode = "acceptEdits"
	PermissionModePlan        PermissionMode = "plan"
	PermissionModeBypass      PermissionMode = "bypassPermissions"
)

// ToolMeta accompanies a permission callback with the tool call identity.
type ToolMeta struct {
	CallID string
}

// Decision is the outcome of a permission callback.
type Decision struct {
	Behavior     string         `json:"behavior"`
	UpdatedInput map[string]any `json:"updatedInput,omitempty"`
	Message      string         `json:"message,omitempty"`
	Interrupt    bool           `json:"interrupt,omitempty"`
}

// Allowed reports whether the decision permits the tool call.
func (d Decision) Allowed() bool { return d.Behavior == "allow" }

// NewAllowDecision builds an allow decision. updatedInput must echo the
// original input when no rewrite happened; the wire format rejects null.
func NewAllowDecision(updatedInput map[string]any) Decision {
	if updatedInput == nil {
		updatedInput = map[string]any{}
	}
	return Decision{Behavior: "allow", UpdatedInput: updatedInput}
}

// NewDenyDecision builds a deny decision with a message shown to the model.
func NewDenyDecision(message string) Decision {
	return Decision{Behavior: "deny", Message: message}
}

// CanUseToolFunc is invoked by the backend before each gated tool call.
type CanUseToolFunc func(ctx context.Context, toolName string, input map[string]any, meta ToolMeta) (Decision, error)

// QueryOptions configures one backend turn.
type QueryOptions struct {
	CWD            string
	Model          string
	PermissionMode PermissionMode
	// Resume is the backend session token from a prior turn's init event.
	Resume             string
	MCPServers         map[string]types.MCPServerDef
	Plugins            []types.PluginDef
	AllowedTools       []string
	SystemPromptPreset string
	CanUseTool         CanUseToolFunc
}

// Querier drives the coding-agent backend. Query launches one turn and
// returns its event stream; the channel closes when the turn ends or ctx is
// cancelled. Implementations surface stream failures as a final ErrorEvent.
type Querier interface {
	Query(ctx context.Context, prompt string, opts QueryOptions) (<-chan Event, error)
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	GenerateTitle(ctx context.Context, prompt string) (string, error)
}
