package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalContentBlockUnknownType(t *testing.T) {
	raw := json.RawMessage(`{"type":"server_tool_use","id":"srv_1","name":"fetch"}`)

	block, err := UnmarshalContentBlock(raw)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestContentBlocksSkipsUnknownTypes(t *testing.T) {
	raw := `[
		{"type":"text","text":"hello"},
		{"type":"server_tool_use","id":"srv_1","name":"fetch"},
		{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}},
		{"type":"image","source":{"type":"base64","data":"..."}}
	]`

	var blocks ContentBlocks
	require.NoError(t, json.Unmarshal([]byte(raw), &blocks))
	require.Len(t, blocks, 2)

	text, ok := blocks[0].(TextBlock)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)

	tool, ok := blocks[1].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", tool.ID)
	assert.Equal(t, "Bash", tool.Name)
	assert.Equal(t, "ls", tool.Input["command"])
}

func TestToolResultContentText(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"string", `"plain output"`, "plain output"},
		{"blocks", `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, "ab"},
		{"mixed blocks", `[{"type":"text","text":"a"},{"type":"image","source":{}}]`, "a"},
		{"empty", ``, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ToolResultBlock{Content: json.RawMessage(tc.content)}
			assert.Equal(t, tc.want, b.ContentText())
		})
	}
}

func TestDecisionHelpers(t *testing.T) {
	allow := NewAllowDecision(nil)
	assert.True(t, allow.Allowed())
	assert.NotNil(t, allow.UpdatedInput)

	deny := NewDenyDecision("not now")
	assert.False(t, deny.Allowed())
	assert.Equal(t, "not now", deny.Message)
}
