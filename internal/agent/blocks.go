package agent

import "encoding/json"

// ContentBlockType discriminates message content block kinds.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeThinking   ContentBlockType = "thinking"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ContentBlock is the interface for all content block kinds.
type ContentBlock interface {
	BlockType() ContentBlockType
}

// TextBlock is a plain text block.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BlockType returns the block type.
func (b TextBlock) BlockType() ContentBlockType { return ContentBlockTypeText }

// ThinkingBlock carries the model's reasoning.
type ThinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

// BlockType returns the block type.
func (b ThinkingBlock) BlockType() ContentBlockType { return ContentBlockTypeThinking }

// ToolUseBlock is a tool invocation.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// BlockType returns the block type.
func (b ToolUseBlock) BlockType() ContentBlockType { return ContentBlockTypeToolUse }

// ToolResultBlock is a tool result echoed back in a user event.
type ToolResultBlock struct {
	Type      string          `json:"type"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
}

// BlockType returns the block type.
func (b ToolResultBlock) BlockType() ContentBlockType { return ContentBlockTypeToolResult }

// ContentText flattens the result content to a string. The wire value is
// either a bare string or an array of {type:"text", text} objects; anything
// else renders as its raw JSON.
func (b ToolResultBlock) ContentText() string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var items []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b.Content, &items); err == nil {
		out := ""
		for _, item := range items {
			if item.Type == "text" {
				out += item.Text
			}
		}
		return out
	}
	return string(b.Content)
}

// UnmarshalContentBlock decodes one block by its type tag. Unknown types
// return (nil, nil) so new upstream block kinds never break a stream.
func UnmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var probe struct {
		Type ContentBlockType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case ContentBlockTypeText:
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeThinking:
		var b ThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeToolUse:
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case ContentBlockTypeToolResult:
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, nil
	}
}

// ContentBlocks is a slice of content blocks that skips unknown types
// when decoding.
type ContentBlocks []ContentBlock

// UnmarshalJSON implements json.Unmarshaler.
func (cb *ContentBlocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	blocks := make(ContentBlocks, 0, len(raws))
	for _, raw := range raws {
		block, err := UnmarshalContentBlock(raw)
		if err != nil {
			return err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	*cb = blocks
	return nil
}
