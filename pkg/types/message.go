package types

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn contribution inside a session.
//
// Content is denormalized from the text parts of Parts for simple consumers;
// it is a cache, never a second source of truth.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	if m.Parts != nil {
		c.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			c.Parts[i] = ClonePart(p)
		}
	}
	return &c
}

// TextContent rebuilds the flattened content from the message's text parts.
func (m *Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
