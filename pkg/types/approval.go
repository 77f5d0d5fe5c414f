package types

// Question is one question the agent wants the user to answer before it
// proceeds with a tool call.
type Question struct {
	Question    string           `json:"question"`
	Header      string           `json:"header,omitempty"`
	Options     []QuestionOption `json:"options,omitempty"`
	MultiSelect bool             `json:"multiSelect,omitempty"`
}

// QuestionOption is one selectable answer for a question.
type QuestionOption struct {
	Label string `json:"label"`
}

// PendingQuestion is an unanswered question request awaiting an external actor.
type PendingQuestion struct {
	RequestID  string     `json:"requestID"`
	SessionID  string     `json:"sessionID"`
	ToolCallID string     `json:"toolCallID,omitempty"`
	Questions  []Question `json:"questions"`
}

// PendingPlanApproval is an unanswered plan-approval request.
type PendingPlanApproval struct {
	RequestID  string `json:"requestID"`
	SessionID  string `json:"sessionID"`
	ToolCallID string `json:"toolCallID,omitempty"`
	Plan       string `json:"plan,omitempty"`
}

// PlanDecision is an external actor's response to a plan-approval request.
type PlanDecision struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}
