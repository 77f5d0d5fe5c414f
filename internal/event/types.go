package event

import "github.com/agentdeck/agentdeck/pkg/types"

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionIdleData is the data for session.idle events.
type SessionIdleData struct {
	SessionID string `json:"sessionID"`
	Aborted   bool   `json:"aborted,omitempty"`
}

// SessionErrorData is the data for session.error events.
type SessionErrorData struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
}

// SessionInitData is the data for session.init events.
type SessionInitData struct {
	SessionID string                 `json:"sessionID"`
	Init      *types.SessionInitData `json:"init"`
}

// SessionTitleUpdatedData is the data for session.title-updated events.
type SessionTitleUpdatedData struct {
	SessionID string `json:"sessionID"`
	Title     string `json:"title"`
}

// MessageUpdatedData is the data for message.updated events.
type MessageUpdatedData struct {
	SessionID string         `json:"sessionID"`
	Info      *types.Message `json:"info"`
}

// QuestionAskedData is the data for question.asked events.
type QuestionAskedData struct {
	RequestID string           `json:"requestID"`
	SessionID string           `json:"sessionID"`
	Questions []types.Question `json:"questions"`
}

// QuestionAnsweredData is the data for question.answered events.
type QuestionAnsweredData struct {
	RequestID string            `json:"requestID"`
	SessionID string            `json:"sessionID"`
	Answers   map[string]string `json:"answers,omitempty"`
	Dismissed bool              `json:"dismissed,omitempty"`
}

// PlanEnterRequestedData is the data for plan.enter-requested events.
type PlanEnterRequestedData struct {
	SessionID string `json:"sessionID"`
}

// PlanExitRequestedData is the data for plan.exit-requested events.
type PlanExitRequestedData struct {
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
}

// PlanApprovalRequestedData is the data for plan.approval-requested events.
type PlanApprovalRequestedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Plan      string `json:"plan,omitempty"`
}

// PlanApprovalRespondedData is the data for plan.approval-responded events.
type PlanApprovalRespondedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Approved  bool   `json:"approved"`
	Feedback  string `json:"feedback,omitempty"`
}

// SystemCompactData is the data for system.compact events.
type SystemCompactData struct {
	SessionID  string `json:"sessionID"`
	Trigger    string `json:"trigger,omitempty"`
	PreTokens  int    `json:"preTokens"`
	PostTokens int    `json:"postTokens"`
}

// SystemMessageData is the data for system.message events.
type SystemMessageData struct {
	SessionID string `json:"sessionID"`
	Subtype   string `json:"subtype,omitempty"`
	Message   string `json:"message,omitempty"`
}
