package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/pending"
	"github.com/agentdeck/agentdeck/pkg/types"
)

// planModeReminder is prepended to the prompt sent to the backend when plan
// mode is requested. It is transport-level text: the user-visible message
// stored on the session never contains it.
const planModeReminder = "<system-reminder>Plan mode is active. Do not make any changes yet. " +
	"Research the task, present a plan, and request plan approval before implementing.</system-reminder>\n\n"

const defaultPlanTimeout = 5 * time.Minute

// ConfigSource resolves MCP server and plugin definitions for a directory.
type ConfigSource interface {
	Resolve(directory string) (*config.Resolved, error)
}

type loaderConfigSource struct{}

func (loaderConfigSource) Resolve(directory string) (*config.Resolved, error) {
	return config.Load(directory)
}

// Attachment is a file reference included with a prompt.
type Attachment struct {
	Path      string `json:"path"`
	MediaType string `json:"mediaType,omitempty"`
}

// PromptOptions configures one SendPrompt call.
type PromptOptions struct {
	Directory      string
	Model          string
	PermissionMode agent.PermissionMode
	Attachments    []Attachment
}

// Orchestrator owns session state, drives the backend query loop and
// implements the human-approval protocol.
type Orchestrator struct {
	registry *Registry
	bus      *event.Bus
	querier  agent.Querier
	configs  ConfigSource

	questions     *pending.Table[[]types.Question, map[string]string]
	planApprovals *pending.Table[string, types.PlanDecision]

	planTimeout time.Duration
	log         zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfigSource overrides where MCP server and plugin definitions come from.
func WithConfigSource(src ConfigSource) Option {
	return func(o *Orchestrator) { o.configs = src }
}

// WithPlanTimeout overrides the plan-approval timeout.
func WithPlanTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.planTimeout = d }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(registry *Registry, bus *event.Bus, querier agent.Querier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:      registry,
		bus:           bus,
		querier:       querier,
		configs:       loaderConfigSource{},
		questions:     pending.NewTable[[]types.Question, map[string]string](),
		planApprovals: pending.NewTable[string, types.PlanDecision](),
		planTimeout:   defaultPlanTimeout,
		log:           logging.Component("session"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the session registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// SendPrompt runs one turn to completion, cancellation or error. Callers that
// want fire-and-forget semantics run it in a goroutine; results arrive via
// notifications either way.
func (o *Orchestrator) SendPrompt(ctx context.Context, sessionID, prompt string, opts PromptOptions) error {
	turnCtx, cancel := context.WithCancel(ctx)

	session, err := o.registry.BeginTurn(sessionID, cancel)
	if err != nil {
		cancel()
		return err
	}

	o.publish(event.SessionUpdated, sessionID, event.SessionUpdatedData{Info: session})

	priorMessages, _ := o.registry.Messages(sessionID)
	firstPrompt := len(priorMessages) == 0

	visible := prompt + attachmentTags(opts.Attachments)
	userMsg := buildUserMessage(visible, opts.Attachments)
	o.registry.AppendMessage(sessionID, userMsg)

	// The user message notification is held back until the backend's init
	// event has been published, so subscribers see init before any message
	// traffic. It flushes before any other event regardless.
	userNotified := false
	flushUser := func() {
		if userNotified {
			return
		}
		userNotified = true
		o.publish(event.MessageUpdated, sessionID, event.MessageUpdatedData{SessionID: sessionID, Info: userMsg})
	}

	if firstPrompt && isDefaultTitle(session.Title) && o.registry.MarkTitleStarted(sessionID) {
		go o.generateTitle(sessionID, prompt)
	}

	resolved, err := o.configs.Resolve(opts.Directory)
	if err != nil {
		// The user message is already stored; announce it before the failure
		// so subscribers never see an error for a message they never saw.
		flushUser()
		return o.failTurn(sessionID, fmt.Errorf("resolve config: %w", err))
	}

	mode := opts.PermissionMode
	if mode == "" {
		mode = agent.PermissionModeDefault
	}
	backendPrompt := visible
	planRequested := mode == agent.PermissionModePlan
	if planRequested {
		// The backend's native plan mode is not used: the planning gate is
		// reimplemented in the permission callback, and the backend runs in
		// its most permissive mode so the callback sees every tool call.
		backendPrompt = planModeReminder + visible
		mode = agent.PermissionModeBypass
	}

	tracker := NewTracker()
	asm := NewAssembler(sessionID, o.registry, tracker, func(msg *types.Message) {
		o.publish(event.MessageUpdated, sessionID, event.MessageUpdatedData{SessionID: sessionID, Info: msg})
	})

	events, err := o.querier.Query(turnCtx, backendPrompt, agent.QueryOptions{
		CWD:            opts.Directory,
		Model:          opts.Model,
		PermissionMode: mode,
		Resume:         session.ResumeToken,
		MCPServers:     resolved.MCPServers,
		Plugins:        resolved.Plugins,
		CanUseTool:     o.makeCanUseTool(turnCtx, sessionID),
	})
	if err != nil {
		flushUser()
		return o.failTurn(sessionID, fmt.Errorf("start query: %w", err))
	}

	wd := newWatchdog(o.log, sessionID)
	defer wd.Stop()

	activeTasks := make(map[string]bool)
	var resultErr *string
	var streamErr error

	for ev := range events {
		wd.Kick()
		switch e := ev.(type) {
		case agent.SystemEvent:
			switch e.Subtype {
			case agent.SystemSubtypeInit:
				o.handleInit(sessionID, e)
				flushUser()
			case agent.SystemSubtypeCompactBoundary:
				flushUser()
				data := event.SystemCompactData{SessionID: sessionID}
				if e.CompactMetadata != nil {
					data.Trigger = e.CompactMetadata.Trigger
					data.PreTokens = e.CompactMetadata.PreTokens
					data.PostTokens = e.CompactMetadata.PostTokens
				}
				o.publish(event.SystemCompact, sessionID, data)
			default:
				flushUser()
				o.publish(event.SystemMessage, sessionID, event.SystemMessageData{
					SessionID: sessionID,
					Subtype:   e.Subtype,
					Message:   e.Message,
				})
			}
		case agent.AssistantEvent:
			flushUser()
			for _, id := range asm.HandleAssistant(e) {
				activeTasks[id] = true
			}
		case agent.UserEvent:
			flushUser()
			for _, id := range asm.HandleUser(e) {
				delete(activeTasks, id)
			}
		case agent.ResultEvent:
			if e.IsError || (e.Subtype != "" && e.Subtype != agent.ResultSubtypeSuccess) {
				// A non-success terminal event is a normal end state, not an
				// exception: record the text, keep going to stream close.
				text := e.Result
				if text == "" {
					text = "turn ended with subtype " + e.Subtype
				}
				resultErr = &text
			}
		case agent.ErrorEvent:
			streamErr = e.Err
		}
		// Unrecognized and streaming-partial events are ignored: full
		// messages are authoritative.
	}

	if turnCtx.Err() != nil {
		// Aborted mid-stream. Abort already reset the status, rejected
		// pending requests and emitted session.idle; partial message state
		// stays as built.
		return nil
	}
	if streamErr != nil {
		return o.failTurn(sessionID, streamErr)
	}

	flushUser()
	o.registry.EndTurn(sessionID, types.StatusIdle, resultErr)
	o.publish(event.SessionIdle, sessionID, event.SessionIdleData{SessionID: sessionID})
	return nil
}

// failTurn records an error outcome. The caller of SendPrompt sees the same
// text that lands on the session and in the session.error notification.
func (o *Orchestrator) failTurn(sessionID string, err error) error {
	text := err.Error()
	o.registry.EndTurn(sessionID, types.StatusError, &text)
	o.publish(event.SessionError, sessionID, event.SessionErrorData{SessionID: sessionID, Error: text})
	return err
}

func (o *Orchestrator) handleInit(sessionID string, e agent.SystemEvent) {
	if e.SessionID != "" {
		o.registry.SetResumeToken(sessionID, e.SessionID)
	}

	init := &types.SessionInitData{
		Model:         e.Model,
		CWD:           e.CWD,
		SlashCommands: e.SlashCommands,
	}
	for _, srv := range e.MCPServers {
		// Plugin-backed servers report under a marker name; they belong in
		// the plugin status list.
		if name, isPlugin := strings.CutPrefix(srv.Name, "plugin:"); isPlugin {
			init.Plugins = append(init.Plugins, types.PluginStatus{Name: name, Status: srv.Status})
			continue
		}
		init.MCPServers = append(init.MCPServers, types.MCPServerStatus{Name: srv.Name, Status: srv.Status})
	}
	for _, p := range e.Plugins {
		init.Plugins = append(init.Plugins, types.PluginStatus{Name: p.Name, Status: "loaded"})
	}

	o.registry.SetInit(sessionID, init)
	o.publish(event.SessionInit, sessionID, event.SessionInitData{SessionID: sessionID, Init: init})
}

// Abort cancels a running turn, rejects the session's pending approval
// requests and returns the session to idle. Returns false if nothing was
// running.
func (o *Orchestrator) Abort(sessionID string) bool {
	cancel := o.registry.TakeCancel(sessionID)
	if cancel == nil {
		return false
	}
	cancel()

	o.rejectPending(sessionID, ErrSessionTerminated)
	o.registry.EndTurn(sessionID, types.StatusIdle, nil)
	o.publish(event.SessionIdle, sessionID, event.SessionIdleData{SessionID: sessionID, Aborted: true})
	return true
}

// Delete cancels any in-flight turn, rejects pending requests and removes
// the session. Pending waiters observe a rejection, never a silent drop.
func (o *Orchestrator) Delete(sessionID string) error {
	if _, err := o.registry.Get(sessionID); err != nil {
		return err
	}
	if cancel := o.registry.TakeCancel(sessionID); cancel != nil {
		cancel()
	}
	o.rejectPending(sessionID, ErrSessionTerminated)
	return o.registry.Delete(sessionID)
}

func (o *Orchestrator) rejectPending(sessionID string, reason error) {
	if n := o.questions.RemoveAllForOwner(sessionID, reason); n > 0 {
		o.log.Debug().Str("sessionID", sessionID).Int("count", n).Msg("rejected pending questions")
	}
	if n := o.planApprovals.RemoveAllForOwner(sessionID, reason); n > 0 {
		o.log.Debug().Str("sessionID", sessionID).Int("count", n).Msg("rejected pending plan approvals")
	}
}

// AnswerQuestion resolves a pending question with answers keyed by question
// label. Returns false if the request is unknown or already settled.
func (o *Orchestrator) AnswerQuestion(requestID string, answers map[string]string) bool {
	req, known := o.questions.Get(requestID)
	if !known || !o.questions.Resolve(requestID, answers) {
		return false
	}
	o.publish(event.QuestionAnswered, req.OwnerID, event.QuestionAnsweredData{
		RequestID: requestID,
		SessionID: req.OwnerID,
		Answers:   answers,
	})
	return true
}

// DismissQuestion rejects a pending question without an answer.
func (o *Orchestrator) DismissQuestion(requestID string) bool {
	req, known := o.questions.Get(requestID)
	if !known || !o.questions.Reject(requestID, ErrQuestionDismissed) {
		return false
	}
	o.publish(event.QuestionAnswered, req.OwnerID, event.QuestionAnsweredData{
		RequestID: requestID,
		SessionID: req.OwnerID,
		Dismissed: true,
	})
	return true
}

// RespondPlanApproval settles a pending plan approval.
func (o *Orchestrator) RespondPlanApproval(requestID string, approved bool, feedback string) bool {
	req, known := o.planApprovals.Get(requestID)
	if !known || !o.planApprovals.Resolve(requestID, types.PlanDecision{Approved: approved, Feedback: feedback}) {
		return false
	}
	o.publish(event.PlanApprovalResponded, req.OwnerID, event.PlanApprovalRespondedData{
		RequestID: requestID,
		SessionID: req.OwnerID,
		Approved:  approved,
		Feedback:  feedback,
	})
	return true
}

// PendingQuestions lists unanswered questions, optionally filtered by session
// ("" = all).
func (o *Orchestrator) PendingQuestions(sessionID string) []types.PendingQuestion {
	reqs := o.questions.List(sessionID)
	out := make([]types.PendingQuestion, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, types.PendingQuestion{
			RequestID:  req.ID,
			SessionID:  req.OwnerID,
			ToolCallID: req.ToolCallID,
			Questions:  req.Payload,
		})
	}
	return out
}

// PendingPlanApprovals lists unresolved plan approvals, optionally filtered
// by session ("" = all).
func (o *Orchestrator) PendingPlanApprovals(sessionID string) []types.PendingPlanApproval {
	reqs := o.planApprovals.List(sessionID)
	out := make([]types.PendingPlanApproval, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, types.PendingPlanApproval{
			RequestID:  req.ID,
			SessionID:  req.OwnerID,
			ToolCallID: req.ToolCallID,
			Plan:       req.Payload,
		})
	}
	return out
}

// GetInit returns the backend init snapshot captured for a session.
func (o *Orchestrator) GetInit(sessionID string) (*types.SessionInitData, error) {
	session, err := o.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Init, nil
}

// ListMessages returns a session's messages.
func (o *Orchestrator) ListMessages(sessionID string) ([]*types.Message, error) {
	return o.registry.Messages(sessionID)
}

// ListModels enumerates the backend's supported models.
func (o *Orchestrator) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	return o.querier.ListModels(ctx)
}

func (o *Orchestrator) publish(t event.Type, sessionID string, data any) {
	o.bus.PublishSync(event.Event{Type: t, SessionID: sessionID, Data: data})
}

func attachmentTags(attachments []Attachment) string {
	var b strings.Builder
	for _, att := range attachments {
		b.WriteString(fmt.Sprintf("\n\n[attachment: %s]", att.Path))
	}
	return b.String()
}

func buildUserMessage(content string, attachments []Attachment) *types.Message {
	msg := &types.Message{
		ID:        generateID(),
		Role:      types.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	msg.Parts = append(msg.Parts, &types.TextPart{
		Type:      types.PartTypeText,
		Text:      content,
		MessageID: msg.ID,
	})
	for _, att := range attachments {
		msg.Parts = append(msg.Parts, &types.FilePart{
			Type:      types.PartTypeFile,
			Path:      att.Path,
			MediaType: att.MediaType,
			MessageID: msg.ID,
		})
	}
	return msg
}
