package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/pending"
	"github.com/agentdeck/agentdeck/pkg/types"
)

// Tool names the permission callback recognizes. Everything else passes
// through unchanged.
const (
	askQuestionToolName   = "AskUserQuestion"
	enterPlanModeToolName = "EnterPlanMode"
	exitPlanModeToolName  = "ExitPlanMode"
)

// makeCanUseTool builds the permission callback for one turn. The backend
// invokes it synchronously per tool call and always receives a decision:
// suspended flows settle via the pending tables, a timeout, or session
// termination, never as an unhandled failure.
func (o *Orchestrator) makeCanUseTool(turnCtx context.Context, sessionID string) agent.CanUseToolFunc {
	return func(ctx context.Context, toolName string, input map[string]any, meta agent.ToolMeta) (agent.Decision, error) {
		switch toolName {
		case askQuestionToolName:
			return o.askQuestion(turnCtx, sessionID, input, meta), nil
		case enterPlanModeToolName:
			o.publish(event.PlanEnterRequested, sessionID, event.PlanEnterRequestedData{SessionID: sessionID})
			return agent.NewAllowDecision(input), nil
		case exitPlanModeToolName:
			return o.awaitPlanApproval(turnCtx, sessionID, input, meta), nil
		default:
			return agent.NewAllowDecision(input), nil
		}
	}
}

// askQuestion suspends the tool call until an external actor answers or
// dismisses the question. No timeout: the wait ends only via resolution,
// abort or session deletion.
func (o *Orchestrator) askQuestion(ctx context.Context, sessionID string, input map[string]any, meta agent.ToolMeta) agent.Decision {
	questions := parseQuestions(input)
	requestID := generateID()

	waiter := o.questions.Register(pending.Request[[]types.Question]{
		ID:         requestID,
		OwnerID:    sessionID,
		ToolCallID: meta.CallID,
		Payload:    questions,
	})
	defer o.questions.Remove(requestID)

	o.publish(event.QuestionAsked, sessionID, event.QuestionAskedData{
		RequestID: requestID,
		SessionID: sessionID,
		Questions: questions,
	})

	answers, err := waiter.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrQuestionDismissed) {
			return agent.NewDenyDecision("The user dismissed the question without answering.")
		}
		return agent.NewDenyDecision("The question was not answered: " + err.Error())
	}

	updated := make(map[string]any, len(input)+1)
	for k, v := range input {
		updated[k] = v
	}
	updated["answers"] = answers
	return agent.NewAllowDecision(updated)
}

// awaitPlanApproval races external resolution against the plan timeout.
func (o *Orchestrator) awaitPlanApproval(ctx context.Context, sessionID string, input map[string]any, meta agent.ToolMeta) agent.Decision {
	plan, _ := input["plan"].(string)
	requestID := generateID()

	waiter := o.planApprovals.Register(pending.Request[string]{
		ID:         requestID,
		OwnerID:    sessionID,
		ToolCallID: meta.CallID,
		Payload:    plan,
	})
	defer o.planApprovals.Remove(requestID)

	o.publish(event.PlanApprovalRequested, sessionID, event.PlanApprovalRequestedData{
		RequestID: requestID,
		SessionID: sessionID,
		Plan:      plan,
	})

	waitCtx, cancel := context.WithTimeout(ctx, o.planTimeout)
	defer cancel()

	decision, err := waiter.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Settle through the table so a late response reports failure
			// instead of resolving a decision nobody is waiting for.
			o.planApprovals.Reject(requestID, ErrApprovalTimeout)
			return agent.NewDenyDecision(fmt.Sprintf("Plan approval timed out after %s.", o.planTimeout))
		}
		return agent.NewDenyDecision("Plan approval was not resolved: " + err.Error())
	}

	if decision.Approved {
		o.publish(event.PlanExitRequested, sessionID, event.PlanExitRequestedData{
			SessionID: sessionID,
			RequestID: requestID,
		})
		return agent.NewAllowDecision(input)
	}
	if decision.Feedback != "" {
		return agent.NewDenyDecision("The user rejected the plan with this feedback: " + decision.Feedback)
	}
	return agent.NewDenyDecision("The user rejected the plan. Revise it and request approval again.")
}

// parseQuestions decodes the question set from the tool input. A malformed
// payload degrades to a single free-form question rather than failing the
// tool call.
func parseQuestions(input map[string]any) []types.Question {
	raw, ok := input["questions"]
	if !ok {
		if q, ok := input["question"].(string); ok {
			return []types.Question{{Question: q}}
		}
		return nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var questions []types.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil
	}
	return questions
}
