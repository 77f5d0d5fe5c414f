package e2e_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentdeck/agentdeck/citest/testutil"
	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/session"
)

var _ = Describe("Approval Protocol", func() {
	var h *testutil.Harness

	AfterEach(func() {
		if h != nil {
			h.Close()
		}
	})

	Describe("questions", func() {
		It("holds the tool call until the user answers", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				agent.PermissionStep{
					ToolName: "AskUserQuestion",
					Input:    map[string]any{"question": "Which region?"},
					CallID:   "q1",
					OnAllow: []agent.Event{
						testutil.AssistantText("m1", "Deploying to the chosen region."),
						testutil.SuccessResult(),
					},
					OnDeny: []agent.Event{testutil.SuccessResult()},
				},
			})
			created := h.Registry.Create("Questions")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "deploy", session.PromptOptions{})
			}()

			asked, ok := h.Events.WaitFor(event.QuestionAsked, 2*time.Second)
			Expect(ok).To(BeTrue())
			data := asked.Data.(event.QuestionAskedData)
			Expect(data.Questions[0].Question).To(Equal("Which region?"))

			Expect(h.Orchestrator.AnswerQuestion(data.RequestID, map[string]string{"Which region?": "eu-west"})).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			messages, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(messages[len(messages)-1].Content).To(Equal("Deploying to the chosen region."))
		})

		It("denies the tool call when the question is dismissed", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				agent.PermissionStep{
					ToolName: "AskUserQuestion",
					Input:    map[string]any{"question": "Proceed?"},
					CallID:   "q1",
					OnAllow:  []agent.Event{testutil.AssistantText("m1", "allowed"), testutil.SuccessResult()},
					OnDeny:   []agent.Event{testutil.AssistantText("m1", "denied"), testutil.SuccessResult()},
				},
			})
			created := h.Registry.Create("Dismiss")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "try", session.PromptOptions{})
			}()

			asked, ok := h.Events.WaitFor(event.QuestionAsked, 2*time.Second)
			Expect(ok).To(BeTrue())
			requestID := asked.Data.(event.QuestionAskedData).RequestID

			Expect(h.Orchestrator.DismissQuestion(requestID)).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			messages, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(messages[len(messages)-1].Content).To(Equal("denied"))

			answered, ok := h.Events.WaitFor(event.QuestionAnswered, time.Second)
			Expect(ok).To(BeTrue())
			Expect(answered.Data.(event.QuestionAnsweredData).Dismissed).To(BeTrue())
		})
	})

	Describe("plan mode", func() {
		planScript := func() []agent.Step {
			return []agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				agent.PermissionStep{
					ToolName: "ExitPlanMode",
					Input:    map[string]any{"plan": "1. audit\n2. refactor"},
					CallID:   "p1",
					OnAllow:  []agent.Event{testutil.AssistantText("m1", "implementing"), testutil.SuccessResult()},
					OnDeny:   []agent.Event{testutil.AssistantText("m1", "revising plan"), testutil.SuccessResult()},
				},
			}
		}

		It("translates plan mode and gates on approval", func() {
			h = testutil.NewHarness(planScript())
			created := h.Registry.Create("Plan")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "improve the parser", session.PromptOptions{
					PermissionMode: agent.PermissionModePlan,
				})
			}()

			requested, ok := h.Events.WaitFor(event.PlanApprovalRequested, 2*time.Second)
			Expect(ok).To(BeTrue())
			data := requested.Data.(event.PlanApprovalRequestedData)
			Expect(data.Plan).To(ContainSubstring("refactor"))

			// The backend saw the most permissive mode and a transport-level
			// reminder; the stored user message stays clean.
			Expect(h.Querier.Options[0].PermissionMode).To(Equal(agent.PermissionModeBypass))
			Expect(strings.HasPrefix(h.Querier.Prompts[0], "<system-reminder>")).To(BeTrue())
			messages, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(messages[0].Content).To(Equal("improve the parser"))

			Expect(h.Orchestrator.RespondPlanApproval(data.RequestID, true, "")).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			_, ok = h.Events.WaitFor(event.PlanExitRequested, time.Second)
			Expect(ok).To(BeTrue())
			final, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(final[len(final)-1].Content).To(Equal("implementing"))
		})

		It("feeds rejection feedback back to the agent", func() {
			h = testutil.NewHarness(planScript())
			created := h.Registry.Create("Reject")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "improve the parser", session.PromptOptions{
					PermissionMode: agent.PermissionModePlan,
				})
			}()

			requested, ok := h.Events.WaitFor(event.PlanApprovalRequested, 2*time.Second)
			Expect(ok).To(BeTrue())
			requestID := requested.Data.(event.PlanApprovalRequestedData).RequestID

			Expect(h.Orchestrator.RespondPlanApproval(requestID, false, "too invasive")).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			messages, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(messages[len(messages)-1].Content).To(Equal("revising plan"))

			responded, ok := h.Events.WaitFor(event.PlanApprovalResponded, time.Second)
			Expect(ok).To(BeTrue())
			Expect(responded.Data.(event.PlanApprovalRespondedData).Feedback).To(Equal("too invasive"))
		})
	})
})
