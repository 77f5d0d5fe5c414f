package e2e_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentdeck/agentdeck/citest/testutil"
	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/pkg/types"
)

var _ = Describe("Turn Lifecycle", func() {
	var h *testutil.Harness

	AfterEach(func() {
		if h != nil {
			h.Close()
		}
	})

	Describe("a simple successful turn", func() {
		BeforeEach(func() {
			h = testutil.NewHarness(testutil.SimpleTurn("backend-1", "m1", "Hello there."))
		})

		It("publishes notifications in mutation order", func() {
			created := h.Registry.Create("Ordering")

			err := h.Orchestrator.SendPrompt(context.Background(), created.ID, "hi", session.PromptOptions{})
			Expect(err).NotTo(HaveOccurred())

			seen := h.Events.Types()
			Expect(seen[0]).To(Equal(event.SessionUpdated))
			Expect(seen).To(ContainElements(event.SessionInit, event.MessageUpdated, event.SessionIdle))

			// init lands before any message traffic, and the user message
			// before the assistant's.
			initIdx, firstMsgIdx := -1, -1
			for i, t := range seen {
				if t == event.SessionInit && initIdx == -1 {
					initIdx = i
				}
				if t == event.MessageUpdated && firstMsgIdx == -1 {
					firstMsgIdx = i
				}
			}
			Expect(initIdx).To(BeNumerically(">=", 0))
			Expect(firstMsgIdx).To(BeNumerically(">", initIdx))

			updates := h.Events.OfType(event.MessageUpdated)
			Expect(len(updates)).To(BeNumerically(">=", 2))
			first := updates[0].Data.(event.MessageUpdatedData)
			Expect(first.Info.Role).To(Equal(types.RoleUser))
			last := updates[len(updates)-1].Data.(event.MessageUpdatedData)
			Expect(last.Info.Role).To(Equal(types.RoleAssistant))
			Expect(last.Info.Content).To(Equal("Hello there."))
		})

		It("captures the resume token and init snapshot", func() {
			created := h.Registry.Create("Init")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "hi", session.PromptOptions{})).To(Succeed())

			got, err := h.Registry.Get(created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ResumeToken).To(Equal("backend-1"))
			Expect(got.Init).NotTo(BeNil())
			Expect(got.Init.Model).To(Equal("default"))
			Expect(got.Status).To(Equal(types.StatusIdle))
		})
	})

	Describe("resumed turns", func() {
		It("passes the captured token to the next query", func() {
			h = testutil.NewHarness(
				testutil.SimpleTurn("backend-1", "m1", "first"),
				testutil.SimpleTurn("ignored", "m2", "second"),
			)
			created := h.Registry.Create("Resume")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "one", session.PromptOptions{})).To(Succeed())
			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "two", session.PromptOptions{})).To(Succeed())

			Expect(h.Querier.Options[0].Resume).To(BeEmpty())
			Expect(h.Querier.Options[1].Resume).To(Equal("backend-1"))

			// The token is set once; a later init event does not replace it.
			got, _ := h.Registry.Get(created.ID)
			Expect(got.ResumeToken).To(Equal("backend-1"))
		})
	})

	Describe("streaming reconciliation", func() {
		It("replaces content when the backend re-sends a message id", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				testutil.Emit(testutil.AssistantText("m1", "partial")),
				testutil.Emit(testutil.AssistantText("m1", "partial and complete")),
				testutil.Emit(testutil.SuccessResult()),
			})
			created := h.Registry.Create("Replace")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "go", session.PromptOptions{})).To(Succeed())

			messages, err := h.Orchestrator.ListMessages(created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(2)) // user + one assistant message
			Expect(messages[1].Content).To(Equal("partial and complete"))
		})

		It("merges tool results into the originating tool part", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				testutil.Emit(testutil.AssistantBlocks("m1", testutil.ToolUse("c1", "Read", map[string]any{"file_path": "a.go"}))),
				testutil.Emit(testutil.ToolResult("c1", "package main", false)),
				testutil.Emit(testutil.SuccessResult()),
			})
			created := h.Registry.Create("Merge")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "read it", session.PromptOptions{})).To(Succeed())

			messages, _ := h.Orchestrator.ListMessages(created.ID)
			Expect(messages).To(HaveLen(2))
			tool := messages[1].Parts[0].(*types.ToolPart)
			Expect(tool.State).To(Equal(types.ToolStateSuccess))
			Expect(*tool.Output).To(Equal("package main"))
		})

		It("groups tools under a task across upstream message boundaries", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				testutil.Emit(testutil.AssistantBlocks("m1", testutil.ToolUse("t1", "Task", map[string]any{"description": "explore"}))),
				testutil.Emit(testutil.AssistantBlocks("m2", testutil.ToolUse("c1", "Grep", nil))),
				testutil.Emit(testutil.ToolResult("c1", "found", false)),
				testutil.Emit(testutil.ToolResult("t1", "done", false)),
				testutil.Emit(testutil.SuccessResult()),
			})
			created := h.Registry.Create("Grouping")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "explore", session.PromptOptions{})).To(Succeed())

			messages, _ := h.Orchestrator.ListMessages(created.ID)
			var parts []types.Part
			for _, msg := range messages[1:] {
				parts = append(parts, msg.Parts...)
			}
			items := session.GroupParts(parts)
			Expect(items).To(HaveLen(1))
			Expect(items[0].IsTaskGroup()).To(BeTrue())
			Expect(items[0].Children).To(HaveLen(1))
			Expect(items[0].Children[0].CallID).To(Equal("c1"))
		})
	})

	Describe("failure outcomes", func() {
		It("records a non-success result as idle with a last error", func() {
			h = testutil.NewHarness([]agent.Step{
				testutil.Emit(testutil.InitEvent("b")),
				testutil.Emit(testutil.ErrorResult("ran out of budget")),
			})
			created := h.Registry.Create("Budget")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "go", session.PromptOptions{})).To(Succeed())

			got, _ := h.Registry.Get(created.ID)
			Expect(got.Status).To(Equal(types.StatusIdle))
			Expect(got.LastError).NotTo(BeNil())
			Expect(*got.LastError).To(Equal("ran out of budget"))
			Expect(h.Events.OfType(event.SessionError)).To(BeEmpty())
		})

		It("rejects a second prompt while one is running", func() {
			h = testutil.NewHarness([]agent.Step{
				agent.PermissionStep{
					ToolName: "AskUserQuestion",
					Input:    map[string]any{"question": "Block?"},
					CallID:   "q1",
				},
			})
			created := h.Registry.Create("Busy")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "first", session.PromptOptions{})
			}()

			_, ok := h.Events.WaitFor(event.QuestionAsked, 2*time.Second)
			Expect(ok).To(BeTrue())

			err := h.Orchestrator.SendPrompt(context.Background(), created.ID, "second", session.PromptOptions{})
			Expect(err).To(MatchError(session.ErrSessionBusy))

			Expect(h.Orchestrator.Abort(created.ID)).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})
	})

	Describe("abort", func() {
		It("rejects pending approvals and settles the session idle", func() {
			h = testutil.NewHarness([]agent.Step{
				agent.PermissionStep{
					ToolName: "AskUserQuestion",
					Input:    map[string]any{"question": "Wait?"},
					CallID:   "q1",
				},
			})
			created := h.Registry.Create("Abort")

			done := make(chan error, 1)
			go func() {
				done <- h.Orchestrator.SendPrompt(context.Background(), created.ID, "go", session.PromptOptions{})
			}()

			_, ok := h.Events.WaitFor(event.QuestionAsked, 2*time.Second)
			Expect(ok).To(BeTrue())
			Expect(h.Orchestrator.PendingQuestions(created.ID)).To(HaveLen(1))

			Expect(h.Orchestrator.Abort(created.ID)).To(BeTrue())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			idle, ok := h.Events.WaitFor(event.SessionIdle, 2*time.Second)
			Expect(ok).To(BeTrue())
			Expect(idle.Data.(event.SessionIdleData).Aborted).To(BeTrue())

			Expect(h.Orchestrator.PendingQuestions(created.ID)).To(BeEmpty())
			got, _ := h.Registry.Get(created.ID)
			Expect(got.Status).To(Equal(types.StatusIdle))

			// Nothing left to abort.
			Expect(h.Orchestrator.Abort(created.ID)).To(BeFalse())
		})
	})

	Describe("title generation", func() {
		It("derives a title from the first prompt exactly once", func() {
			h = testutil.NewHarness(
				testutil.SimpleTurn("b", "m1", "one"),
				testutil.SimpleTurn("b", "m2", "two"),
			)
			created := h.Registry.Create("")

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "refactor the config loader", session.PromptOptions{})).To(Succeed())

			Eventually(func() string {
				got, _ := h.Registry.Get(created.ID)
				return got.Title
			}, 2*time.Second).Should(Equal("refactor the config loader"))

			Expect(h.Orchestrator.SendPrompt(context.Background(), created.ID, "completely different prompt", session.PromptOptions{})).To(Succeed())

			Consistently(func() string {
				got, _ := h.Registry.Get(created.ID)
				return got.Title
			}, 200*time.Millisecond).Should(Equal("refactor the config loader"))
		})
	})
})
