package e2e_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentdeck/agentdeck/citest/testutil"
	"github.com/agentdeck/agentdeck/pkg/types"
)

var _ = Describe("HTTP Surface", func() {
	var ts *testutil.TestServer

	BeforeEach(func() {
		var err error
		ts, err = testutil.StartTestServer(testutil.SimpleTurn("backend-1", "m1", "All done."))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if ts != nil {
			ts.Stop()
		}
	})

	postJSON := func(path string, body any) *http.Response {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ts.BaseURL+path, "application/json", bytes.NewReader(raw))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("runs a full prompt cycle over REST and SSE", func() {
		// Create a session.
		resp := postJSON("/session", map[string]string{"title": "HTTP run"})
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var created types.Session
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		Expect(created.ID).NotTo(BeEmpty())

		// Open the event stream before prompting.
		stream, err := http.Get(ts.BaseURL + "/event?sessionID=" + created.ID)
		Expect(err).NotTo(HaveOccurred())
		defer stream.Body.Close()
		Expect(stream.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		frames := make(chan string, 64)
		go func() {
			defer close(frames)
			reader := bufio.NewReader(stream.Body)
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if strings.HasPrefix(line, "data: ") {
					frames <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				}
			}
		}()

		// The first frame announces the connection.
		Eventually(frames, 2*time.Second).Should(Receive(ContainSubstring("server.connected")))

		// Send a prompt; the server accepts and runs the turn in the
		// background.
		resp = postJSON(fmt.Sprintf("/session/%s/prompt", created.ID), map[string]string{"prompt": "do the thing"})
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		// The stream carries the turn's notifications through to idle.
		var seen []string
		Eventually(func() bool {
			for {
				select {
				case frame, open := <-frames:
					if !open {
						return false
					}
					seen = append(seen, frame)
					if strings.Contains(frame, "session.idle") {
						return true
					}
				default:
					return false
				}
			}
		}, 5*time.Second, 20*time.Millisecond).Should(BeTrue())

		joined := strings.Join(seen, "\n")
		Expect(joined).To(ContainSubstring("session.init"))
		Expect(joined).To(ContainSubstring("message.updated"))

		// Message history shows the user prompt and the assistant reply.
		msgResp, err := http.Get(fmt.Sprintf("%s/session/%s/message", ts.BaseURL, created.ID))
		Expect(err).NotTo(HaveOccurred())
		defer msgResp.Body.Close()

		// Parts are a tagged union; the wire check only needs the flattened
		// content.
		var messages []struct {
			Role    types.Role `json:"role"`
			Content string     `json:"content"`
		}
		Expect(json.NewDecoder(msgResp.Body).Decode(&messages)).To(Succeed())
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].Content).To(Equal("do the thing"))
		Expect(messages[1].Content).To(Equal("All done."))

		// Init data is queryable after the first turn.
		initResp, err := http.Get(fmt.Sprintf("%s/session/%s/init", ts.BaseURL, created.ID))
		Expect(err).NotTo(HaveOccurred())
		defer initResp.Body.Close()
		Expect(initResp.StatusCode).To(Equal(http.StatusOK))
	})
})
