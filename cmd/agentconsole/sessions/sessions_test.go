package sessionscmder_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/gofiber/adaptor/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentconsole/api"
	sessionscmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/sessions"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/dotdir"
	"github.com/papercomputeco/agentconsole/pkg/storage/inmemory"
)

var _ = Describe("sessions command", func() {
	var (
		driver    *inmemory.Driver
		ts        *httptest.Server
		configDir string
		out       *bytes.Buffer
		ids       []string
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		server, err := api.NewServer(api.Config{}, driver)
		Expect(err).NotTo(HaveOccurred())
		ts = httptest.NewServer(adaptor.FiberApp(server.App()))
		DeferCleanup(ts.Close)
		DeferCleanup(server.Shutdown)

		ctx := context.Background()
		ids = nil
		for _, agentID := range []string{"support", "support", "sales"} {
			s, err := driver.CreateSession(ctx, agentID)
			Expect(err).NotTo(HaveOccurred())
			ids = append(ids, s.ID)
		}
		Expect(driver.AppendMessages(ctx, ids[0],
			transcript.NewTextMessage("u1", transcript.RoleUser, "hello there", time.Now()),
			transcript.NewTextMessage("a1", transcript.RoleAssistant, "You said: hello there", time.Now()),
		)).To(Succeed())

		configDir = filepath.Join(GinkgoT().TempDir(), ".agentconsole")
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		root := &cobra.Command{Use: "agentconsole"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(sessionscmder.NewSessionsCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"sessions", "--config-dir", configDir, "--api-target", ts.URL}, args...))
		return root.Execute()
	}

	It("lists the sessions of one agent", func() {
		Expect(run("--agent", "support")).To(Succeed())

		Expect(out.String()).To(ContainSubstring(ids[0]))
		Expect(out.String()).To(ContainSubstring(ids[1]))
		Expect(out.String()).NotTo(ContainSubstring(ids[2]))
		Expect(out.String()).To(ContainSubstring("2 messages"))
	})

	It("lists every agent with --all", func() {
		Expect(run("--agent", "support", "--all")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(ids[2]))
	})

	It("marks the remembered session", func() {
		state := &dotdir.SessionState{}
		state.Remember("support", ids[1], time.Now())
		Expect(dotdir.NewManager().SaveSessionState(state, configDir)).To(Succeed())

		Expect(run("--agent", "support")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("✓"))
	})

	It("says so when there are no sessions", func() {
		Expect(run("--agent", "nobody")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No sessions found."))
	})

	It("prints a stored conversation", func() {
		Expect(run("show", ids[0])).To(Succeed())
		Expect(out.String()).To(ContainSubstring("hello there"))
		Expect(out.String()).To(ContainSubstring("support"))
	})

	It("reports unknown sessions", func() {
		Expect(run("show", "missing")).To(MatchError(ContainSubstring("404")))
	})
})
