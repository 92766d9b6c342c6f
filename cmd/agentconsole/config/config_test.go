package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/config"
)

// newCmd wraps the config command in a root carrying the persistent
// --config-dir flag, as the real command tree does.
func newCmd(out *bytes.Buffer, args ...string) *cobra.Command {
	root := &cobra.Command{Use: "agentconsole"}
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(configcmder.NewConfigCmd())
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"config"}, args...))
	return root
}

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		Expect(configcmder.NewConfigCmd().Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		names := []string{}
		for _, sub := range configcmder.NewConfigCmd().Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), ".agentconsole")
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		return newCmd(out, append(args, "--config-dir", dir)...).Execute()
	}

	Describe("set", func() {
		It("writes config.toml", func() {
			Expect(run("set", "client.agent_id", "support-bot")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`agent_id = "support-bot"`))
			Expect(out.String()).To(ContainSubstring("client.agent_id"))
		})

		It("rejects unknown keys", func() {
			err := run("set", "proxy.provider", "anthropic")
			Expect(err).To(MatchError(ContainSubstring(`unknown config key: "proxy.provider"`)))
		})

		It("rejects invalid durations", func() {
			Expect(run("set", "client.timeout", "soon")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "client.agent_id")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})
	})

	Describe("get", func() {
		It("shows a previously set value", func() {
			Expect(run("set", "client.agent_id", "support-bot")).To(Succeed())
			out.Reset()

			Expect(run("get", "client.agent_id")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("support-bot"))
		})

		It("shows defaults for unset keys", func() {
			Expect(run("get", "client.api_target")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("http://localhost:8081"))
		})

		It("marks empty keys as not set", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})
	})

	Describe("list", func() {
		It("prints every key", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("client.api_target"))
			Expect(out.String()).To(ContainSubstring("eventstream.kafka_topic"))
			Expect(out.String()).To(ContainSubstring(`"agentconsole.responses"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
