package agentconsolecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	agentconsolecmder "github.com/papercomputeco/agentconsole/cmd/agentconsole"
)

var _ = Describe("NewAgentConsoleCmd", func() {
	It("registers every subcommand", func() {
		cmd := agentconsolecmder.NewAgentConsoleCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("chat", "serve", "sessions", "config", "version"))
	})

	It("has the global persistent flags", func() {
		cmd := agentconsolecmder.NewAgentConsoleCmd()

		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))

		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})
