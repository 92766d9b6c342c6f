package main

import (
	"os"

	agentconsolecmder "github.com/papercomputeco/agentconsole/cmd/agentconsole"
)

func main() {
	cmd := agentconsolecmder.NewAgentConsoleCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
