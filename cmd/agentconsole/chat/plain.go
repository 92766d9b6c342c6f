package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/cliui"
	"github.com/papercomputeco/agentconsole/pkg/utils"
)

// runPlain runs the line-oriented REPL. Interrupts stop a streaming
// response and otherwise end the chat.
func (c *chatCommander) runPlain(ctx context.Context, resumed int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				if !c.ctrl.Stop() {
					cancel()
					return
				}
			}
		}
	}()

	return c.repl(ctx, resumed)
}

func (c *chatCommander) repl(ctx context.Context, resumed int) error {
	p := newPrinter(c.out)
	unsubscribe := c.ctrl.Store().Subscribe(p.onSnapshot)
	defer unsubscribe()

	c.banner(resumed)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				// EOF
				fmt.Fprintln(c.out)
				return nil
			}
			input = strings.TrimSpace(line)
		}

		switch {
		case input == "":
			continue
		case input == "/exit":
			return nil
		case input == "/new":
			c.newChat()
			fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
			continue
		case strings.HasPrefix(input, "/agent "):
			agentID := strings.TrimSpace(strings.TrimPrefix(input, "/agent "))
			c.ctrl.SwitchAgent(agentID)
			fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Agent:"), cliui.NameStyle.Render(agentID))
			continue
		}

		p.arm(lastID(c.ctrl.Store().Messages()))
		err := c.ctrl.Send(ctx, input)
		p.disarm()

		switch {
		case err == nil:
		case errors.Is(err, session.ErrStopped):
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("(stopped)"))
		case errors.Is(err, session.ErrReset):
		default:
			fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		}
	}
}

func (c *chatCommander) banner(resumed int) {
	fmt.Fprintln(c.out)
	if id := c.ctrl.Store().SessionID(); id != "" && resumed > 0 {
		fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.HashStyle.Render(utils.Truncate(id, 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", resumed)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Agent:"),
		cliui.NameStyle.Render(c.ctrl.AgentID()),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
}

func lastID(t transcript.Transcript) string {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1].ID
}
