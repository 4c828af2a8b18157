package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/usecase/inquiry"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive vehicle data session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogging()

			orchestrator, cleanup, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Ask about a vehicle. Type 'exit' to quit.\n")

			var sessionID model.SessionID
			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt || err == io.EOF {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " looking up..."
				sp.Start()
				reply, err := orchestrator.HandleMessage(ctx, sessionID, line)
				sp.Stop()

				if err != nil {
					return goerr.Wrap(err, "failed to handle message")
				}

				sessionID = reply.SessionID
				fmt.Fprintf(c.Root().Writer, "%s\n", reply.Text)
			}

			if sessionID != "" {
				if err := orchestrator.EndSession(ctx, sessionID); err != nil {
					return err
				}
			}
			fmt.Fprintf(c.Root().Writer, "\nSession ended\n")
			return nil
		},
	}
}

// printReplyKind is used by the one-shot command to hint at degraded output
func printReplyKind(w io.Writer, reply *inquiry.Reply) {
	if reply.Kind == inquiry.ReplyDegraded {
		fmt.Fprintf(w, "(degraded answer)\n")
	}
}
