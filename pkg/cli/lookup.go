package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func lookupCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:      "lookup",
		Usage:     "One-shot vehicle data question",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogging()

			question := strings.Join(c.Args().Slice(), " ")
			if question == "" {
				return goerr.New("question is required")
			}

			orchestrator, cleanup, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			reply, err := orchestrator.HandleMessage(ctx, "", question)
			if err != nil {
				return err
			}
			defer func() {
				_ = orchestrator.EndSession(ctx, reply.SessionID)
			}()

			printReplyKind(c.Root().Writer, reply)
			fmt.Fprintf(c.Root().Writer, "%s\n", reply.Text)
			return nil
		},
	}
}
