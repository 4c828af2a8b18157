package cli

import (
	"context"

	"github.com/urfave/cli/v3"
	"github.com/vinq-io/vinq/pkg/service/mcp"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the lookup pipeline as an MCP stdio server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogging()

			orchestrator, cleanup, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return mcp.NewServer(orchestrator).Run(ctx)
		},
	}
}
