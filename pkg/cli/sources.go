package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func sourcesCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:  "sources",
		Usage: "List configured sources in priority order",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogging()

			srcCfg, err := cfg.loadSourceConfig()
			if err != nil {
				return err
			}

			for i, sc := range srcCfg.Sources {
				state := ""
				if sc.Disabled {
					state = " (disabled)"
				}
				fmt.Fprintf(c.Root().Writer, "%d. %s %s%s\n", i+1, sc.Name, sc.BaseURL, state)
			}
			return nil
		},
	}
}
