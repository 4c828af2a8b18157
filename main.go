package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/vinq-io/vinq/pkg/cli"
)

func main() {
	// Optional local .env with credentials; absence is fine
	_ = godotenv.Load()

	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(err.Code)
	}
}
