package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	rlog "github.com/rowline/rowline/log"
)

func main() {
	cmd := &cli.Command{
		Name:  "rowlined",
		Usage: "rowline versioning engine daemon",
		Commands: []*cli.Command{
			serverCommand(),
		},
	}

	logger := rlog.New("rowlined")
	slog.SetDefault(logger)

	ctx := context.Background()
	ctx = rlog.IntoContext(ctx, logger)

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
