package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sitetools/internal/transports/cli"
	"sitetools/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.New(buildVersion(), logger.NewWithWriter)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.New("").Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
