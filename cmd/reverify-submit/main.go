// Package main submits a reverification photo from disk.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	submitcmd "github.com/louisbranch/reverify/internal/cmd/reverifysubmit"
	"github.com/louisbranch/reverify/internal/platform/config"
)

func main() {
	cfg, err := submitcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := submitcmd.Run(ctx, cfg, os.Stdout); err != nil {
		if errors.Is(err, submitcmd.ErrSubmissionFailed) {
			stop()
			os.Exit(1)
		}
		config.Exitf("submit photo: %v", err)
	}
}
