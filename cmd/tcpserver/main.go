package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/internal/logger"
	"github.com/sujalshah-bit/filexfer/internal/transfer"
	"github.com/sujalshah-bit/filexfer/pkg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run serves until ctx is cancelled.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("tcpserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	log := logger.New("tcpserver", cfg.LogLevel, stderr)
	if err := pkg.ValidateArgs(fs.Args(), 0); err != nil {
		log.Errorf("Usage: tcpserver [flags]: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return 1
	}

	server := transfer.NewStreamServer(cfg, log)
	if err := server.Start(); err != nil {
		log.Errorf("Failed to start server: %v", err)
		return 1
	}

	<-ctx.Done()
	if err := server.Stop(); err != nil {
		log.Warnf("Stopping server: %v", err)
	}
	return 0
}
