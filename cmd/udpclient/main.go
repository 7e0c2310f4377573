package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/internal/logger"
	"github.com/sujalshah-bit/filexfer/internal/transfer"
	"github.com/sujalshah-bit/filexfer/pkg"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("udpclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	log := logger.New("udpclient", cfg.LogLevel, stderr)
	if err := pkg.ValidateArgs(fs.Args(), 1); err != nil {
		log.Errorf("Usage: udpclient [flags] <filename>: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return 1
	}

	_, err := transfer.NewDatagramClient(cfg, log).Fetch(ctx, fs.Arg(0))
	switch {
	case err == nil:
		return 0
	case errors.Is(err, transfer.ErrInvalidFilename):
		log.Errorf("Filename must not be empty: %v", err)
	case errors.Is(err, transfer.ErrTimeout):
		log.Errorf("Timed out waiting for data from server: %v", err)
	case errors.Is(err, transfer.ErrNotFound):
		log.Errorf("File %s not found on server", fs.Arg(0))
	default:
		log.Errorf("Client error: %v", err)
	}
	return 1
}
