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
	fs := flag.NewFlagSet("tcpclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	log := logger.New("tcpclient", cfg.LogLevel, stderr)
	if err := pkg.ValidateArgs(fs.Args(), 1); err != nil {
		log.Errorf("Usage: tcpclient [flags] <filename>: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return 1
	}

	filename := fs.Arg(0)
	if _, err := transfer.NewStreamClient(cfg, log).Fetch(ctx, filename); err != nil {
		if errors.Is(err, transfer.ErrNotFound) {
			log.Errorf("File %s not found on server", filename)
		} else {
			log.Errorf("Client error: %v", err)
		}
		return 1
	}
	return 0
}
