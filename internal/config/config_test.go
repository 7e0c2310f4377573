package config

import (
	"flag"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.StreamAddr() != "127.0.0.1:8080" {
		t.Errorf("StreamAddr = %s", cfg.StreamAddr())
	}
	if cfg.DatagramAddr() != "127.0.0.1:9090" {
		t.Errorf("DatagramAddr = %s", cfg.DatagramAddr())
	}
	if cfg.BufferSize != 4096 || cfg.ResponseTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: buffer %d, timeout %s", cfg.BufferSize, cfg.ResponseTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{name: "ephemeral ports", modify: func(c *Config) { c.StreamPort, c.DatagramPort = 0, 0 }, valid: true},
		{name: "buffer equal to token", modify: func(c *Config) { c.BufferSize = len(ErrorToken) }, valid: true},
		{name: "buffer smaller than token", modify: func(c *Config) { c.BufferSize = len(ErrorToken) - 1 }},
		{name: "buffer above udp limit", modify: func(c *Config) { c.BufferSize = 70000 }},
		{name: "port too large", modify: func(c *Config) { c.StreamPort = 70000 }},
		{name: "zero timeout", modify: func(c *Config) { c.ResponseTimeout = 0 }},
		{name: "negative retries", modify: func(c *Config) { c.SendRetries = -1 }},
		{name: "ttl too large", modify: func(c *Config) { c.TTL = 300 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	err := fs.Parse([]string{"-host", "10.0.0.5", "-udp-port", "9999", "-buffer", "1024", "-timeout", "2s", "notes.txt"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DatagramAddr() != "10.0.0.5:9999" {
		t.Errorf("DatagramAddr = %s", cfg.DatagramAddr())
	}
	if cfg.BufferSize != 1024 || cfg.ResponseTimeout != 2*time.Second {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.StreamPort != DefaultStreamPort {
		t.Errorf("unset flag changed stream port to %d", cfg.StreamPort)
	}
	if fs.NArg() != 1 || fs.Arg(0) != "notes.txt" {
		t.Errorf("positional args = %v", fs.Args())
	}
}
