package transfer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/internal/logger"
)

const testBufferSize = 64

// testConfig serves from and receives into fresh temp dirs on ephemeral
// loopback ports, with a small buffer so files span several chunks.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StreamPort = 0
	cfg.DatagramPort = 0
	cfg.BufferSize = testBufferSize
	cfg.Dir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.PacingDelay = 0
	cfg.ResponseTimeout = 2 * time.Second
	cfg.DialTimeout = 2 * time.Second
	return cfg
}

// pointAt returns cfg with host and the port for network taken from addr.
func pointAt(t *testing.T, cfg config.Config, addr net.Addr) config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Host = host
	switch addr.Network() {
	case "tcp":
		cfg.StreamPort = p
	default:
		cfg.DatagramPort = p
	}
	return cfg
}

func testLogger() logging.LeveledLogger { return logger.Discard() }

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func writeSource(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

// assertReceived checks the client's copy of name against want.
func assertReceived(t *testing.T, cfg config.Config, name string, want []byte, res *Result) {
	t.Helper()
	path := OutputPath(cfg.OutputDir, name)
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("output differs from source: got %d bytes, want %d", len(got), len(want))
	}
	if res.Path != path || res.Bytes != int64(len(want)) {
		t.Errorf("result = %+v, want path %s and %d bytes", res, path, len(want))
	}

	sum := sha256.Sum256(got)
	if hex.EncodeToString(sum[:]) != res.Checksum {
		t.Errorf("checksum = %s, file hashes to %x", res.Checksum, sum)
	}
}

// assertNoOutput checks that the client left nothing behind, temp files
// included.
func assertNoOutput(t *testing.T, cfg config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file left in output dir: %s", e.Name())
	}
}
