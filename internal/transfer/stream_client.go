package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/pkg"
)

// StreamClient fetches one file per connection from a StreamServer.
type StreamClient struct {
	cfg config.Config
	log logging.LeveledLogger
}

// NewStreamClient creates a new TCP client instance
func NewStreamClient(cfg config.Config, log logging.LeveledLogger) *StreamClient {
	return &StreamClient{cfg: cfg, log: log}
}

// Fetch requests filename and stores the response as received_<filename> in
// the output directory. Nothing is written if the server does not have the
// file or the transfer fails.
func (c *StreamClient) Fetch(ctx context.Context, filename string) (*Result, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidFilename)
	}
	if len(filename) > c.cfg.BufferSize {
		return nil, fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidFilename, c.cfg.BufferSize)
	}

	addr := c.cfg.StreamAddr()
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server %s: %w", addr, err)
	}
	defer conn.Close()

	// Cancelling ctx unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	c.log.Debugf("Connected to server %s", addr)
	if err := pkg.SetConnTTL(conn, c.cfg.TTL); err != nil {
		c.log.Warnf("set ttl: %v", err)
	}

	if _, err := conn.Write([]byte(filename)); err != nil {
		return nil, c.wrap(ctx, "send request", err)
	}

	reader := bufio.NewReaderSize(conn, max(c.cfg.BufferSize, len(errorToken)+1))

	// The response is the error token only if it is the token and nothing
	// else. Peek one byte past it to tell the token from a file that starts
	// with the same bytes.
	head, err := reader.Peek(len(errorToken) + 1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, c.wrap(ctx, "read response", err)
	}
	if isErrorToken(head) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	out, err := createOutput(c.cfg.OutputDir, filename, c.cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, c.cfg.BufferSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if werr := out.writeChunk(buf[:n]); werr != nil {
				out.discard()
				return nil, werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.discard()
			return nil, c.wrap(ctx, "receive file", err)
		}
	}

	res, err := out.commit()
	if err != nil {
		return nil, err
	}
	c.log.Infof("File received and saved as %s (%d bytes, sha256 %s)", res.Path, res.Bytes, res.Checksum)
	return res, nil
}

func (c *StreamClient) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
