package transfer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/logging"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/pkg"
)

type receiveState int

const (
	stateInit receiveState = iota
	stateRequestSent
	stateReceiving
	stateTerminated
	stateFailed
)

func (s receiveState) String() string {
	switch s {
	case stateInit:
		return "INIT"
	case stateRequestSent:
		return "REQUEST_SENT"
	case stateReceiving:
		return "RECEIVING"
	case stateTerminated:
		return "TERMINATED"
	case stateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("receiveState(%d)", int(s))
}

// DatagramClient fetches a file from a DatagramServer.
type DatagramClient struct {
	cfg config.Config
	log logging.LeveledLogger
}

// NewDatagramClient creates a new UDP client instance
func NewDatagramClient(cfg config.Config, log logging.LeveledLogger) *DatagramClient {
	return &DatagramClient{cfg: cfg, log: log}
}

// receive tracks one transfer through INIT -> REQUEST_SENT -> RECEIVING* ->
// TERMINATED or FAILED.
type receive struct {
	log   logging.LeveledLogger
	state receiveState
	out   *output
}

func (r *receive) to(next receiveState) {
	if r.state != next {
		r.log.Tracef("%s -> %s", r.state, next)
	}
	r.state = next
}

func (r *receive) fail(err error) (*Result, error) {
	r.to(stateFailed)
	if r.out != nil {
		r.out.discard()
	}
	return nil, err
}

// Fetch sends one request datagram for filename and writes the datagrams that
// follow, in arrival order, to received_<filename>. Only datagrams from the
// server address count. Each wait is bounded by ResponseTimeout; running out
// of time, including when nothing listens at the server address, returns
// ErrTimeout.
func (c *DatagramClient) Fetch(ctx context.Context, filename string) (*Result, error) {
	name, err := pkg.CleanFilename(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilename, err)
	}
	if len(name) > c.cfg.BufferSize {
		return nil, fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidFilename, c.cfg.BufferSize)
	}

	r := &receive{log: c.log, state: stateInit}

	addr := c.cfg.DatagramAddr()
	server, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return r.fail(fmt.Errorf("resolve %s: %w", addr, err))
	}
	network := "udp6"
	if server.IP.To4() != nil {
		network = "udp4"
	}
	// Unconnected, like a plain sendto/recvfrom socket: an ICMP port
	// unreachable from an absent server does not fail the read, so a missing
	// server looks the same as a silent one and ends in ErrTimeout.
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return r.fail(fmt.Errorf("failed to open socket for %s: %w", addr, err))
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := pkg.SetPacketTTL(conn, c.cfg.TTL); err != nil {
		c.log.Warnf("set ttl: %v", err)
	}

	c.log.Infof("Requesting %q from %s", name, addr)
	if _, err := conn.WriteToUDP([]byte(name), server); err != nil {
		return r.fail(fmt.Errorf("send request: %w", err))
	}
	r.to(stateRequestSent)

	// One spare byte detects datagrams larger than the agreed buffer.
	buf := make([]byte, c.cfg.BufferSize+1)
	deadline := time.Now().Add(c.cfg.ResponseTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(fmt.Errorf("receive: %w", err))
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return r.fail(fmt.Errorf("set deadline: %w", err))
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return r.fail(fmt.Errorf("receive: %w", ctx.Err()))
			case isTimeout(err):
				return r.fail(fmt.Errorf("%w: no datagram within %s (state %s)", ErrTimeout, c.cfg.ResponseTimeout, r.state))
			}
			return r.fail(fmt.Errorf("receive: %w", err))
		}
		// Strays do not extend the wait.
		if !from.IP.Equal(server.IP) || from.Port != server.Port {
			c.log.Debugf("Ignoring datagram from %s", from)
			continue
		}
		deadline = time.Now().Add(c.cfg.ResponseTimeout)
		if n > c.cfg.BufferSize {
			return r.fail(fmt.Errorf("receive: datagram larger than buffer size %d", c.cfg.BufferSize))
		}
		payload := buf[:n]

		switch {
		case isErrorToken(payload):
			return r.fail(fmt.Errorf("%w: %s", ErrNotFound, name))
		case isTerminator(payload):
			if r.out == nil {
				if r.out, err = createOutput(c.cfg.OutputDir, name, c.cfg.BufferSize); err != nil {
					return r.fail(err)
				}
			}
			r.to(stateTerminated)
			res, err := r.out.commit()
			if err != nil {
				r.out = nil
				return r.fail(err)
			}
			c.log.Infof("File received and saved as %s (%d bytes in %d datagrams, sha256 %s)", res.Path, res.Bytes, res.Chunks, res.Checksum)
			return res, nil
		default:
			if r.out == nil {
				if r.out, err = createOutput(c.cfg.OutputDir, name, c.cfg.BufferSize); err != nil {
					return r.fail(err)
				}
			}
			r.to(stateReceiving)
			if err := r.out.writeChunk(payload); err != nil {
				return r.fail(err)
			}
		}
	}
}
