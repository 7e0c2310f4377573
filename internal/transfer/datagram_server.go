package transfer

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/pkg"
)

// DatagramServer serves files over UDP, one request at a time. A file goes
// out as one datagram per chunk followed by the terminator. There are no
// acknowledgements, so loss or reordering on the way corrupts the copy.
type DatagramServer struct {
	cfg   config.Config
	log   logging.LeveledLogger
	conn  net.PacketConn
	retry backoff.BackOff
	done  chan struct{}
}

// NewDatagramServer creates a new UDP server instance
func NewDatagramServer(cfg config.Config, log logging.LeveledLogger) *DatagramServer {
	policy := backoff.NewExponentialBackOff()
	if cfg.SendBackoff > 0 {
		policy.InitialInterval = cfg.SendBackoff
	}
	if cfg.SendBackoffMax > 0 {
		policy.MaxInterval = cfg.SendBackoffMax
	}
	policy.MaxElapsedTime = 0

	return &DatagramServer{
		cfg:   cfg,
		log:   log,
		retry: backoff.WithMaxRetries(policy, uint64(cfg.SendRetries)),
	}
}

// Start binds the configured datagram address and serves requests in the
// background.
func (s *DatagramServer) Start() error {
	conn, err := net.ListenPacket("udp", s.cfg.DatagramAddr())
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if err := pkg.SetPacketTTL(conn, s.cfg.TTL); err != nil {
		s.log.Warnf("set ttl: %v", err)
	}
	s.conn = conn
	s.done = make(chan struct{})

	s.log.Infof("Datagram server started on %s (reachable at %s)", conn.LocalAddr(), pkg.AdvertisedAddr(conn.LocalAddr()))

	go s.listen()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *DatagramServer) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket and waits for the receive loop to exit. A transfer
// in progress fails on its next send.
func (s *DatagramServer) Stop() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	<-s.done
	s.log.Infof("Datagram server on %s stopped", s.conn.LocalAddr())
	return err
}

func (s *DatagramServer) listen() {
	defer close(s.done)

	buf := make([]byte, s.cfg.BufferSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Errorf("Error receiving request: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.handleRequest(string(buf[:n]), addr)
	}
}

// handleRequest serves a single request datagram. Failures are logged and
// never reach the receive loop.
func (s *DatagramServer) handleRequest(request string, addr net.Addr) {
	filename, err := pkg.CleanFilename(request)
	if err != nil {
		s.log.Warnf("Dropping request from %s: %v", addr, fmt.Errorf("%w: %w", ErrMalformedRequest, err))
		return
	}
	if filename == config.KeepalivePing {
		s.log.Debugf("Keepalive ping from %s", addr)
		return
	}

	id := uuid.NewString()
	s.log.Infof("[%s] request for %q from %s", id, filename, addr)

	if err := s.sendFile(id, filename, addr); err != nil {
		s.log.Errorf("[%s] error handling request from %s: %v", id, addr, err)
	}
}

func (s *DatagramServer) sendFile(id, filename string, addr net.Addr) error {
	file, err := openSource(s.cfg.Dir, filename)
	if err != nil {
		s.log.Errorf("[%s] %v", id, err)
		if err := s.send(errorToken, addr); err != nil {
			return fmt.Errorf("send error token: %w", err)
		}
		return nil
	}
	defer file.Close()

	src := newChecksumReader(file)
	chunks, sent, err := sendChunks(src, s.cfg.BufferSize, func(chunk []byte) error {
		if err := s.send(chunk, addr); err != nil {
			return err
		}
		if s.cfg.PacingDelay > 0 {
			time.Sleep(s.cfg.PacingDelay)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send %q after %d chunks: %w", filename, chunks, err)
	}
	if err := s.send(terminator, addr); err != nil {
		return fmt.Errorf("send terminator: %w", err)
	}

	s.log.Infof("[%s] sent %q to %s: %d bytes in %d datagrams, sha256 %s", id, filename, addr, sent, chunks, src.Sum())
	return nil
}

// send writes one datagram. A send that would block is retried with
// exponential backoff up to SendRetries times; any other error is final.
func (s *DatagramServer) send(payload []byte, addr net.Addr) error {
	return backoff.RetryNotify(func() error {
		if s.cfg.SendTimeout > 0 {
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout)); err != nil {
				return backoff.Permanent(err)
			}
		}
		_, err := s.conn.WriteTo(payload, addr)
		if err != nil && !wouldBlock(err) {
			return backoff.Permanent(err)
		}
		return err
	}, s.retry, func(err error, wait time.Duration) {
		s.log.Warnf("Send to %s would block (%v), retrying in %s", addr, err, wait)
	})
}
