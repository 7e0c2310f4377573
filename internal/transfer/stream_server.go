package transfer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/sujalshah-bit/filexfer/internal/config"
	"github.com/sujalshah-bit/filexfer/pkg"
)

// StreamServer serves files over TCP. Each accepted connection carries one
// request and is handled in its own goroutine; closing the connection marks
// the end of the file.
type StreamServer struct {
	cfg        config.Config
	log        logging.LeveledLogger
	listener   net.Listener
	clients    map[net.Conn]bool
	closed     bool
	clientsMux sync.Mutex
	wg         sync.WaitGroup
}

// NewStreamServer creates a new TCP server instance
func NewStreamServer(cfg config.Config, log logging.LeveledLogger) *StreamServer {
	return &StreamServer{
		cfg:     cfg,
		log:     log,
		clients: make(map[net.Conn]bool),
	}
}

// Start listens on the configured stream address and accepts connections in
// the background.
func (s *StreamServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.StreamAddr())
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.log.Infof("Stream server started on %s (reachable at %s)", listener.Addr(), pkg.AdvertisedAddr(listener.Addr()))

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *StreamServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and any open connections, then waits for the
// handlers to return.
func (s *StreamServer) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()

	s.clientsMux.Lock()
	s.closed = true
	for conn := range s.clients {
		conn.Close()
	}
	s.clientsMux.Unlock()

	s.wg.Wait()
	s.log.Infof("Stream server on %s stopped", s.listener.Addr())
	return err
}

func (s *StreamServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Server was stopped
				return
			}
			s.log.Errorf("Error accepting connection: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		go s.handleClient(conn)
	}
}

// track registers conn with the handler group. It fails once Stop has begun,
// so no handler starts after Stop has swept the client map.
func (s *StreamServer) track(conn net.Conn) bool {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()
	if s.closed {
		return false
	}
	s.clients[conn] = true
	s.wg.Add(1)
	return true
}

// handleClient serves one request. Errors end up in the log; the connection
// is always closed.
func (s *StreamServer) handleClient(conn net.Conn) {
	defer func() {
		conn.Close()
		s.clientsMux.Lock()
		delete(s.clients, conn)
		s.clientsMux.Unlock()
		s.wg.Done()
	}()

	id := uuid.NewString()
	clientAddr := conn.RemoteAddr().String()
	s.log.Debugf("[%s] client connected: %s", id, clientAddr)

	if err := pkg.SetConnTTL(conn, s.cfg.TTL); err != nil {
		s.log.Warnf("[%s] set ttl: %v", id, err)
	}
	if s.cfg.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout)); err != nil {
			s.log.Warnf("[%s] set deadline: %v", id, err)
		}
	}

	if err := s.serve(id, conn); err != nil {
		s.log.Errorf("[%s] error handling client %s: %v", id, clientAddr, err)
	}
}

func (s *StreamServer) serve(id string, conn net.Conn) error {
	// The whole request is one read; longer names are truncated.
	buf := make([]byte, s.cfg.BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	filename := string(buf[:n])
	s.log.Infof("[%s] request for %q from %s", id, filename, conn.RemoteAddr())

	file, err := openSource(s.cfg.Dir, filename)
	if err != nil {
		s.log.Errorf("[%s] %v", id, err)
		if _, err := conn.Write(errorToken); err != nil {
			return fmt.Errorf("send error token: %w", err)
		}
		return nil
	}
	defer file.Close()

	src := newChecksumReader(file)
	chunks, sent, err := sendChunks(src, s.cfg.BufferSize, func(chunk []byte) error {
		_, err := conn.Write(chunk)
		return err
	})
	if err != nil {
		return fmt.Errorf("send %q after %d bytes: %w", filename, sent, err)
	}

	s.log.Infof("[%s] sent %q to %s: %d bytes in %d chunks, sha256 %s", id, filename, conn.RemoteAddr(), sent, chunks, src.Sum())
	return nil
}
