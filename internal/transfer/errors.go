package transfer

import (
	"errors"
	"net"
	"os"
	"syscall"
)

var (
	// ErrNotFound means the server answered with the error token.
	ErrNotFound = errors.New("file not found on server")
	// ErrTimeout means the datagram client gave up waiting for a response.
	ErrTimeout = errors.New("timed out waiting for server")
	// ErrInvalidFilename is returned before any network action for a name
	// that cannot be requested.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrMalformedRequest marks a datagram request the server drops without
	// answering.
	ErrMalformedRequest = errors.New("malformed request")
)

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// wouldBlock reports whether a send failed because the socket could not take
// the datagram right now.
func wouldBlock(err error) bool {
	return isTimeout(err) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOBUFS)
}
