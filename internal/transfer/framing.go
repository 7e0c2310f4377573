package transfer

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/sujalshah-bit/filexfer/internal/config"
)

var (
	errorToken = []byte(config.ErrorToken)
	terminator = []byte(config.Terminator)
)

// Result describes a file written by a client.
type Result struct {
	Path     string
	Bytes    int64
	Chunks   int
	Checksum string
}

func isErrorToken(b []byte) bool { return bytes.Equal(b, errorToken) }

func isTerminator(b []byte) bool { return bytes.Equal(b, terminator) }

func resolvePath(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// OutputPath is where a client stores filename.
func OutputPath(dir, filename string) string {
	return resolvePath(dir, config.ReceivedPrefix+filename)
}

// openSource opens a requested file. Anything that is not an existing
// regular file is reported as ErrNotFound wrapping the cause.
func openSource(dir, name string) (*os.File, error) {
	path := resolvePath(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return f, nil
}

// sendChunks reads r in chunks of size bytes and passes each one to send.
// Every chunk except the last is exactly size bytes, so a source of n bytes
// produces ceil(n/size) chunks and an empty source produces none.
func sendChunks(r io.Reader, size int, send func([]byte) error) (chunks int, total int64, err error) {
	buf := make([]byte, size)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if err := send(buf[:n]); err != nil {
				return chunks, total, err
			}
			chunks++
			total += int64(n)
		}
		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return chunks, total, nil
		default:
			return chunks, total, rerr
		}
	}
}

// checksumReader hashes everything read through it.
type checksumReader struct {
	io.Reader
	hash hash.Hash
}

func newChecksumReader(r io.Reader) *checksumReader {
	h := sha256.New()
	return &checksumReader{Reader: io.TeeReader(r, h), hash: h}
}

func (c *checksumReader) Sum() string { return hex.EncodeToString(c.hash.Sum(nil)) }

// output collects a received file in a hidden temp file beside its final
// name. Nothing appears under the final name until commit.
type output struct {
	final  string
	tmp    *os.File
	w      *bufio.Writer
	hash   hash.Hash
	bytes  int64
	chunks int
}

func createOutput(dir, filename string, bufSize int) (*output, error) {
	final := OutputPath(dir, filename)
	tmp, err := os.CreateTemp(filepath.Dir(final), "."+filepath.Base(final)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create output for %s: %w", final, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &output{
		final: final,
		tmp:   tmp,
		w:     bufio.NewWriterSize(tmp, bufSize),
		hash:  sha256.New(),
	}, nil
}

// writeChunk appends one received chunk.
func (o *output) writeChunk(p []byte) error {
	n, err := o.w.Write(p)
	o.hash.Write(p[:n])
	o.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", o.tmp.Name(), err)
	}
	o.chunks++
	return nil
}

// commit flushes the data and moves it to the final name, replacing any
// existing file.
func (o *output) commit() (*Result, error) {
	if err := o.w.Flush(); err != nil {
		o.discard()
		return nil, fmt.Errorf("flush %s: %w", o.tmp.Name(), err)
	}
	if err := o.tmp.Close(); err != nil {
		os.Remove(o.tmp.Name())
		return nil, fmt.Errorf("close %s: %w", o.tmp.Name(), err)
	}
	if err := os.Rename(o.tmp.Name(), o.final); err != nil {
		os.Remove(o.tmp.Name())
		return nil, fmt.Errorf("rename to %s: %w", o.final, err)
	}
	return &Result{
		Path:     o.final,
		Bytes:    o.bytes,
		Chunks:   o.chunks,
		Checksum: hex.EncodeToString(o.hash.Sum(nil)),
	}, nil
}

func (o *output) discard() {
	o.tmp.Close()
	os.Remove(o.tmp.Name())
}
