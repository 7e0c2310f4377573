package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Reserved payloads. They are compared byte for byte against whole messages.
const (
	ErrorToken     = "File not found"
	Terminator     = "__EOF__"
	KeepalivePing  = "__PING__"
	ReceivedPrefix = "received_"
)

const (
	DefaultHost            = "127.0.0.1"
	DefaultStreamPort      = 8080
	DefaultDatagramPort    = 9090
	DefaultBufferSize      = 4096
	DefaultResponseTimeout = 5 * time.Second
	DefaultDialTimeout     = 5 * time.Second
	DefaultPacingDelay     = time.Millisecond
	DefaultSendTimeout     = 100 * time.Millisecond
	DefaultSendRetries     = 3
	DefaultSendBackoff     = 5 * time.Millisecond
	DefaultSendBackoffMax  = 200 * time.Millisecond
	DefaultLogLevel        = "info"
)

// Config is shared by all four roles. Both ends of a transfer must agree on
// BufferSize.
type Config struct {
	Host         string
	StreamPort   int
	DatagramPort int
	BufferSize   int

	// Dir is where servers resolve requested filenames, OutputDir is where
	// clients write received_<filename>. Empty means the working directory.
	Dir       string
	OutputDir string

	DialTimeout     time.Duration
	ResponseTimeout time.Duration // datagram client wait per datagram
	IOTimeout       time.Duration // stream server per-connection deadline, 0 disables

	PacingDelay    time.Duration
	SendTimeout    time.Duration
	SendRetries    int
	SendBackoff    time.Duration
	SendBackoffMax time.Duration

	// TTL sets the IPv4 time-to-live on sockets when positive.
	TTL int

	LogLevel string
}

// Default returns the configuration the executables start from.
func Default() Config {
	return Config{
		Host:            DefaultHost,
		StreamPort:      DefaultStreamPort,
		DatagramPort:    DefaultDatagramPort,
		BufferSize:      DefaultBufferSize,
		DialTimeout:     DefaultDialTimeout,
		ResponseTimeout: DefaultResponseTimeout,
		PacingDelay:     DefaultPacingDelay,
		SendTimeout:     DefaultSendTimeout,
		SendRetries:     DefaultSendRetries,
		SendBackoff:     DefaultSendBackoff,
		SendBackoffMax:  DefaultSendBackoffMax,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate reports the first setting that would make a transfer impossible.
func (c Config) Validate() error {
	if c.StreamPort < 0 || c.StreamPort > 65535 {
		return fmt.Errorf("stream port %d out of range", c.StreamPort)
	}
	if c.DatagramPort < 0 || c.DatagramPort > 65535 {
		return fmt.Errorf("datagram port %d out of range", c.DatagramPort)
	}
	// Reserved tokens must fit in one chunk or they could never be recognised.
	if c.BufferSize < len(ErrorToken) || c.BufferSize < len(Terminator) {
		return fmt.Errorf("buffer size %d is smaller than the reserved tokens", c.BufferSize)
	}
	if c.BufferSize > 65507 {
		return fmt.Errorf("buffer size %d exceeds the maximum UDP payload", c.BufferSize)
	}
	if c.ResponseTimeout <= 0 {
		return errors.New("response timeout must be positive")
	}
	if c.SendRetries < 0 {
		return errors.New("send retries must not be negative")
	}
	if c.TTL < 0 || c.TTL > 255 {
		return fmt.Errorf("ttl %d out of range", c.TTL)
	}
	return nil
}

// StreamAddr is the host:port the stream roles use.
func (c Config) StreamAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.StreamPort))
}

// DatagramAddr is the host:port the datagram roles use.
func (c Config) DatagramAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.DatagramPort))
}

// RegisterFlags binds the tunable settings to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "server host")
	fs.IntVar(&c.StreamPort, "tcp-port", c.StreamPort, "stream (TCP) port")
	fs.IntVar(&c.DatagramPort, "udp-port", c.DatagramPort, "datagram (UDP) port")
	fs.IntVar(&c.BufferSize, "buffer", c.BufferSize, "chunk size in bytes")
	fs.StringVar(&c.Dir, "dir", c.Dir, "directory files are served from")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "directory received files are written to")
	fs.DurationVar(&c.ResponseTimeout, "timeout", c.ResponseTimeout, "datagram client wait for each response")
	fs.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "stream client connect timeout")
	fs.DurationVar(&c.IOTimeout, "io-timeout", c.IOTimeout, "stream server per-connection deadline (0 disables)")
	fs.DurationVar(&c.PacingDelay, "pacing", c.PacingDelay, "delay after each datagram sent")
	fs.IntVar(&c.SendRetries, "retries", c.SendRetries, "retries for a datagram send that would block")
	fs.IntVar(&c.TTL, "ttl", c.TTL, "IPv4 TTL for sockets (0 keeps the system default)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "trace, debug, info, warn, error or critical")
}
