package pkg

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"golang.org/x/net/ipv4"
)

var (
	// ErrUsage is returned when an executable gets the wrong number of
	// positional arguments.
	ErrUsage = errors.New("wrong number of arguments")

	ErrEmptyFilename       = errors.New("filename is empty")
	ErrNonPrintableRequest = errors.New("filename contains non-printable characters")
)

// ValidateArgs checks the positional argument count.
func ValidateArgs(args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUsage, len(args), want)
	}
	return nil
}

// CleanFilename trims surrounding whitespace and rejects names that are empty
// or contain non-printable characters.
func CleanFilename(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyFilename
	}
	for _, r := range name {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: %q", ErrNonPrintableRequest, name)
		}
	}
	return name, nil
}

// SetConnTTL sets the IPv4 TTL on an IPv4 stream or connected datagram socket.
// ttl <= 0 leaves the system default.
func SetConnTTL(c net.Conn, ttl int) error {
	if ttl <= 0 || !isIPv4(c.LocalAddr()) {
		return nil
	}
	return ipv4.NewConn(c).SetTTL(ttl)
}

// SetPacketTTL is SetConnTTL for unconnected datagram sockets.
func SetPacketTTL(c net.PacketConn, ttl int) error {
	if ttl <= 0 || !isIPv4(c.LocalAddr()) {
		return nil
	}
	return ipv4.NewPacketConn(c).SetTTL(ttl)
}

func isIPv4(addr net.Addr) bool {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.To4() != nil
	case *net.UDPAddr:
		return a.IP.To4() != nil
	}
	return false
}

// GetDeviceIP returns the device's IP address for external communication
func GetDeviceIP() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
				if ipNet.IP.To4() != nil {
					return ipNet.IP.String()
				}
			}
		}
	}
	return "127.0.0.1"
}

// AdvertisedAddr returns the address peers should use to reach a server
// listening on addr. Wildcard hosts are replaced by the device IP.
func AdvertisedAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = GetDeviceIP()
	}
	return net.JoinHostPort(host, port)
}
