package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pion/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    logging.LogLevel
		wantErr bool
	}{
		{name: "debug", input: "debug", want: logging.LogLevelDebug},
		{name: "upper case", input: "INFO", want: logging.LogLevelInfo},
		{name: "empty defaults to info", input: "", want: logging.LogLevelInfo},
		{name: "warning alias", input: "warning", want: logging.LogLevelWarn},
		{name: "critical maps to error", input: "critical", want: logging.LogLevelError},
		{name: "unknown", input: "loud", want: logging.LogLevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("tcpserver", "warn", &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "tcpserver") {
		t.Errorf("expected scoped warning in output, got %q", out)
	}
}

func TestNewUnknownLevelWarns(t *testing.T) {
	var buf bytes.Buffer
	New("udpclient", "loud", &buf)

	if !strings.Contains(buf.String(), "unknown log level") {
		t.Errorf("expected a warning about the level, got %q", buf.String())
	}
}
