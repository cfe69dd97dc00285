package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

// Every node constructor runs InitLoggers, and one process may host
// several nodes (a server plus the peers it proxy-pings). The factory
// installation must therefore survive repeated calls.
func TestInitLoggersRepeated(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("repeated InitLoggers panicked: %v", r)
		}
	}()

	InitLoggers("error")
	InitLoggers("info")
	InitLoggers("error")
}

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DEBUG},
		{"info", logger.INFO},
		{"warn", logger.WARNING},
		{"warning", logger.WARNING},
		{"ERROR", logger.ERROR},
	}

	for _, tc := range testCases {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
