package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		prefix    string
		wantLevel log.Level
		wantDebug bool
	}{
		{"default", "", "", log.InfoLevel, false},
		{"debug", "debug", "", log.DebugLevel, true},
		{"warn", "warn", "scan ", log.WarnLevel, false},
		{"error", "error", "", log.ErrorLevel, false},
		{"unknown falls back to info", "verbose", "", log.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLevel, tt.level)
			t.Setenv(EnvPrefix, tt.prefix)

			var buf bytes.Buffer
			lg := NewLoggerWithWriter(&buf)
			if got := lg.GetLevel(); got != tt.wantLevel {
				t.Errorf("level = %v, want %v", got, tt.wantLevel)
			}
			if got := IsDebug(); got != tt.wantDebug {
				t.Errorf("IsDebug = %v, want %v", got, tt.wantDebug)
			}

			lg.Error("boom")
			want := tt.prefix
			if want == "" {
				want = "smmscan"
			}
			if !strings.Contains(buf.String(), strings.TrimSpace(want)) {
				t.Errorf("output %q lacks prefix %q", buf.String(), want)
			}
			if err := lg.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}
