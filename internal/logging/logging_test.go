package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantLevel     logrus.Level
		wantJSON      bool
	}{
		{"debug", "json", logrus.DebugLevel, true},
		{"WARN", "text", logrus.WarnLevel, false},
		{"nonsense", "", logrus.InfoLevel, false},
	}
	for _, tt := range tests {
		logger := New(tt.level, tt.format)
		if logger.GetLevel() != tt.wantLevel {
			t.Fatalf("New(%q) level = %v, want %v", tt.level, logger.GetLevel(), tt.wantLevel)
		}
		_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
		if isJSON != tt.wantJSON {
			t.Fatalf("New(%q, %q) json formatter = %v", tt.level, tt.format, isJSON)
		}
	}
}
