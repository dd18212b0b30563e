package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 5} {
		logger := New(n)
		if logger == nil {
			t.Fatalf("expected non-nil logger for debugCount=%d", n)
		}
		logger.Info("smoke test")
		logger.Sync()
	}
}

func TestNewDebugLevelEnablesDebugLogs(t *testing.T) {
	logger := New(2)
	if ce := logger.Check(zapcore.DebugLevel, "debug probe"); ce == nil {
		t.Fatalf("expected debug level enabled at debugCount=2")
	}
}

func TestNewDefaultLevelDisablesDebugLogs(t *testing.T) {
	logger := New(0)
	if ce := logger.Check(zapcore.DebugLevel, "debug probe"); ce != nil {
		t.Fatalf("expected debug level disabled at debugCount=0")
	}
}
