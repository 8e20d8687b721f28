package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := SetupLogger("debug")
	if logger == nil {
		t.Fatal("SetupLogger returned nil")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}
	if logger.Component() != "app" {
		t.Errorf("Component() = %q, want app", logger.Component())
	}
}

func TestInstanceOrigin(t *testing.T) {
	a, b := InstanceOrigin(), InstanceOrigin()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty origins, got %q and %q", a, b)
	}
	if strings.Count(a, "-") < 2 {
		t.Errorf("origin %q should carry host, pid and suffix", a)
	}
}
