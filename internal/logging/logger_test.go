package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_SilentWhenUnset(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be a no-op when no level is configured")
	}
}

func TestInitialize_UnknownLevel(t *testing.T) {
	if err := Initialize("verbose"); err == nil {
		t.Error("Initialize(\"verbose\") should fail")
	}
}

func TestInitializeWithDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := InitializeWithDefault("", "warn"); err != nil {
		t.Fatalf("InitializeWithDefault() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestInitializeWithDefault_EnvWins(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")

	if err := InitializeWithDefault("", "error"); err != nil {
		t.Fatalf("InitializeWithDefault() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("environment level should take precedence over the default")
	}
}

func TestDomainHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogLinkEvent("disconnected", zap.Int("reason", 8))
	LogAddress("wlan0", "10.0.0.7")
	LogModeChange("scan", "connected")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if got := entries[0].ContextMap()["event"]; got != "disconnected" {
		t.Errorf("link event field = %v, want disconnected", got)
	}
	if got := entries[1].ContextMap()["addr"]; got != "10.0.0.7" {
		t.Errorf("addr field = %v, want 10.0.0.7", got)
	}
	if got := entries[2].ContextMap()["to"]; got != "connected" {
		t.Errorf("to field = %v, want connected", got)
	}
}

func TestInitializeToFile(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	path := filepath.Join(t.TempDir(), "probewatch.log")

	if err := InitializeToFile("", "info", path); err != nil {
		t.Fatalf("InitializeToFile() error = %v", err)
	}
	defer SetLogger(nil)

	Info("hello from the dashboard")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from the dashboard") {
		t.Errorf("log file = %q", data)
	}
}

func TestLevelHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
}
