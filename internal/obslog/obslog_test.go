package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")
	o := OptionsFromEnv(DefaultOptions())
	if o.Level != "debug" || o.Format != "json" || o.Console {
		t.Fatalf("unexpected options: %+v", o)
	}
	if o.File != filepath.Join("logs", "agent.log") {
		t.Fatalf("file = %q", o.File)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agent.log")
	logger, err := New(Options{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file = %q", data)
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := L()
	t.Cleanup(func() { globalLogger = prev })
	if err := Init(Options{Level: "error", Format: "console", Console: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if L() == prev {
		t.Fatalf("global logger not replaced")
	}
	if L().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at error level")
	}
}

func TestInitFromEnvAndNamed(t *testing.T) {
	prev := L()
	t.Cleanup(func() { globalLogger = prev })
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_TO_CONSOLE", "true")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FILE", "")
	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	named := Named("wscheck")
	if named.Core().Enabled(zapcore.InfoLevel) || !named.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("named logger should follow LOG_LEVEL=warn")
	}
}
