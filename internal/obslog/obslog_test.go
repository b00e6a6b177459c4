package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel, "WARN": zapcore.WarnLevel, "warning": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel, "": zapcore.InfoLevel, "bogus": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%s want %s", in, got, want)
		}
	}
}

func TestInitWritesFile(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	path := filepath.Join(t.TempDir(), "nested", "cm.log")
	if err := Init(Options{Level: "info", Format: "json", ToFile: true, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Info("room_created", zap.String("room_id", "r1"))
	_ = L().Sync()

	raw, err := os.ReadFile(path)
	if err != nil { t.Fatalf("read log: %v", err) }
	if !strings.Contains(string(raw), `"room_id":"r1"`) {
		t.Fatalf("log line missing field: %s", raw)
	}
}

func TestOrFallsBackToGlobal(t *testing.T) {
	if Or(nil) != L() { t.Fatalf("Or(nil) should return the process logger") }
	l := zap.NewNop()
	if Or(l) != l { t.Fatalf("Or(l) should return l") }
}
