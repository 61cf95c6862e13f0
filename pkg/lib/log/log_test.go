package log

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv(t *testing.T) {
	cfg := parseEnv("core/endpoint=debug, gossip=error ,warn", "json")

	assert.True(t, cfg.json)
	assert.Equal(t, slog.LevelWarn, cfg.defaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.levelFor("core/endpoint"))
	assert.Equal(t, slog.LevelError, cfg.levelFor("gossip"))
	assert.Equal(t, slog.LevelWarn, cfg.levelFor("unknown"))
}

func TestParseEnv_IgnoresGarbage(t *testing.T) {
	cfg := parseEnv("nonsense,x=loud", "")

	assert.False(t, cfg.json)
	assert.Equal(t, slog.LevelInfo, cfg.defaultLevel)
	assert.Empty(t, cfg.componentLevels)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLazyLogger_Output(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	l := Logger("test/component")
	l.Warn("something happened", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "component=test/component")
	assert.Contains(t, out, "something happened")
	assert.Contains(t, out, "key=value")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghijk", 8))
}

func TestValidateLevelSpec(t *testing.T) {
	assert.NoError(t, ValidateLevelSpec(""))
	assert.NoError(t, ValidateLevelSpec("debug"))
	assert.NoError(t, ValidateLevelSpec("core/endpoint=debug, warn"))
	assert.Error(t, ValidateLevelSpec("verbose"))
	assert.Error(t, ValidateLevelSpec("=debug"))
	assert.Error(t, ValidateLevelSpec("core/endpoint=loud"))
}

func TestConfigure_RejectsUnknownFormat(t *testing.T) {
	assert.Error(t, Configure("", "xml"))
	assert.Error(t, Configure("nope", ""))
}
