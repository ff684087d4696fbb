package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"GEMINI_API_KEY", "abc",
		"max_output_tokens", 4096,
		"refresh_token", "r",
		"action", "quiz",
		"dangling",
	})

	assert.Equal(t, []interface{}{
		"api_key", redacted,
		"GEMINI_API_KEY", redacted,
		"max_output_tokens", 4096,
		"refresh_token", redacted,
		"action", "quiz",
		"dangling",
	}, got)
}

func TestLoggerRedactsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("provider", "openai").Info("backend ready", "api_key", "sk-live", "model", "gpt-4o-mini")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, redacted, fields["api_key"])
		assert.Equal(t, "gpt-4o-mini", fields["model"])
		assert.Equal(t, "openai", fields["provider"])
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode)
		assert.NoError(t, err, mode)
		assert.NotNil(t, l)
	}
	NewNop().Info("discarded", "k", "v")
}
