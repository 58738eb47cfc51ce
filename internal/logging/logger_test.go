package logging

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging/correlation"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInitLogger_JSONWithCorrelation(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := InitLogger("debug", "json", &buf)

	logger.DebugContext(correlation.WithID(context.Background(), "cafe0001"), "hello", "session_id", "s1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"correlation_id":"cafe0001"`)
	assert.Contains(t, out, `"session_id":"s1"`)
}

func TestInitLogger_LevelFilters(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := InitLogger("warn", "text", &buf)
	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chatctl.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("line\n")
	require.NoError(t, err)
}
