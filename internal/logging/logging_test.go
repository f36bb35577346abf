package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel, format LogFormat) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewWithWriter(Config{Level: level, Format: format}, &buf), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{LevelError, slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("stdout and stderr", func(t *testing.T) {
		for _, out := range []string{"stdout", "stderr", ""} {
			logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: out})
			require.NoError(t, err)
			assert.NotNil(t, logger)
		}
	})

	t.Run("file output creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "portward.log")
		logger, err := New(Config{Level: LevelInfo, Format: FormatJSON, Output: path})
		require.NoError(t, err)

		logger.Info("scan started", "job_id", "abc")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"job_id":"abc"`)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(logFilePerm), info.Mode().Perm())
	})

	t.Run("unwritable path fails", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		_, err := New(Config{Output: filepath.Join(blocker, "sub", "out.log")})
		assert.Error(t, err)
	})
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelWarn, FormatJSON)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestDomainHelpers(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, FormatJSON)

	logger.InfoDatabase("migrated", "version", "001")
	logger.ErrorDatabase("insert failed", errors.New("conn reset"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "database", lines[0]["component"])
	assert.Equal(t, "001", lines[0]["version"])
	assert.Equal(t, "database", lines[1]["component"])
	assert.Equal(t, "conn reset", lines[1]["error"])
}

func TestTextFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelInfo, FormatText)
	logger.Info("hello", "port", 22)

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "port=22")
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	logger, buf := newBufferLogger(t, LevelDebug, FormatJSON)
	SetDefault(logger)
	assert.Same(t, logger, Default())

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	InfoDatabase("db")
	ErrorDatabase("db err", errors.New("y"))
	Component("registry").Info("component line")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 7)
	assert.Equal(t, "registry", lines[6]["component"])
}

func TestConcurrentLogging(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelInfo, FormatJSON)

	// slog handlers serialize writes, so every line must survive intact.
	var mu sync.Mutex
	safe := NewWithWriter(logger.Config(), writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			safe.Info("probe", "port", i)
		}(i)
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, buf), 20)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
