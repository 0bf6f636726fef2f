package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StderrOnly(t *testing.T) {
	// Given: a warn-level CLI config writing to a buffer
	var buf bytes.Buffer
	cfg := CLIConfig(false)
	cfg.Stderr = &buf

	// When: logging at info and warn
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()
	logger.Info("hidden")
	logger.Warn("shown", slog.String("key", "value"))

	// Then: only the warning is written, as JSON
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "shown", decoded["msg"])
	assert.Equal(t, "value", decoded["key"])
}

func TestSetup_FileOnly(t *testing.T) {
	// Given: a serve-mode config pointing into a fresh directory
	path := filepath.Join(t.TempDir(), "nested", "autoprice.log")
	cfg := ServeConfig("debug")
	cfg.FilePath = path

	// When: logging a debug record
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("file record")
	cleanup()

	// Then: the directory is created and the record is in the file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file record")
	assert.False(t, cfg.WriteToStderr)
}

func TestSetup_NoWriters(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	require.NoError(t, err)
	defer cleanup()
	logger.Info("discarded")
}

func TestCLIConfig_Debug(t *testing.T) {
	cfg := CLIConfig(true)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, DefaultLogPath(), cfg.FilePath)
	assert.True(t, cfg.WriteToStderr)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.in))
		})
	}
}

func TestDefaultLogPath(t *testing.T) {
	assert.Equal(t, "autoprice.log", filepath.Base(DefaultLogPath()))
	assert.Equal(t, "logs", filepath.Base(DefaultLogDir()))
}

func TestFindLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	_, err := FindLogFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	got, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a 1MB limit keeping two rotated files
	path := filepath.Join(t.TempDir(), "autoprice.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	w.SetImmediateSync(false)

	chunk := bytes.Repeat([]byte("x"), 600*1024)

	// When: writing four chunks that each overflow the previous file
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: exactly .1 and .2 exist alongside the live file
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoprice.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoprice.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_TailAndFilter(t *testing.T) {
	// Given: a log with mixed levels and one non-JSON line
	path := writeLog(t,
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"cache_miss","key":"a"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"catalog_file_skipped","path":"bad.json"}`,
		`not json`,
		`{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"durable_write_failed"}`,
	)

	t.Run("all lines", func(t *testing.T) {
		v := NewViewer(Filter{}, true, &bytes.Buffer{})
		entries, err := v.Tail(path, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("last n", func(t *testing.T) {
		v := NewViewer(Filter{}, true, &bytes.Buffer{})
		entries, err := v.Tail(path, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "not json", entries[0].Raw)
	})

	t.Run("level filter drops invalid lines", func(t *testing.T) {
		v := NewViewer(Filter{Level: "warn"}, true, &bytes.Buffer{})
		entries, err := v.Tail(path, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "catalog_file_skipped", entries[0].Msg)
		assert.Equal(t, "durable_write_failed", entries[1].Msg)
	})

	t.Run("pattern filter", func(t *testing.T) {
		v := NewViewer(Filter{Pattern: regexp.MustCompile(`cache_`)}, true, &bytes.Buffer{})
		entries, err := v.Tail(path, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].Attrs["key"])
	})
}

func TestViewer_Format(t *testing.T) {
	var out bytes.Buffer
	v := NewViewer(Filter{}, true, &out)

	e := ParseLine(`{"time":"2026-01-02T10:00:01.5Z","level":"WARN","msg":"skipped","path":"bad.json","count":2}`)
	require.True(t, e.IsValid)
	v.Print([]Entry{e, ParseLine("plain")})

	assert.Equal(t, "10:00:01.500 WARN  skipped count=2 path=bad.json\nplain\n", out.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: an existing log being followed
	path := writeLog(t, `{"level":"INFO","msg":"before"}`)
	var out syncBuffer
	v := NewViewer(Filter{}, true, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path) }()

	// When: a new line is appended
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"level":"INFO","msg":"after"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new line is printed
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "after")
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.NotContains(t, out.String(), "before")
}
