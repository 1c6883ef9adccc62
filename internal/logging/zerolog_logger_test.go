package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestJSONLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, false)

	logger.Verbose("hidden %d", 1)
	logger.Info("info message: %s", "value")
	logger.Error("error message: %s", "value")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "info message: value", entries[0]["message"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "error message: value", entries[1]["message"])
}

func TestJSONLogger_VerboseWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, true)

	logger.Verbose("test message: %s", "value")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "test message: value", entries[0]["message"])
}

func TestNew_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Console: &buf})

	logger.Info("server listening on %s", ":8080")
	require.NoError(t, logger.Close())

	assert.Contains(t, buf.String(), "server listening on :8080")
}

func TestNew_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "sfdash.log")

	var console bytes.Buffer
	logger := New(Options{Console: &console, File: path})
	logger.Error("token file unreadable")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token file unreadable")
	assert.Contains(t, console.String(), "token file unreadable")
}

func TestNew_JSONWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfdash.log")

	var console bytes.Buffer
	logger := New(Options{Console: &console, File: path, JSON: true})
	logger.Info("query %s finished", "top-customers")
	require.NoError(t, logger.Close())

	entries := decodeLines(t, &console)
	require.Len(t, entries, 1)
	assert.Equal(t, "query top-customers finished", entries[0]["message"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fileEntries := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, fileEntries, 1)
	assert.Equal(t, "info", fileEntries[0]["level"])
	assert.Equal(t, "query top-customers finished", fileEntries[0]["message"])
}

func TestJSONLogger_ConcurrentSafety(t *testing.T) {
	var buf syncBuffer
	logger := NewJSONLogger(&buf, true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.Info("message %d", id)
			logger.Verbose("verbose %d", id)
			logger.Error("error %d", id)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 30)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "corrupted line: %q", line)
	}
}

func TestNullLogger_ConcurrentSafety(t *testing.T) {
	logger := NewNullLogger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.Info("message %d", id)
			logger.Verbose("verbose %d", id)
			logger.Error("error %d", id)
		}(i)
	}
	wg.Wait()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
