package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/config"
	"sttbatch/internal/logging"
)

func TestNewRunLoggerWritesPerRunFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, path, err := logging.NewRunLogger(&cfg, "20261018T101500")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.LogDir, "sttbatch-20261018T101500.log"), path)

	logger.Info("pass finished")
	assert.Contains(t, readLog(t, path), `"msg":"pass finished"`)
}

func TestPruneRunLogsRemovesOnlyExpiredRunLogs(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -30)

	write := func(name string, mod time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
		return path
	}
	expired := write(logging.RunLogName("20260901T000000"), old)
	current := write(logging.RunLogName("20260902T000000"), old)
	fresh := write(logging.RunLogName("20261017T000000"), time.Now())
	unrelated := write("notes.log", old)

	removed := logging.PruneRunLogs(logging.NewNop(), dir, 14, current)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, expired)
	assert.FileExists(t, current)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestPruneRunLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logging.RunLogName("x"))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	old := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, os.Chtimes(path, old, old))

	assert.Zero(t, logging.PruneRunLogs(nil, dir, 0, ""))
	assert.FileExists(t, path)
}
