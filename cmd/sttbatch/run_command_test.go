package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/runlock"
	"sttbatch/internal/testsupport"
	"sttbatch/internal/workflow"
)

func TestRunTranscribesEveryInput(t *testing.T) {
	fake, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithWatsonEndpoint(server.URL+"/instances/test"),
		testsupport.WithInputFiles("a.mp3", "b.wav", "notes.txt"),
	)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"run", "--json", "--concurrency", "2"}, configPath)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.submitted())

	var summary struct {
		Passes int                   `json:"passes"`
		Files  []workflow.FileResult `json:"files"`
		Counts map[string]int        `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Passes)
	require.Len(t, summary.Files, 2)
	assert.Equal(t, 2, summary.Counts["completed"])
	for _, file := range summary.Files {
		assert.Equal(t, workflow.OutcomeCompleted, file.Outcome)
		assert.Equal(t, 1, file.Attempts)
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		content, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, name))
		require.NoError(t, err)
		assert.Contains(t, string(content), "transcript of job-")
	}
}

func TestRootCommandRendersTable(t *testing.T) {
	_, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithWatsonEndpoint(server.URL+"/instances/test"),
		testsupport.WithInputFiles("talk.flac"),
	)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, nil, configPath)
	require.NoError(t, err)
	requireContains(t, out, "talk.flac")
	requireContains(t, out, "completed")
	requireContains(t, out, "1 files in")
}

func TestRunWithEmptyInputDirectory(t *testing.T) {
	_, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWatsonEndpoint(server.URL+"/instances/test"))
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0o755))
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"run"}, configPath)
	require.NoError(t, err)
	requireContains(t, out, "No input files found")
}

func TestRunFailsWhenInputDirectoryMissing(t *testing.T) {
	fake, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWatsonEndpoint(server.URL+"/instances/test"))
	configPath := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"run"}, configPath)
	require.Error(t, err)
	assert.Zero(t, fake.submitted())
}

func TestRunRefusesConcurrentInstance(t *testing.T) {
	fake, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithWatsonEndpoint(server.URL+"/instances/test"),
		testsupport.WithInputFiles("a.mp3"),
	)
	configPath := writeTestConfig(t, cfg)

	held, err := runlock.Acquire(cfg.LockPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = held.Release() })

	_, _, err = runCLI(t, []string{"run"}, configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another sttbatch run holds")
	assert.Zero(t, fake.submitted())
}

func TestRunRejectsInvalidOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	_, _, err := runCLI(t, []string{"run", "--concurrency", "0"}, configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--concurrency must be positive")

	_, _, err = runCLI(t, []string{"run", "--max-attempts", "-1"}, configPath)
	require.Error(t, err)
}
