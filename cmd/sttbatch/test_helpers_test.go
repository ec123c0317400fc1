package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/config"
)

// fakeWatson completes every job on its first status check.
type fakeWatson struct {
	mu      sync.Mutex
	next    int
	sources map[string]string
}

func newFakeWatson(t *testing.T) (*fakeWatson, *httptest.Server) {
	t.Helper()
	fake := &fakeWatson{sources: map[string]string{}}
	router := chi.NewRouter()
	router.Post("/instances/test/v1/recognitions", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.next++
		id := fmt.Sprintf("job-%d", fake.next)
		fake.sources[id] = r.Header.Get("Content-Type")
		fake.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": "waiting"})
	})
	router.Get("/instances/test/v1/recognitions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		fake.mu.Lock()
		_, ok := fake.sources[id]
		fake.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     id,
			"status": "completed",
			"results": []any{map[string]any{
				"result_index": 0,
				"results": []any{map[string]any{
					"final":        true,
					"alternatives": []any{map[string]any{"transcript": "transcript of " + id, "confidence": 0.9}},
				}},
			}},
		})
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeWatson) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(filepath.Dir(cfg.Paths.InputDir), "sttbatch.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
