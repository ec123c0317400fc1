package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/testsupport"
)

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"en-US_BroadbandModel"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckCommandPasses(t *testing.T) {
	server := newModelServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWatsonEndpoint(server.URL))
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0o755))
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"check"}, configPath)
	require.NoError(t, err)
	requireContains(t, out, "Input directory:")
	requireContains(t, out, "[OK] model en-US_BroadbandModel available")
}

func TestCheckCommandReportsFailures(t *testing.T) {
	server := newModelServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWatsonEndpoint(server.URL))
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"check"}, configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 checks failed")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "does not exist")
}

func TestRunPreflightAbortsBeforeSubmitting(t *testing.T) {
	fake, server := newFakeWatson(t)
	cfg := testsupport.NewConfig(t, testsupport.WithWatsonEndpoint(server.URL+"/instances/test"))
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"run", "--preflight"}, configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight")
	requireContains(t, out, "Input directory:")
	assert.Zero(t, fake.submitted())
}

func TestRenderStatusLine(t *testing.T) {
	assert.Equal(t, "  Watson STT:          [OK] ready", renderStatusLine("Watson STT", true, "ready", false))
	assert.Equal(t, "  Lock:                [ERROR]", renderStatusLine("Lock", false, "", false))
}
