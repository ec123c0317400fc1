package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/config"
	"sttbatch/internal/notifications"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc, err := notifications.NewService(&cfg)
	require.NoError(t, err)
	assert.NoError(t, svc.Publish(context.Background(), notifications.EventRunStarted, notifications.Payload{"files": 2}))
	assert.NoError(t, svc.Close())
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "run started",
			event:         notifications.EventRunStarted,
			payload:       notifications.Payload{"files": 3},
			expectTitle:   "sttbatch - Run Started",
			expectMessage: "Submitting 3 audio files for transcription",
			expectTags:    "sttbatch,run,started",
		},
		{
			name:  "run completed cleanly",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"completed":        4,
				"duration_seconds": 65.2,
			},
			expectTitle:   "sttbatch - Run Complete",
			expectMessage: "Transcribed 4 files in 1m5s",
			expectTags:    "sttbatch,run,completed",
		},
		{
			name:  "run completed with failures",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"completed":        2,
				"dropped":          1,
				"lost":             1,
				"duration_seconds": 3.0,
			},
			expectTitle:   "sttbatch - Run Complete (with errors)",
			expectMessage: "2 transcribed, 2 failed, 0 outstanding in 3s",
			expectTags:    "sttbatch,run,completed",
		},
		{
			name:  "transcript lost",
			event: notifications.EventTranscriptLost,
			payload: notifications.Payload{
				"source_file": "a.mp3",
				"job_id":      "job-1",
				"error":       "disk full",
			},
			expectTitle:    "sttbatch - Transcript Lost",
			expectMessage:  "⚠️ Transcript lost for a.mp3 (job job-1): disk full",
			expectTags:     "sttbatch,transcript,lost",
			expectPriority: "urgent",
		},
		{
			name:  "job abandoned",
			event: notifications.EventJobAbandoned,
			payload: notifications.Payload{
				"source_file": "c.mp3",
				"attempts":    3,
			},
			expectTitle:    "sttbatch - Job Abandoned",
			expectMessage:  "Gave up on c.mp3 after 3 attempts",
			expectTags:     "sttbatch,job,abandoned",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "listing inputs",
				"error":   "permission denied",
			},
			expectTitle:    "sttbatch - Error",
			expectMessage:  "❌ Error with listing inputs: permission denied",
			expectTags:     "sttbatch,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc, err := notifications.NewService(&cfg)
			require.NoError(t, err)
			require.NoError(t, svc.Publish(context.Background(), tc.event, tc.payload))

			assert.Equal(t, tc.expectTitle, captured.title)
			assert.Equal(t, tc.expectMessage, captured.body)
			assert.Equal(t, tc.expectTags, captured.tags)
			assert.Equal(t, tc.expectPriority, captured.priority)
		})
	}
}

func TestNtfyServiceRespectsMutedEvents(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RunEvents = false
	cfg.Notifications.Errors = false

	svc, err := notifications.NewService(&cfg)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, svc.Publish(ctx, notifications.EventRunStarted, notifications.Payload{"files": 1}))
	require.NoError(t, svc.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{}))
	require.NoError(t, svc.Publish(ctx, notifications.EventError, notifications.Payload{"error": "x"}))
	assert.Zero(t, calls.Load())

	require.NoError(t, svc.Publish(ctx, notifications.EventTranscriptLost, notifications.Payload{"source_file": "a.mp3"}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc, err := notifications.NewService(&cfg)
	require.NoError(t, err)
	err = svc.Publish(context.Background(), notifications.EventJobAbandoned, notifications.Payload{"source_file": "a.mp3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy returned 403")
}

func TestNewServiceFailsOnUnreachableNATS(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NATSURL = "nats://127.0.0.1:1"

	_, err := notifications.NewService(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect nats")
}
