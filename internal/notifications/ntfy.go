package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "sttbatch/0.1.0"

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	return &ntfyService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatNtfy(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) Close() error {
	return nil
}

func formatNtfy(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		return message{
			title: "sttbatch - Run Started",
			body:  fmt.Sprintf("Submitting %d audio files for transcription", payload.intValue("files")),
			tags:  []string{"sttbatch", "run", "started"},
		}, true
	case EventRunCompleted:
		completed := payload.intValue("completed")
		failed := payload.intValue("abandoned") + payload.intValue("dropped") + payload.intValue("lost")
		outstanding := payload.intValue("outstanding")
		elapsed := payload.durationValue("duration_seconds").Round(time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		msg := message{
			title: "sttbatch - Run Complete",
			body:  fmt.Sprintf("Transcribed %d files in %s", completed, elapsed),
			tags:  []string{"sttbatch", "run", "completed"},
		}
		if failed > 0 || outstanding > 0 {
			msg.title = "sttbatch - Run Complete (with errors)"
			msg.body = fmt.Sprintf("%d transcribed, %d failed, %d outstanding in %s", completed, failed, outstanding, elapsed)
		}
		return msg, true
	case EventTranscriptLost:
		body := fmt.Sprintf("⚠️ Transcript lost for %s", payload.stringValue("source_file"))
		if jobID := payload.stringValue("job_id"); jobID != "" {
			body += fmt.Sprintf(" (job %s)", jobID)
		}
		if reason := payload.stringValue("error"); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "sttbatch - Transcript Lost",
			body:     body,
			tags:     []string{"sttbatch", "transcript", "lost"},
			priority: "urgent",
		}, true
	case EventJobAbandoned:
		return message{
			title:    "sttbatch - Job Abandoned",
			body:     fmt.Sprintf("Gave up on %s after %d attempts", payload.stringValue("source_file"), payload.intValue("attempts")),
			tags:     []string{"sttbatch", "job", "abandoned"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.stringValue("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if reason := payload.stringValue("error"); reason != "" {
			builder.WriteString(reason)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "sttbatch - Error",
			body:     builder.String(),
			tags:     []string{"sttbatch", "error", "alert"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    "sttbatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"sttbatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
