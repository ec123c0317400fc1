package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sttbatch/internal/config"
)

// Event identifies a run lifecycle notification.
type Event string

const (
	EventRunStarted       Event = "run_started"
	EventRunCompleted     Event = "run_completed"
	EventTranscriptLost   Event = "transcript_lost"
	EventJobAbandoned     Event = "job_abandoned"
	EventError            Event = "error"
	EventTestNotification Event = "test"
)

// Payload carries event fields. Values should be JSON friendly.
type Payload map[string]any

// Service delivers run events to the configured channels.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds the notification fan-out from configuration. Channels
// without settings are omitted; with none configured a noop service is
// returned. Run and error events can be muted per config.
func NewService(cfg *config.Config) (Service, error) {
	if cfg == nil {
		return noopService{}, nil
	}
	n := cfg.Notifications
	var services multiService

	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		timeout := time.Duration(n.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		services = append(services, newNtfyService(topic, timeout))
	}
	if url := strings.TrimSpace(n.NATSURL); url != "" {
		publisher, err := connectNATS(url, n.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		services = append(services, publisher)
	}

	if len(services) == 0 {
		return noopService{}, nil
	}
	var svc Service = services
	if len(services) == 1 {
		svc = services[0]
	}
	return filtered{next: svc, runEvents: n.RunEvents, errors: n.Errors}, nil
}

// filtered drops events muted by configuration.
type filtered struct {
	next      Service
	runEvents bool
	errors    bool
}

func (f filtered) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventRunStarted, EventRunCompleted:
		if !f.runEvents {
			return nil
		}
	case EventError:
		if !f.errors {
			return nil
		}
	}
	return f.next.Publish(ctx, event, payload)
}

func (f filtered) Close() error {
	return f.next.Close()
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, svc := range m {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }

// NewNoop returns a service that drops every event.
func NewNoop() Service {
	return noopService{}
}

func (p Payload) stringValue(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) intValue(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) durationValue(key string) time.Duration {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case time.Duration:
		return v
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}
