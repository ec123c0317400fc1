package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"sttbatch/internal/services"
)

const defaultSubject = "sttbatch.events"

// Envelope is the JSON document published for every event. The subject is
// the configured base subject plus "." and the event name.
type Envelope struct {
	Event   Event     `json:"event"`
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id,omitempty"`
	Payload Payload   `json:"payload,omitempty"`
}

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

type natsService struct {
	conn    msgPublisher
	subject string
	close   func() error
	now     func() time.Time
}

func connectNATS(url, subject string) (*natsService, error) {
	nc, err := nats.Connect(url,
		nats.Name("sttbatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	svc := newNATSService(nc, subject)
	svc.close = nc.Drain
	return svc, nil
}

func newNATSService(conn msgPublisher, subject string) *natsService {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = defaultSubject
	}
	return &natsService{conn: conn, subject: subject, now: time.Now}
}

func (n *natsService) Publish(ctx context.Context, event Event, payload Payload) error {
	envelope := Envelope{
		Event:   event,
		Time:    n.now().UTC(),
		Payload: payload,
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		envelope.RunID = runID
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := n.conn.Publish(n.subject+"."+string(event), data); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

func (n *natsService) Close() error {
	if n.close == nil {
		return nil
	}
	return n.close()
}
