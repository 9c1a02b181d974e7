// Package stream publishes heart-rate cycles to NATS so other services can
// follow a session without polling the HTTP API.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/rppg/pipeline"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject prefix cycles are published under.
const DefaultSubject = "pulse.cycles"

// Connect dials url with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("pulse"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				monitoring.Logf("nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			monitoring.Logf("nats: reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends each cycle's summary as JSON on "<subject>.<session>".
// The full result, series included, goes on "<subject>.<session>.full"
// when Full is set.
type Publisher struct {
	conn    Conn
	subject string
	Full    bool
}

// NewPublisher returns a Publisher on conn. An empty subject uses
// DefaultSubject.
func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject a session's summaries are published on.
func (p *Publisher) Subject(sessionID string) string {
	if sessionID == "" {
		return p.subject
	}
	return p.subject + "." + sessionID
}

// PublishCycle implements pipeline.Publisher.
func (p *Publisher) PublishCycle(r *pipeline.CycleResult) error {
	subject := p.Subject(r.SessionID)
	b, err := json.Marshal(r.Summarize())
	if err != nil {
		return fmt.Errorf("marshal cycle %d: %w", r.Cycle, err)
	}
	if err := p.conn.Publish(subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if !p.Full {
		return nil
	}
	full, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal cycle %d: %w", r.Cycle, err)
	}
	if err := p.conn.Publish(subject+".full", full); err != nil {
		return fmt.Errorf("publish %s.full: %w", subject, err)
	}
	return nil
}
