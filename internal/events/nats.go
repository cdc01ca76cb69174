// Package events publishes batch outcomes to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// DocumentEvent is published once per finished entry.
type DocumentEvent struct {
	RunID   string      `json:"run_id"`
	Entry   batch.Entry `json:"entry"`
	Emitted time.Time   `json:"emitted"`
}

// RunEvent is published when a run completes.
type RunEvent struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Mode     string    `json:"mode"`
	Variants []string  `json:"variants"`
	Total    int       `json:"total"`
	Failed   int       `json:"failed"`
}

// Publisher implements batch.Observer over a NATS connection.
type Publisher struct {
	conn    Conn
	subject string
	now     func() time.Time
}

var _ batch.Observer = (*Publisher)(nil)

// NewPublisher publishes under subject.document and subject.run.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject, now: time.Now}
}

// Connect dials the configured server. It returns nil when events are disabled.
func Connect(cfg config.EventsConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts := []nats.Option{nats.Name("texbuilder"), nats.Timeout(5 * time.Second)}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryEvents, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Build()
	}
	slog.Info("NATS publisher connected", "url", cfg.URL, logfields.Subject(cfg.Subject))
	return NewPublisher(conn, cfg.Subject), nil
}

// DocumentSubject is the subject of per-document events.
func (p *Publisher) DocumentSubject() string { return p.subject + ".document" }

// RunSubject is the subject of run summaries.
func (p *Publisher) RunSubject() string { return p.subject + ".run" }

// EntryDone publishes a DocumentEvent. Failures are logged.
func (p *Publisher) EntryDone(_ context.Context, run batch.Run, e batch.Entry) {
	evt := DocumentEvent{RunID: run.ID, Entry: e, Emitted: p.now()}
	if err := p.publish(p.DocumentSubject(), evt); err != nil {
		slog.Warn("Event publish failed", logfields.RunID(run.ID), logfields.Path(e.Path), logfields.Error(err))
	}
}

// RunDone publishes a RunEvent and flushes the connection.
func (p *Publisher) RunDone(_ context.Context, run batch.Run, entries []batch.Entry) {
	variants := make([]string, 0, len(run.Variants))
	for _, v := range run.Variants {
		variants = append(variants, string(v))
	}
	evt := RunEvent{
		RunID:    run.ID,
		Started:  run.Started,
		Finished: p.now(),
		Mode:     run.Mode.String(),
		Variants: variants,
		Total:    len(entries),
		Failed:   batch.Failures(entries),
	}
	if err := p.publish(p.RunSubject(), evt); err != nil {
		slog.Warn("Event publish failed", logfields.RunID(run.ID), logfields.Error(err))
		return
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		slog.Warn("NATS flush failed", logfields.RunID(run.ID), logfields.Error(err))
	}
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
