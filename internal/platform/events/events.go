// Package events publishes queue state transitions for displays and
// notification consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type QueueEvent struct {
	Type        string    `json:"type"`
	BranchID    string    `json:"branch_id"`
	EntryID     string    `json:"entry_id"`
	PatientID   string    `json:"patient_id"`
	QueueNumber int       `json:"queue_number"`
	Status      string    `json:"status"`
	ActorID     string    `json:"actor_id,omitempty"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt QueueEvent) error
	Close() error
}

// KafkaPublisher keys messages by branch so a branch's events stay ordered
// within one partition. Writes are asynchronous: Publish only enqueues and
// delivery failures are logged from the writer's completion callback.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn().Err(err).Int("messages", len(msgs)).Str("topic", topic).Msg("deliver queue events failed")
			}
		},
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt QueueEvent) error {
	msg, err := encode(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write queue event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(evt QueueEvent) (kafka.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal queue event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(evt.BranchID),
		Value: body,
		Time:  evt.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}, nil
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evt QueueEvent) error {
	p.logger.Info().
		Str("event", evt.Type).
		Str("branch_id", evt.BranchID).
		Str("entry_id", evt.EntryID).
		Int("queue_number", evt.QueueNumber).
		Str("status", evt.Status).
		Msg("queue event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout delivers each event to every publisher, in order. Put in-process
// publishers ahead of network ones. One failing
// publisher does not stop the others; their errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt QueueEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []QueueEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt QueueEvent) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []QueueEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]QueueEvent(nil), r.events...)
}
