// Package mirror republishes room events to NATS so external consumers
// (dashboards, recorders) can observe sessions without holding a WebSocket.
// Delivery is fire-and-forget, matching the in-process broadcast guarantee.
package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/quizlive/quizlive/internal/engine"
	"github.com/quizlive/quizlive/internal/events"
)

// Config holds NATS connection settings for the event mirror.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default mirror configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quiz.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher publishes room events to quiz.events.<room_id>.<type>.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to NATS with reconnect handling.
func NewPublisher(config Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Publisher{nc: nc, prefix: config.SubjectPrefix}, nil
}

// Publish mirrors one event. Failures are logged, never surfaced: the mirror
// must not interfere with room delivery.
func (p *Publisher) Publish(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for mirror")
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", p.prefix, ev.RoomID, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn().
			Err(err).
			Str("subject", subject).
			Msg("failed to mirror event")
	}
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("failed to drain NATS connection")
	}
}

const teeQueueSize = 256

// Sink consumes mirrored events. *Publisher is the production sink.
type Sink interface {
	Publish(ev *events.Event)
}

// Tee wraps a Broadcaster and mirrors every event it carries. Events are
// emitted while the room lock is held, so mirroring is decoupled through a
// buffered queue drained by its own goroutine; a slow sink drops events from
// the mirror only, never from room delivery.
type Tee struct {
	next engine.Broadcaster
	sink Sink

	queue chan *events.Event
	done  chan struct{}
}

// NewTee builds a mirroring Broadcaster and starts its drain goroutine.
func NewTee(next engine.Broadcaster, sink Sink) *Tee {
	t := &Tee{
		next:  next,
		sink:  sink,
		queue: make(chan *events.Event, teeQueueSize),
		done:  make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tee) drain() {
	defer close(t.done)
	for ev := range t.queue {
		t.sink.Publish(ev)
	}
}

// Close flushes the queued events to the sink and stops the drain goroutine.
func (t *Tee) Close() {
	close(t.queue)
	<-t.done
}

func (t *Tee) enqueue(ev *events.Event) {
	select {
	case t.queue <- ev:
	default:
		log.Warn().
			Str("event_type", string(ev.Type)).
			Str("room_id", ev.RoomID).
			Msg("mirror queue full, dropping event")
	}
}

func (t *Tee) ToRoom(roomID string, ev *events.Event) {
	t.next.ToRoom(roomID, ev)
	t.enqueue(ev)
}

func (t *Tee) ToConn(connID string, ev *events.Event) {
	t.next.ToConn(connID, ev)
	t.enqueue(ev)
}
