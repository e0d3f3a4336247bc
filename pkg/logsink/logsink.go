package logsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Forwarder ships runtime log lines to an external consumer
type Forwarder interface {
	Forward(ctx context.Context, event *types.RuntimeLogEvent) error
}

// defaultQueueSize bounds the lines waiting to be forwarded
const defaultQueueSize = 256

// Sink writes broker log lines to the structured log and, optionally,
// to a Forwarder. Forwarding runs on its own goroutine so a slow consumer
// never holds up the broker connection that published the line. Lines
// arriving while the queue is full are dropped.
type Sink struct {
	bus       *events.Bus
	forwarder Forwarder
	timeout   time.Duration
	queueSize int
	sub       *events.Subscription
	logger    zerolog.Logger

	mu     sync.Mutex
	queue  chan *types.RuntimeLogEvent
	closed bool
	wg     sync.WaitGroup
}

// New creates a sink. forwarder may be nil.
func New(bus *events.Bus, forwarder Forwarder) *Sink {
	return newSink(bus, forwarder, defaultQueueSize)
}

func newSink(bus *events.Bus, forwarder Forwarder, queueSize int) *Sink {
	return &Sink{
		bus:       bus,
		forwarder: forwarder,
		timeout:   5 * time.Second,
		queueSize: queueSize,
		logger:    log.WithComponent("logsink"),
	}
}

// Start subscribes the sink to runtime log events
func (s *Sink) Start() {
	if s.forwarder != nil {
		s.queue = make(chan *types.RuntimeLogEvent, s.queueSize)
		s.wg.Add(1)
		go s.forward()
	}
	s.sub = s.bus.Subscribe(events.EventRuntimeLog, s.handle)
}

// Stop unsubscribes the sink and waits for queued lines to be forwarded
func (s *Sink) Stop() {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}

	s.mu.Lock()
	if s.queue != nil && !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sink) handle(e events.Event) {
	event, ok := e.(*types.RuntimeLogEvent)
	if !ok {
		return
	}

	s.logger.Info().
		Str("workspace_id", event.RuntimeID.WorkspaceID).
		Str("owner_id", event.RuntimeID.OwnerID).
		Time("broker_time", event.Time).
		Msg(event.Text)

	if s.forwarder == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- event:
	default:
		metrics.RuntimeLogLinesDropped.Inc()
	}
}

func (s *Sink) forward() {
	defer s.wg.Done()

	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.forwarder.Forward(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("workspace_id", event.RuntimeID.WorkspaceID).Msg("Failed to forward broker log line")
		}
		cancel()
	}
}

// Message is the JSON document published for each forwarded log line
type Message struct {
	RuntimeID types.RuntimeIdentity `json:"runtimeId"`
	Text      string                `json:"text"`
	Time      time.Time             `json:"time"`
}

// NATSForwarder publishes log lines on {prefix}.{workspaceId}.log
type NATSForwarder struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSForwarder connects to the NATS server at url
func NewNATSForwarder(url, prefix string) (*NATSForwarder, error) {
	conn, err := nats.Connect(url,
		nats.Name("burrow-logsink"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if prefix == "" {
		prefix = "burrow.runtime"
	}
	return &NATSForwarder{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject log lines of workspaceID are published on
func (f *NATSForwarder) Subject(workspaceID string) string {
	return f.prefix + "." + workspaceID + ".log"
}

// Forward publishes one log line. Publishing is buffered by the client;
// Close flushes what is still pending.
func (f *NATSForwarder) Forward(ctx context.Context, event *types.RuntimeLogEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		RuntimeID: event.RuntimeID,
		Text:      event.Text,
		Time:      event.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to encode log line: %w", err)
	}
	if err := f.conn.Publish(f.Subject(event.RuntimeID.WorkspaceID), data); err != nil {
		return fmt.Errorf("failed to publish log line: %w", err)
	}
	return nil
}

// Connected reports whether the NATS connection is up
func (f *NATSForwarder) Connected() bool {
	return f.conn.IsConnected()
}

// Close drains and closes the NATS connection
func (f *NATSForwarder) Close() error {
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
		return err
	}
	return nil
}
