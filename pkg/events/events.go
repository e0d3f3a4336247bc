package events

import (
	"sync"

	"github.com/cuemby/burrow/pkg/log"
)

// EventType represents the type of event
type EventType string

const (
	EventBrokerStatusChanged EventType = "broker.status_changed"
	EventRuntimeLog          EventType = "runtime.log"
)

// Event is anything that can be published on the bus
type Event interface {
	EventType() EventType
}

// Handler receives events for the type it subscribed to. Handlers may be
// invoked concurrently from different publishing goroutines.
type Handler func(Event)

// Subscription is the handle returned by Subscribe
type Subscription struct {
	id        uint64
	eventType EventType
	handler   Handler
	bus       *Bus
	onClose   func()
	once      sync.Once
}

// EventType returns the type this subscription listens to
func (s *Subscription) EventType() EventType {
	return s.eventType
}

// Unsubscribe removes the subscription from its bus. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.Unsubscribe(s)
}

// Bus is a process-wide typed publish/subscribe component.
// Publish dispatches synchronously to a snapshot of the subscribers
// registered for the event type; no lock is held while handlers run.
type Bus struct {
	subscribers map[EventType]map[uint64]*Subscription
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[uint64]*Subscription),
	}
}

// Subscribe registers h for events of type t
func (b *Bus) Subscribe(t EventType, h Handler) *Subscription {
	return b.subscribe(t, h, nil)
}

func (b *Bus) subscribe(t EventType, h Handler, onClose func()) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:        b.nextID,
		eventType: t,
		handler:   h,
		bus:       b,
		onClose:   onClose,
	}
	if b.closed {
		sub.release()
		return sub
	}

	subs, ok := b.subscribers[t]
	if !ok {
		subs = make(map[uint64]*Subscription)
		b.subscribers[t] = subs
	}
	subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscription. Once it returns, the handler is not
// invoked for events published afterwards.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if subs, ok := b.subscribers[sub.eventType]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(b.subscribers, sub.eventType)
		}
	}
	b.mu.Unlock()

	sub.release()
}

// Publish publishes an event to all subscribers of its type
func (b *Bus) Publish(event Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, 0, len(b.subscribers[event.EventType()]))
	for _, sub := range b.subscribers[event.EventType()] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("events")
			logger.Error().
				Interface("panic", r).
				Str("event_type", string(event.EventType())).
				Msg("Event handler panicked")
		}
	}()
	sub.handler(event)
}

// Stream creates a channel-backed subscription. Delivery never blocks the
// publisher: events are dropped when the buffer is full. The channel is
// closed when the subscription is removed.
func (b *Bus) Stream(t EventType, buffer int) (<-chan Event, *Subscription) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	handler := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			// Subscriber buffer full, skip
		}
	}
	onClose := func() {
		mu.Lock()
		defer mu.Unlock()
		closed = true
		close(ch)
	}

	return ch, b.subscribe(t, handler, onClose)
}

// SubscriberCount returns the number of active subscribers for t
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[t])
}

// Closed reports whether Close has been called
func (b *Bus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close releases every subscription; later publishes are dropped
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var subs []*Subscription
	for _, byID := range b.subscribers {
		for _, sub := range byID {
			subs = append(subs, sub)
		}
	}
	b.subscribers = make(map[EventType]map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.release()
	}
}

func (s *Subscription) release() {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}
