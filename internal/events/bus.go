package events

import (
	"sync"

	"github.com/rs/zerolog"

	"editorsync/internal/metrics"
)

// Handler receives a published event.
type Handler func(Event)

// Bus delivers events to every current subscriber of their topic, one event
// at a time. The goroutine that finds the bus idle dispatches: its Publish
// returns once its event and everything queued meanwhile are delivered. A
// Publish made while another goroutine (or a handler) is dispatching only
// queues the event and returns before delivery.
type Bus struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	handlers    map[Topic]map[int]Handler
	all         map[int]Handler
	nextID      int
	queue       []Event
	dispatching bool
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[Topic]map[int]Handler),
		all:      make(map[int]Handler),
	}
}

// Subscribe registers fn for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.handlers[topic][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}
}

// SubscribeAll registers fn for every topic.
func (b *Bus) SubscribeAll(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.all[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers ev. Invalid payloads are dropped.
func (b *Bus) Publish(ev Event) {
	if ev == nil || !ev.Valid() {
		b.logger.Debug().Interface("event", ev).Msg("dropping malformed event")
		return
	}
	metrics.BusEvents.WithLabelValues(string(ev.Topic())).Inc()

	b.mu.Lock()
	b.queue = append(b.queue, ev)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		targets := make([]Handler, 0, len(b.handlers[next.Topic()])+len(b.all))
		for _, h := range b.handlers[next.Topic()] {
			targets = append(targets, h)
		}
		for _, h := range b.all {
			targets = append(targets, h)
		}
		b.mu.Unlock()
		for _, h := range targets {
			b.deliver(h, next)
		}
		b.mu.Lock()
	}
	b.dispatching = false
	b.mu.Unlock()
}

// deliver isolates a panicking handler from the rest of the chain.
func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("topic", string(ev.Topic())).Msg("event handler panicked")
		}
	}()
	h(ev)
}
