// Package eventbus delivers bridge events to external consumers: audit-log
// writers, webhook dispatchers and indexers. It is a kind-filtered pub/sub
// bus; every committed mutation of the bridge publishes exactly one event.
package eventbus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hdbridge/hdbridge/libs/log"
	"github.com/hdbridge/hdbridge/libs/service"
	"github.com/hdbridge/hdbridge/types"
)

// Subscription is one consumer's view of the event stream. Events arrive on
// Out until the subscription is cancelled or the bus stops, after which Out
// is closed.
type Subscription struct {
	id     string
	kinds  map[types.EventKind]struct{} // empty means all kinds
	out    chan types.Event
	logger log.Logger
}

// ID returns the opaque subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Out returns the channel events are delivered on.
func (s *Subscription) Out() <-chan types.Event { return s.out }

func (s *Subscription) matches(kind types.EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// EventBus fans bridge events out to subscribers. Publishing never blocks
// the coordinator: a subscriber that stops draining its channel loses events
// (logged) rather than stalling state transitions.
type EventBus struct {
	service.BaseService
	logger log.Logger

	mtx     sync.RWMutex
	subs    map[string]*Subscription
	stopped bool
}

// NewEventBus returns a stopped event bus.
func NewEventBus(logger log.Logger) *EventBus {
	b := &EventBus{
		logger: logger,
		subs:   make(map[string]*Subscription),
	}
	b.BaseService = *service.NewBaseService(logger, "EventBus", b)
	return b
}

func (b *EventBus) OnStart(context.Context) error { return nil }

func (b *EventBus) OnStop() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.stopped = true
	for id, sub := range b.subs {
		close(sub.out)
		delete(b.subs, id)
	}
}

// Subscribe registers a consumer for the given event kinds (all kinds when
// none are named). capacity bounds the delivery buffer; events published
// while the buffer is full are dropped for that subscriber.
func (b *EventBus) Subscribe(capacity int, kinds ...types.EventKind) (*Subscription, error) {
	if capacity <= 0 {
		capacity = 1
	}
	sub := &Subscription{
		id:     uuid.NewString(),
		kinds:  make(map[types.EventKind]struct{}, len(kinds)),
		out:    make(chan types.Event, capacity),
		logger: b.logger,
	}
	for _, kind := range kinds {
		sub.kinds[kind] = struct{}{}
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.stopped {
		return nil, service.ErrAlreadyStopped
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBus) Unsubscribe(id string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.out)
		delete(b.subs, id)
	}
}

// NumClients returns the number of active subscriptions.
func (b *EventBus) NumClients() int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return len(b.subs)
}

// Publish delivers the event to every matching subscriber.
func (b *EventBus) Publish(event types.Event) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	if b.stopped {
		return
	}
	for _, sub := range b.subs {
		if !sub.matches(event.Kind) {
			continue
		}
		select {
		case sub.out <- event:
		default:
			b.logger.Error("dropping event for slow subscriber",
				"subscription", sub.id, "kind", event.Kind, "ref", event.Ref)
		}
	}
}
