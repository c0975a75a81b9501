// Package events is the append-only transition log the core publishes to.
// The core only produces events; storage and consumption belong to
// downstream tooling.
package events

import (
	"log"
	"sync"
	"time"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Sink persists published events somewhere durable (e.g. a Redis list).
// A nil sink is fine; publishing never fails the originating transition.
type Sink interface {
	AppendEvent(ev *types.TransitionEvent) error
}

const ringSize = 1024

// Bus fans events out to subscribers and keeps a bounded in-process ring of
// recent events for the state endpoint. Slow subscribers drop events rather
// than block a state transition.
type Bus struct {
	mu   sync.Mutex
	sink Sink
	subs []chan types.TransitionEvent
	ring []types.TransitionEvent
	now  func() time.Time
}

func NewBus(sink Sink) *Bus {
	return &Bus{sink: sink, now: time.Now}
}

// Subscribe returns a channel receiving every event published after the call.
func (b *Bus) Subscribe(buffer int) <-chan types.TransitionEvent {
	ch := make(chan types.TransitionEvent, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish records one transition. It never blocks and never returns an error
// to the caller; a failing sink is logged and skipped.
func (b *Bus) Publish(kind types.EventKind, entityID uint64, oldStatus, newStatus string, actor common.Address) {
	b.publish(types.TransitionEvent{
		Kind:      kind,
		EntityID:  entityID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Actor:     actor,
	})
}

// PublishRejected records a rejected transition so operators can tell relayer
// misbehavior apart from legitimate contention.
func (b *Bus) PublishRejected(kind types.EventKind, entityID uint64, status string, actor common.Address, reason string) {
	b.publish(types.TransitionEvent{
		Kind:      kind,
		EntityID:  entityID,
		OldStatus: status,
		NewStatus: status,
		Actor:     actor,
		Rejected:  true,
		Reason:    reason,
	})
}

func (b *Bus) publish(ev types.TransitionEvent) {
	ev.EventID = uuid.New().String()
	ev.Timestamp = b.now().Unix()

	b.mu.Lock()
	b.ring = append(b.ring, ev)
	if len(b.ring) > ringSize {
		b.ring = b.ring[len(b.ring)-ringSize:]
	}
	subs := make([]chan types.TransitionEvent, len(b.subs))
	copy(subs, b.subs)
	sink := b.sink
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// slow consumer, drop
		}
	}

	if sink != nil {
		if err := sink.AppendEvent(&ev); err != nil {
			log.Printf("Error appending event %s to sink: %v", ev.EventID, err)
		}
	}
}

// Recent returns up to n most recent events, newest last.
func (b *Bus) Recent(n int) []types.TransitionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.ring) {
		n = len(b.ring)
	}
	out := make([]types.TransitionEvent, n)
	copy(out, b.ring[len(b.ring)-n:])
	return out
}
