package events

import (
	"errors"
	"testing"

	"gamebridge/types"

	"github.com/ethereum/go-ethereum/common"
)

var actor = common.HexToAddress("0x0000000000000000000000000000000000000101")

func TestPublishAndRecent(t *testing.T) {
	b := NewBus(nil)

	b.Publish(types.EventBridgeRequest, 1, "", "pending", actor)
	b.Publish(types.EventBridgeRequest, 1, "pending", "completed", actor)

	evs := b.Recent(10)
	if len(evs) != 2 {
		t.Fatalf("recent = %d events, want 2", len(evs))
	}
	// newest last
	if evs[1].NewStatus != "completed" {
		t.Errorf("last event status = %s, want completed", evs[1].NewStatus)
	}
	if evs[0].EventID == "" || evs[0].EventID == evs[1].EventID {
		t.Error("event ids missing or not unique")
	}
	if evs[0].Timestamp == 0 {
		t.Error("timestamp not set")
	}
}

func TestSubscribe(t *testing.T) {
	b := NewBus(nil)
	ch := b.Subscribe(4)

	b.Publish(types.EventSettlement, 3, "pending", "confirmed", actor)

	ev := <-ch
	if ev.Kind != types.EventSettlement || ev.EntityID != 3 {
		t.Errorf("event = %+v", ev)
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBus(nil)
	ch := b.Subscribe(1)

	// second publish must not block
	b.Publish(types.EventBridgeRequest, 1, "", "pending", actor)
	b.Publish(types.EventBridgeRequest, 2, "", "pending", actor)

	ev := <-ch
	if ev.EntityID != 1 {
		t.Errorf("entity = %d, want 1", ev.EntityID)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event: %+v", ev)
	default:
	}
}

func TestPublishRejected(t *testing.T) {
	b := NewBus(nil)
	b.PublishRejected(types.EventBridgeRequest, 7, "pending", actor, "not authorized")

	evs := b.Recent(1)
	if len(evs) != 1 {
		t.Fatalf("recent = %d events, want 1", len(evs))
	}
	if !evs[0].Rejected || evs[0].Reason != "not authorized" {
		t.Errorf("event = %+v", evs[0])
	}
	if evs[0].OldStatus != evs[0].NewStatus {
		t.Error("rejected event must not change status")
	}
}

func TestRingBounded(t *testing.T) {
	b := NewBus(nil)
	for i := 0; i < ringSize+100; i++ {
		b.Publish(types.EventBridgeRequest, uint64(i), "", "pending", actor)
	}

	evs := b.Recent(0)
	if len(evs) != ringSize {
		t.Fatalf("ring = %d events, want %d", len(evs), ringSize)
	}
	if evs[len(evs)-1].EntityID != ringSize+99 {
		t.Errorf("last entity = %d, want %d", evs[len(evs)-1].EntityID, ringSize+99)
	}
}

type failingSink struct{ calls int }

func (s *failingSink) AppendEvent(*types.TransitionEvent) error {
	s.calls++
	return errors.New("sink down")
}

func TestSinkFailureDoesNotBlock(t *testing.T) {
	sink := &failingSink{}
	b := NewBus(sink)

	b.Publish(types.EventBridgeRequest, 1, "", "pending", actor)

	if sink.calls != 1 {
		t.Errorf("sink calls = %d, want 1", sink.calls)
	}
	if len(b.Recent(1)) != 1 {
		t.Error("event lost on sink failure")
	}
}
