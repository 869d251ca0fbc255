package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdbridge/hdbridge/libs/log"
	"github.com/hdbridge/hdbridge/libs/service"
	"github.com/hdbridge/hdbridge/types"
)

func startedBus(t *testing.T) *EventBus {
	t.Helper()
	bus := NewEventBus(log.NewTestingLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop() })
	return bus
}

func event(kind types.EventKind) types.Event {
	return types.NewEvent(kind, "ref-1", "actor-1", time.Now())
}

func TestPublishDeliversToAll(t *testing.T) {
	defer leaktest.Check(t)()
	bus := startedBus(t)

	sub1, err := bus.Subscribe(4)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(4)
	require.NoError(t, err)
	assert.Equal(t, 2, bus.NumClients())

	bus.Publish(event(types.EventProofSubmitted))

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.Out():
			assert.Equal(t, types.EventProofSubmitted, got.Kind)
			assert.Equal(t, "ref-1", got.Ref)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestKindFiltering(t *testing.T) {
	defer leaktest.Check(t)()
	bus := startedBus(t)

	sub, err := bus.Subscribe(4, types.EventProofFinalized, types.EventTransferCompleted)
	require.NoError(t, err)

	bus.Publish(event(types.EventVoteCast))
	bus.Publish(event(types.EventProofFinalized))
	bus.Publish(event(types.EventTransferConfirmed))
	bus.Publish(event(types.EventTransferCompleted))

	var got []types.EventKind
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.Out():
			got = append(got, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []types.EventKind{types.EventProofFinalized, types.EventTransferCompleted}, got)

	select {
	case e := <-sub.Out():
		t.Fatalf("unexpected event %q", e.Kind)
	default:
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	defer leaktest.Check(t)()
	bus := startedBus(t)

	sub, err := bus.Subscribe(1)
	require.NoError(t, err)

	// second publish overflows the buffer and is dropped, not blocked on
	bus.Publish(event(types.EventProofSubmitted))
	bus.Publish(event(types.EventVoteCast))

	got := <-sub.Out()
	assert.Equal(t, types.EventProofSubmitted, got.Kind)
	select {
	case e := <-sub.Out():
		t.Fatalf("unexpected event %q", e.Kind)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	defer leaktest.Check(t)()
	bus := startedBus(t)

	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	bus.Unsubscribe(sub.ID())
	assert.Equal(t, 0, bus.NumClients())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	// publishing after unsubscribe is a no-op for this consumer
	bus.Publish(event(types.EventProofSubmitted))
}

func TestStopClosesSubscriptions(t *testing.T) {
	defer leaktest.Check(t)()
	bus := NewEventBus(log.NewTestingLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))

	sub, err := bus.Subscribe(4)
	require.NoError(t, err)

	require.NoError(t, bus.Stop())
	bus.Wait()

	_, ok := <-sub.Out()
	assert.False(t, ok)

	// a stopped bus refuses new subscriptions and drops publishes
	_, err = bus.Subscribe(4)
	require.ErrorIs(t, err, service.ErrAlreadyStopped)
	bus.Publish(event(types.EventProofSubmitted))
}
