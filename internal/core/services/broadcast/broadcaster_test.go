package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

func event(n int) domain.Event {
	return domain.Event{
		Type:      domain.EventEntryAppended,
		Timestamp: time.Now().UTC(),
		Payload:   domain.Entry{Sequence: int64(n)},
	}
}

func seqOf(t *testing.T, e domain.Event) int64 {
	t.Helper()
	entry, ok := e.Payload.(domain.Entry)
	require.True(t, ok)
	return entry.Sequence
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(event(1))

	for _, sub := range []*Subscriber{s1, s2} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, int64(1), seqOf(t, got))
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublish_DropsOldestOnOverflow(t *testing.T) {
	b := New(WithBufferSize(3))
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 1; i <= 5; i++ {
		b.Publish(event(i))
	}

	// Events 1 and 2 were shed; 3, 4, 5 remain in order.
	var got []int64
	for i := 0; i < 3; i++ {
		select {
		case e := <-sub.Events():
			got = append(got, seqOf(t, e))
		case <-time.After(time.Second):
			t.Fatal("expected buffered event")
		}
	}
	assert.Equal(t, []int64{3, 4, 5}, got)
	assert.Equal(t, uint64(2), sub.Dropped())

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", e)
	default:
	}
}

func TestPublish_SlowSubscriberDoesNotStarvePeers(t *testing.T) {
	b := New(WithBufferSize(1))
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// The slow subscriber never reads; Publish must still complete and the
	// fast subscriber must see every event.
	var received []int64
	for i := 1; i <= 10; i++ {
		b.Publish(event(i))
		select {
		case e := <-fast.Events():
			received = append(received, seqOf(t, e))
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved behind a stalled peer")
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, received)
	assert.Equal(t, uint64(9), slow.Dropped())
	assert.Zero(t, fast.Dropped())
}

func TestUnsubscribe_ClosesChannelAndStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op for this subscriber.
	b.Publish(event(1))

	// Double unsubscribe must not panic.
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
}

func TestStart_HeartbeatCarriesDroppedCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New(WithBufferSize(1), WithHeartbeatInterval(20*time.Millisecond))
	sub := b.Subscribe()
	b.Start(ctx)

	// Overflow once so the heartbeat has something to report.
	b.Publish(event(1))
	b.Publish(event(2))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.Events():
			if e.Type != domain.EventHeartbeat {
				continue
			}
			hb, ok := e.Payload.(domain.Heartbeat)
			require.True(t, ok)
			assert.GreaterOrEqual(t, hb.DroppedEvents, uint64(1))
			return
		case <-deadline:
			t.Fatal("no heartbeat observed")
		}
	}
}

func TestShutdown_ClosesAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(WithHeartbeatInterval(10 * time.Millisecond))
	sub := b.Subscribe()
	b.Start(ctx)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-sub.Events():
			if !open {
				assert.Equal(t, 0, b.SubscriberCount())

				// Late subscriptions come back pre-closed.
				late := b.Subscribe()
				_, stillOpen := <-late.Events()
				assert.False(t, stillOpen)
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel never closed on shutdown")
		}
	}
}

func TestPublish_ConcurrentWithSubscribeUnsubscribe(t *testing.T) {
	b := New(WithBufferSize(4))

	stop := make(chan struct{})
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				b.Publish(event(i))
			}
		}
	}()

	// Churn subscriptions while the publisher is running; the race detector
	// covers the rest.
	for i := 0; i < 100; i++ {
		sub := b.Subscribe()
		b.Unsubscribe(sub)
	}
	close(stop)
}
