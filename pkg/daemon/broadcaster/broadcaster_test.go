package broadcaster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcaster_Notify(t *testing.T) {
	b := New()
	defer b.Close()
	b.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	first := b.Subscribe()
	second := b.Subscribe()

	b.Notify("Optimized Ethernet (#12)")

	for _, sub := range []*Subscriber{first, second} {
		select {
		case event := <-sub.Events:
			assert.Equal(t, "Optimized Ethernet (#12)", event.Message)
			assert.Equal(t, 2026, event.Time.Year())
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected event not received")
		}
	}
}

func TestBroadcaster_MarkFollowsEarlierLines(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	b.Notify("Optimizing TCP...")
	b.Notify("TCP optimized")
	b.Mark("call-1")

	require.Len(t, sub.Events, 3)
	assert.Equal(t, "Optimizing TCP...", (<-sub.Events).Message)
	assert.Equal(t, "TCP optimized", (<-sub.Events).Message)
	last := <-sub.Events
	assert.Equal(t, "call-1", last.Marker)
	assert.Empty(t, last.Message)

	b.Close()
	b.Mark("after-close")
}

func TestBroadcaster_Notify_DropsWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < 150; i++ {
		b.Notify(fmt.Sprintf("line %d", i))
	}

	assert.Len(t, sub.Events, DefaultBuffer)
	assert.Equal(t, int64(150-DefaultBuffer), sub.Dropped())
	event := <-sub.Events
	assert.Equal(t, "line 0", event.Message)
}

func TestBroadcaster_WithBuffer(t *testing.T) {
	b := New(WithBuffer(2), WithBuffer(0))
	defer b.Close()

	sub := b.Subscribe()
	b.Notify("one")
	b.Notify("two")
	b.Notify("three")

	assert.Equal(t, 2, cap(sub.Events))
	assert.Equal(t, int64(1), sub.Dropped())
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.SubscriberCount())

	// Unknown IDs are ignored.
	b.Unsubscribe("missing")
}

func TestBroadcaster_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	b.Close()
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe())

	// Notify after close is a no-op.
	b.Notify("ignored")
}
