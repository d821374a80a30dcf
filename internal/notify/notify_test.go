package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomahawk/internal/logger"
)

func TestNewEvent_SortedSet(t *testing.T) {
	ev := NewEvent("local", "artist:b", "artist:a", "artist:b")
	assert.Equal(t, "local", ev.Collection)
	assert.Equal(t, []string{"artist:a", "artist:b"}, ev.ChangedKeys)
	assert.True(t, ev.Has("artist:a"))
	assert.False(t, ev.Has("artist:c"))
	assert.False(t, ev.At.IsZero())
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(logger.Discard())
	a := bus.Subscribe()
	b := bus.Subscribe()
	require.Equal(t, 2, bus.Len())

	bus.Publish(NewEvent("local", "artist:air"))

	for _, sub := range []Subscription{a, b} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, []string{"artist:air"}, ev.ChangedKeys)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got nothing", sub.ID)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(NewEvent("local", "artist:x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := bus.Subscribe()
	bus.Unsubscribe(sub.ID)
	bus.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Len())

	bus.Publish(NewEvent("local", "artist:x"))
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(logger.Discard())
	sub := bus.Subscribe()
	bus.Close()
	bus.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late.Events
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")
	bus.Publish(NewEvent("local"))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish(NewEvent("local", "artist:x"))
		}()
	}
	wg.Wait()
	assert.Len(t, r.Events(), 10)
}
