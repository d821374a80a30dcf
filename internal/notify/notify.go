// Package notify carries "collection changed" events from the cache core to
// whoever renders it. Delivery is fire-and-forget: an event tells a
// subscriber which keys to re-read, not what the new data is.
package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"tomahawk/internal/id"
)

// Event announces that the cached data behind ChangedKeys was updated.
type Event struct {
	Collection  string    `json:"collection"`
	ChangedKeys []string  `json:"changedKeys"`
	At          time.Time `json:"at"`
}

// NewEvent builds an event whose keys form a sorted set.
func NewEvent(collection string, keys ...string) Event {
	set := make(map[string]struct{}, len(keys))
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := set[k]; ok {
			continue
		}
		set[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)
	return Event{Collection: collection, ChangedKeys: uniq, At: time.Now()}
}

// Has reports whether key is among the changed keys.
func (e Event) Has(key string) bool {
	i := sort.SearchStrings(e.ChangedKeys, key)
	return i < len(e.ChangedKeys) && e.ChangedKeys[i] == key
}

// Publisher is the sink a collection reports changes to.
type Publisher interface {
	Publish(Event)
}

// Subscription is one listener on a Bus.
type Subscription struct {
	ID     string
	Events <-chan Event
}

const subscriberBuffer = 64

// Bus fans events out to every subscriber without blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	closed bool
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new listener.
func (b *Bus) Subscribe() Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := Subscription{ID: id.MustGenerate("sub"), Events: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.ID] = ch
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[subID]; ok {
		delete(b.subs, subID)
		close(ch)
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("notification dropped, subscriber is slow",
				"subscriber", subID,
				"collection", ev.Collection,
				"keys", len(ev.ChangedKeys))
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subs {
		delete(b.subs, subID)
		close(ch)
	}
}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
