package events

import (
	"sync"
	"time"
)

// Event represents a system event with its payload
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Bus is an in-process publish/subscribe event bus. Subscribers receive
// events on buffered channels; a slow subscriber drops events rather than
// blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The caller must call unsubscribe when done.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, 64)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}

	return ch, unsubscribe
}

// Emit publishes an event to all subscribers
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full - drop rather than block the publisher
		}
	}
}
