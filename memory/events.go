package memory

import (
	"sync"

	"github.com/ptattershall/pjais/internal/errors"
	"github.com/ptattershall/pjais/store"
)

// EventType identifies what happened to a memory record.
type EventType string

const (
	EventCreated     EventType = "created"
	EventUpdated     EventType = "updated"
	EventDeleted     EventType = "deleted"
	EventTierChanged EventType = "tier_changed"
)

// Event is a change notification emitted after a successful write.
type Event struct {
	Type      EventType  `json:"type"`
	PersonaID string     `json:"persona_id"`
	MemoryID  string     `json:"memory_id"`
	Tier      store.Tier `json:"tier,omitempty"`
}

// Subscription is a registered event listener. Events arrive on C; call
// Cancel when done. A subscriber that falls behind has events dropped rather
// than blocking writers.
type Subscription struct {
	C      <-chan Event
	cancel func()
	once   sync.Once
}

// Cancel deregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// broadcaster fans events out to subscribers without ever blocking the
// write path.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.InvalidArgument("manager is closed")
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	return &Subscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		},
	}, nil
}

// publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
func (b *broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
