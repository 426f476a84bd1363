package session

import (
	"sync"
)

// Notification variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notification is a user-facing toast.
type Notification struct {
	Variant     string `json:"variant,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Event is published after every accepted transition.
type Event struct {
	Snapshot     Snapshot      `json:"snapshot"`
	Notification *Notification `json:"notification,omitempty"`
}

const subscriberBuffer = 16

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (s *subscribers) add() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	id := s.next
	s.next++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// publish never blocks; a full subscriber buffer drops the event.
func (s *subscribers) publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Subscribe returns a channel of events for this session and a function that
// cancels the subscription and closes the channel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	id, ch := s.subs.add()
	var once sync.Once
	return ch, func() { once.Do(func() { s.subs.remove(id) }) }
}
