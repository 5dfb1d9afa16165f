package authsync

import "sync"

// Broadcaster fans session-change notifications out to subscribers. It is
// the event channel provider implementations publish through; the
// Synchronizer is its primary consumer but any number may attach.
type Broadcaster struct {
	mu       sync.Mutex
	handlers map[uint64]ChangeHandler
	next     uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		handlers: map[uint64]ChangeHandler{},
	}
}

// Subscribe registers a handler and returns its Subscription. Cancel
// releases the registration exactly once.
func (b *Broadcaster) Subscribe(handler ChangeHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = handler

	return &broadcastSubscription{owner: b, id: id}
}

// Emit delivers the event to every live subscriber. Handlers run outside
// the registry lock, so they may cancel their own subscription mid-event.
func (b *Broadcaster) Emit(event ChangeEvent, session *Session) {
	b.mu.Lock()
	handlers := make([]ChangeHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event, session)
	}
}

// SubscriberCount reports live registrations. Mostly useful in tests.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

type broadcastSubscription struct {
	owner *Broadcaster
	id    uint64
	once  sync.Once
}

func (s *broadcastSubscription) Cancel() {
	s.once.Do(func() {
		s.owner.remove(s.id)
	})
}
