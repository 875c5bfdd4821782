package notification

import "sync"

// Hub fans unread-count updates out to live subscribers. It is an in-process
// push channel: every unread-count change for a user is delivered to all of
// that user's subscribers, and a subscription must be cancelled when the
// consumer goes away so nothing leaks.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a live unread-count channel for the user. The channel
// carries the latest count; if the consumer lags, intermediate counts are
// dropped in favour of the newest one. The returned cancel function removes
// the subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan int, func()) {
	sub := &subscriber{ch: make(chan int, 1)}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers the user's current unread count to every subscriber.
// Sends never block: a stale undelivered count is replaced by the new one.
func (h *Hub) Publish(userID string, unread int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[userID] {
		select {
		case sub.ch <- unread:
		default:
			// Drop the stale value, then push the fresh one.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- unread:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live subscriptions for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
