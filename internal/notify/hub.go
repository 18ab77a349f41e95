// Package notify fans persisted notifications out to live subscribers.
package notify

import (
	"log/slog"
	"sync"

	"prgate/internal/models"
)

const defaultBuffer = 16

// Hub maps user ids to their open subscriber channels. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.Notification]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[chan models.Notification]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

// Subscribe registers a new channel for userID. The returned cancel func
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan models.Notification]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(userID, ch) })
	}
}

func (h *Hub) unsubscribe(userID string, ch chan models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[userID]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, userID)
	}
	close(ch)
}

// Publish delivers n to every subscriber of n.UserID and returns how many
// received it.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
			delivered++
		default:
			h.logger.Warn("dropping notification for slow subscriber", "user_id", n.UserID, "type", n.Type)
		}
	}
	return delivered
}

// Subscribers returns the number of open channels for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
