package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/models"
)

const defaultBuffer = 16

// Subscription is one live listener registered with a Hub
type Subscription struct {
	ID     string
	Events <-chan models.Vehicle

	ch chan models.Vehicle
}

// Hub is an in-process fan-out registry for live listeners such as SSE
// streams. A subscriber whose buffer is full is dropped rather than
// stalling the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	buffer      int
}

// NewHub creates a hub whose subscribers buffer up to buffer snapshots
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subscribers: make(map[string]*Subscription),
		buffer:      buffer,
	}
}

// Subscribe registers a new listener
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan models.Vehicle, h.buffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Events: ch,
		ch:     ch,
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	log.Debug().Str("subscriber", sub.ID).Msg("Subscriber connected")
	return sub
}

// Unsubscribe removes a listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	if ok {
		log.Debug().Str("subscriber", id).Msg("Subscriber disconnected")
	}
}

// Len returns the number of connected subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish hands the snapshot to every subscriber without blocking
func (h *Hub) Publish(_ context.Context, vehicle *models.Vehicle) error {
	if vehicle == nil {
		return nil
	}

	var slow []string

	h.mu.RLock()
	for id, sub := range h.subscribers {
		select {
		case sub.ch <- *vehicle:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		log.Warn().Str("subscriber", id).Msg("Dropping slow subscriber")
		h.Unsubscribe(id)
	}
	return nil
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}
