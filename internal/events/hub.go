// Package events fans stage progress out to live subscribers of a
// conversation.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/types"
)

const subscriberBuffer = 256

// Subscriber receives the events of one conversation
type Subscriber struct {
	id     string
	topic  string
	events chan types.Event
}

// ID returns the subscriber's unique identifier
func (s *Subscriber) ID() string { return s.id }

// Events returns the channel for receiving events. It is closed on
// Unsubscribe.
func (s *Subscriber) Events() <-chan types.Event { return s.events }

// Hub routes events by conversation id
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber
	log    zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[string]*Subscriber),
		log:    log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new subscriber for topic
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		id:     uuid.New().String(),
		topic:  topic,
		events: make(chan types.Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]*Subscriber)
	}
	h.topics[topic][sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[sub.topic]
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
	close(sub.events)
}

// Publish delivers ev to every subscriber of topic without blocking. Slow
// subscribers miss the event. It returns the number of deliveries.
func (h *Hub) Publish(topic string, ev types.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.topics[topic] {
		select {
		case sub.events <- ev:
			delivered++
		default:
			h.log.Warn().Str("topic", topic).Str("subscriber", sub.id).Msg("Subscriber channel full, dropping event")
		}
	}
	return delivered
}

// Count returns the number of subscribers of topic
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
