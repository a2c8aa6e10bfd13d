// Package notify fans out auction events to topic subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultBuffer = 64

// Message is one event delivered to a subscriber.
type Message struct {
	Topic     string    `json:"topic"`
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is an in-process pub/sub. Delivery is best effort: a subscriber whose
// buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	logger zerolog.Logger
	now    func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: logger.With().Str("component", "notify").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Subscription receives messages for the topics it has joined.
type Subscription struct {
	hub    *Hub
	ch     chan Message
	topics map[string]struct{}
	closed bool
}

// Subscribe returns a subscription with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Subscription{
		hub:    h,
		ch:     make(chan Message, buffer),
		topics: make(map[string]struct{}),
	}
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Join adds the subscription to topic and returns the topic's subscriber count.
func (s *Subscription) Join(topic string) int {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return len(h.topics[topic])
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
	s.topics[topic] = struct{}{}
	return len(subs)
}

// Leave removes the subscription from topic.
func (s *Subscription) Leave(topic string) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s, topic)
}

// Close leaves every topic and closes the channel. Safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	for topic := range s.topics {
		h.removeLocked(s, topic)
	}
	s.closed = true
	close(s.ch)
}

func (h *Hub) removeLocked(s *Subscription, topic string) {
	delete(s.topics, topic)
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Publish delivers event to every current subscriber of topic without
// blocking and returns how many received it.
func (h *Hub) Publish(topic, event string, data any) int {
	msg := Message{
		Topic:     topic,
		Event:     event,
		Data:      data,
		Timestamp: h.now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered, dropped := 0, 0
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn().
			Str("topic", topic).
			Str("event", event).
			Int("dropped", dropped).
			Msg("subscriber buffer full, dropping message")
	}
	h.logger.Debug().
		Str("topic", topic).
		Str("event", event).
		Int("delivered", delivered).
		Msg("published")
	return delivered
}

// SubscriberCount returns the number of subscribers on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
