package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventNewMessage       = "new_message"
	EventMessageSent      = "message_sent"
	EventNewQuestion      = "new_question"
	EventQuestionAnswered = "question_answered"
	EventSyncCompleted    = "sync_completed"
	EventOrderUpdate      = "order_update"
)

type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Platform  string    `json:"platform,omitempty"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	bufSize int
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Hub{subs: make(map[uint64]chan Event), bufSize: bufSize}
}

// Subscribe returns the event channel and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.bufSize)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps ID and CreatedAt when missing and delivers to every subscriber.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("component", "notify").Uint64("subscriber", id).Str("type", ev.Type).Msg("dropped event for slow subscriber")
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
