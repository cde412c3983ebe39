package events

import (
	"sync"

	"github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

// Type enum
type Type string

const (
	AnalysisCompleted Type = "analysis-completed"
	AnalysisFailed    Type = "analysis-failed"
	APIError          Type = "api-error"
	Online            Type = "online"
	Offline           Type = "offline"
)

// Event is one notification published by the core.
type Event struct {
	Type     Type             `json:"type"`
	Result   *analysis.Result `json:"result,omitempty"`
	RegionID vision.RegionID  `json:"region_id,omitempty"`
	Error    string           `json:"error,omitempty"`
	Message  string           `json:"message,omitempty"`
}

const subscriberBuffer = 16

// Hub is a broadcast channel for core events. Publish never blocks; a
// subscriber that falls behind its buffer misses events.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel func that must be called
// when the subscriber is done.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Publish fans the event out to all current subscribers.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
