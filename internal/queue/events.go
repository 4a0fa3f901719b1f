package queue

import (
	"encoding/json"
	"sync"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
)

// Event types published on a job's stream.
const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventResult   = "result"
	EventRemoved  = "removed"
)

// Event represents a Server-Sent Events event.
type Event struct {
	Type string
	Data string // JSON encoded job snapshot
}

func newEvent(typ string, j job.Job) Event {
	data, _ := json.Marshal(j)
	return Event{Type: typ, Data: string(data)}
}

// Hub fans job events out to per-job subscriber channels. Sends never
// block: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[string][]chan Event), buffer: buffer}
}

// Subscribe creates a buffered channel receiving events for jobID.
func (h *Hub) Subscribe(jobID string) chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch. It is a no-op once the stream has been closed.
func (h *Hub) Unsubscribe(jobID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	chans := h.subs[jobID]
	for i, c := range chans {
		if c == ch {
			h.subs[jobID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish sends ev to every subscriber of jobID.
func (h *Hub) Publish(jobID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[jobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close sends the final event and closes every channel for jobID.
func (h *Hub) Close(jobID string, ev Event) {
	h.mu.Lock()
	chans := h.subs[jobID]
	delete(h.subs, jobID)
	h.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
		}
		close(ch)
	}
}

// Subscribers reports how many streams are open for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
