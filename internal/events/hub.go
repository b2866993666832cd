package events

import (
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	// Overlay carries the current subject bounds, emitted on every
	// overlay tick while a subject is localized.
	EventOverlay EventType = "overlay"
	// Transition announces a confirmed subject change.
	EventTransition EventType = "transition"
	// Utterance carries a new line of commentary for the active subject.
	EventUtterance EventType = "utterance"
	// Advisory is a user-facing notice, e.g. the analysis rate ceiling
	// being reached.
	EventAdvisory EventType = "advisory"
	// Cooldown reports the remaining quota back-off, once per second.
	EventCooldown EventType = "cooldown"
	// Phase reports inference phase changes (idle, analyzing, cooling_down).
	EventPhase EventType = "phase"
	// Speech marks delivery starting and finishing, so clients can show
	// a speaking indicator without polling status.
	EventSpeech EventType = "speech"
	// Stopped marks the end of the session feed.
	EventStopped EventType = "stopped"
)

type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

func New(t EventType, sessionID string, payload interface{}) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Hub fans session events out to subscribers. Publishing never blocks:
// a subscriber that cannot keep up has events dropped on the floor.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With("component", "event-hub"),
		subs:   make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe returns a buffered channel of events for one session and a
// cancel func that must be called when the subscriber goes away.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("dropping event for slow subscriber",
				"session_id", ev.SessionID, "type", ev.Type)
		}
	}
}

// SubscriberCount reports active subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
