package subject

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

type Config struct {
	MaxHistory int
}

func DefaultConfig() Config {
	return Config{MaxHistory: 12}
}

type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transition is consumed once by the orchestrator to drive interruption
// and restart side effects.
type Transition struct {
	PreviousLabel string    `json:"previous_label"`
	NewLabel      string    `json:"new_label"`
	Timestamp     time.Time `json:"timestamp"`
}

// Tracker owns the currently embodied subject and its recent utterances.
// At most one subject is active at any instant; a confirmed transition
// replaces it wholesale and discards the conversation history.
type Tracker struct {
	mu         sync.Mutex
	label      string
	normalized string
	history    []Utterance
	maxHistory int
	now        func() time.Time
}

func NewTracker(cfg Config) *Tracker {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	return &Tracker{
		maxHistory: cfg.MaxHistory,
		now:        time.Now,
	}
}

// Normalize case-folds the label and strips everything that is not a
// letter, digit or space, so decoration like emoji and punctuation never
// causes a spurious transition.
func Normalize(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// identityKey is the comparison key for a label. A label that is pure
// decoration normalizes to nothing; fall back to the trimmed raw form so
// the subject still has an identity and repeats of it do not read as
// transitions.
func identityKey(label string) string {
	if norm := Normalize(label); norm != "" {
		return norm
	}
	return strings.ToLower(strings.TrimSpace(label))
}

// IsNewSubject reports whether the candidate label names a different
// subject than the active one. With no active subject it is always true.
func (t *Tracker) IsNewSubject(candidate string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isNewLocked(candidate)
}

func (t *Tracker) isNewLocked(candidate string) bool {
	if t.normalized == "" {
		return true
	}
	return identityKey(candidate) != t.normalized
}

// Observe applies one analysis result. On a confirmed transition the
// history is discarded and the new subject becomes active; otherwise the
// utterance is appended to the active subject's history.
func (t *Tracker) Observe(candidate, utterance string) (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if t.isNewLocked(candidate) {
		tr := Transition{
			PreviousLabel: t.label,
			NewLabel:      candidate,
			Timestamp:     now,
		}
		t.label = candidate
		t.normalized = identityKey(candidate)
		t.history = t.history[:0]
		t.appendLocked(utterance, now)
		return tr, true
	}

	t.appendLocked(utterance, now)
	return Transition{}, false
}

func (t *Tracker) appendLocked(text string, now time.Time) {
	if text == "" {
		return
	}
	t.history = append(t.history, Utterance{Text: text, Timestamp: now})
	if len(t.history) > t.maxHistory {
		t.history = append(t.history[:0], t.history[len(t.history)-t.maxHistory:]...)
	}
}

// Active returns the raw label of the active subject, if any.
func (t *Tracker) Active() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label, t.normalized != ""
}

func (t *Tracker) History() []Utterance {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Utterance, len(t.history))
	copy(out, t.history)
	return out
}

// Reset returns the tracker to the empty state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = ""
	t.normalized = ""
	t.history = nil
}
