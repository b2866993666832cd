package presentation

import (
	"context"
	"log/slog"
	"sync"
)

// Queue serializes speech delivery. Utterances play one at a time in
// arrival order; Clear interrupts the active delivery and drops whatever
// was pending. An update for a subject that is already being presented
// or already pending is suppressed rather than queued behind it.
type Queue struct {
	speaker Speaker
	log     *slog.Logger

	mu      sync.Mutex
	queue   []Utterance
	current string
	ctx     context.Context
	cancel  context.CancelFunc
	playing bool
	started bool
	gen     uint64
	onStart func()
	onEnd   func()
}

func NewQueue(speaker Speaker, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		speaker: speaker,
		log:     log.With("component", "presentation_queue"),
		queue:   make([]Utterance, 0),
	}
}

func (q *Queue) SetCallbacks(onStart, onEnd func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onStart = onStart
	q.onEnd = onEnd
}

// Enqueue schedules an utterance for delivery. If the same subject is
// already being presented, or already waiting its turn, the update is
// dropped so a delivery is never followed by a stale restatement of it.
func (q *Queue) Enqueue(ctx context.Context, u Utterance) {
	q.mu.Lock()
	if q.playing && q.current == u.SubjectLabel {
		q.mu.Unlock()
		q.log.Debug("suppressing update for active subject", "subject", u.SubjectLabel)
		return
	}
	for _, pending := range q.queue {
		if pending.SubjectLabel == u.SubjectLabel {
			q.mu.Unlock()
			q.log.Debug("suppressing update for pending subject", "subject", u.SubjectLabel)
			return
		}
	}

	wasEmpty := len(q.queue) == 0 && !q.playing
	q.queue = append(q.queue, u)

	var gen uint64
	if wasEmpty {
		q.ctx, q.cancel = context.WithCancel(ctx)
		q.started = true
		q.gen++
		gen = q.gen
	}
	q.mu.Unlock()

	if wasEmpty {
		go q.processQueue(gen)
	}
}

// processQueue is the delivery pump. The generation token pins it to the
// queue state it was spawned for: Clear bumps the generation, so a pump
// waking from an interrupted Speak must not touch state that now belongs
// to its successor.
func (q *Queue) processQueue(gen uint64) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	onStart := q.onStart
	q.mu.Unlock()

	if onStart != nil {
		onStart()
	}

	for {
		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		if len(q.queue) == 0 {
			q.playing = false
			q.started = false
			q.current = ""
			onEnd := q.onEnd
			q.mu.Unlock()

			if onEnd != nil {
				onEnd()
			}
			return
		}

		u := q.queue[0]
		q.queue = q.queue[1:]
		q.playing = true
		q.current = u.SubjectLabel
		ctx := q.ctx
		q.mu.Unlock()

		outcome, err := q.speaker.Speak(ctx, u)
		if outcome == OutcomeFailed {
			q.log.Warn("speech delivery failed", "subject", u.SubjectLabel, "error", err)
		}

		if outcome == OutcomeInterrupted || ctx.Err() != nil {
			q.mu.Lock()
			if gen == q.gen {
				wasStarted := q.started
				q.queue = nil
				q.playing = false
				q.started = false
				q.current = ""
				onEnd := q.onEnd
				q.mu.Unlock()
				if wasStarted && onEnd != nil {
					onEnd()
				}
				return
			}
			q.mu.Unlock()
			return
		}
	}
}

// Clear interrupts the active delivery and empties the queue. Used when
// a subject transition is confirmed and stale speech must stop at once.
// Bumping the generation orphans the running pump.
func (q *Queue) Clear() {
	q.mu.Lock()
	wasStarted := q.started
	q.gen++
	q.queue = nil
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.ctx = nil
	q.playing = false
	q.started = false
	q.current = ""
	onEnd := q.onEnd
	q.mu.Unlock()

	if wasStarted && onEnd != nil {
		onEnd()
	}
}

func (q *Queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.queue) > 0
}
