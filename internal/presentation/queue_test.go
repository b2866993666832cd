package presentation

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSpeaker struct {
	mu          sync.Mutex
	spoken      []Utterance
	delay       time.Duration
	available   bool
	active      int
	maxActive   int
	interrupted int
}

func (s *recordingSpeaker) Speak(ctx context.Context, u Utterance) (Outcome, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.mu.Lock()
			s.interrupted++
			s.mu.Unlock()
			return OutcomeInterrupted, nil
		}
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()
	return OutcomeDone, nil
}

func (s *recordingSpeaker) IsAvailable() bool { return s.available }

func (s *recordingSpeaker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func (s *recordingSpeaker) interruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQueueDeliversInOrder(t *testing.T) {
	sp := &recordingSpeaker{}
	q := NewQueue(sp, nil)

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "a mug"})
	q.Enqueue(context.Background(), Utterance{SubjectLabel: "keyboard", Text: "a keyboard"})

	waitFor(t, func() bool { return sp.count() == 2 && !q.IsBusy() })

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.spoken[0].SubjectLabel != "mug" || sp.spoken[1].SubjectLabel != "keyboard" {
		t.Errorf("unexpected delivery order: %v", sp.spoken)
	}
}

func TestQueueSuppressesActiveSubjectUpdate(t *testing.T) {
	sp := &recordingSpeaker{delay: 100 * time.Millisecond}
	q := NewQueue(sp, nil)

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "first"})
	waitFor(t, func() bool { return q.IsBusy() })

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "update while busy"})

	waitFor(t, func() bool { return !q.IsBusy() })
	if got := sp.count(); got != 1 {
		t.Errorf("expected suppressed update, got %d deliveries", got)
	}
}

func TestQueueSuppressesPendingSubjectUpdate(t *testing.T) {
	sp := &recordingSpeaker{delay: 80 * time.Millisecond}
	q := NewQueue(sp, nil)

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "first"})
	q.Enqueue(context.Background(), Utterance{SubjectLabel: "keyboard", Text: "queued"})
	q.Enqueue(context.Background(), Utterance{SubjectLabel: "keyboard", Text: "update while pending"})

	waitFor(t, func() bool { return sp.count() == 2 && !q.IsBusy() })
	if got := sp.count(); got != 2 {
		t.Errorf("expected pending duplicate suppressed, got %d deliveries", got)
	}
}

func TestQueueClearThenEnqueueKeepsNewDelivery(t *testing.T) {
	sp := &recordingSpeaker{delay: 150 * time.Millisecond}
	q := NewQueue(sp, nil)

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "old"})
	waitFor(t, func() bool { return q.IsBusy() })

	q.Clear()
	waitFor(t, func() bool { return sp.interruptCount() == 1 })
	q.Enqueue(context.Background(), Utterance{SubjectLabel: "keyboard", Text: "new"})

	// The interrupted pump unwinds while the replacement delivery is in
	// flight; it must not mark the queue idle underneath it.
	time.Sleep(50 * time.Millisecond)
	if !q.IsBusy() {
		t.Fatal("queue reported idle while the new delivery was in progress")
	}

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "lamp", Text: "after"})

	waitFor(t, func() bool { return sp.count() == 2 && !q.IsBusy() })

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.spoken[0].SubjectLabel != "keyboard" || sp.spoken[1].SubjectLabel != "lamp" {
		t.Errorf("unexpected deliveries after interrupt: %v", sp.spoken)
	}
	if sp.maxActive > 1 {
		t.Errorf("deliveries overlapped: max concurrent Speak = %d", sp.maxActive)
	}
}

func TestQueueClearInterrupts(t *testing.T) {
	sp := &recordingSpeaker{delay: time.Second}
	q := NewQueue(sp, nil)

	var mu sync.Mutex
	ended := false
	q.SetCallbacks(nil, func() {
		mu.Lock()
		ended = true
		mu.Unlock()
	})

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "long delivery"})
	q.Enqueue(context.Background(), Utterance{SubjectLabel: "keyboard", Text: "pending"})
	waitFor(t, func() bool { return q.IsBusy() })

	q.Clear()

	waitFor(t, func() bool { return !q.IsBusy() })
	if got := sp.count(); got != 0 {
		t.Errorf("expected no completed deliveries after interrupt, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !ended {
		t.Error("onEnd callback not invoked after Clear")
	}
}

func TestQueueCallbacks(t *testing.T) {
	sp := &recordingSpeaker{}
	q := NewQueue(sp, nil)

	var mu sync.Mutex
	var events []string
	q.SetCallbacks(
		func() { mu.Lock(); events = append(events, "start"); mu.Unlock() },
		func() { mu.Lock(); events = append(events, "end"); mu.Unlock() },
	)

	q.Enqueue(context.Background(), Utterance{SubjectLabel: "mug", Text: "hi"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if events[0] != "start" || events[1] != "end" {
		t.Errorf("unexpected callback order: %v", events)
	}
}

func TestNoopSpeaker(t *testing.T) {
	var sp NoopSpeaker
	if sp.IsAvailable() {
		t.Error("noop speaker should report unavailable")
	}
	out, err := sp.Speak(context.Background(), Utterance{Text: "x"})
	if err != nil || out != OutcomeDone {
		t.Errorf("Speak = %v, %v", out, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, _ = sp.Speak(ctx, Utterance{Text: "x"})
	if out != OutcomeInterrupted {
		t.Errorf("cancelled Speak = %v, want interrupted", out)
	}
}
