package events

import (
	"testing"
)

func TestHubPublishReachesSubscriber(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("sess_1")
	defer cancel()

	h.Publish(New(EventTransition, "sess_1", map[string]string{"new_label": "mug"}))

	select {
	case ev := <-ch:
		if ev.Type != EventTransition || ev.SessionID != "sess_1" {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected buffered event")
	}
}

func TestHubSessionIsolation(t *testing.T) {
	h := NewHub(nil)
	a, cancelA := h.Subscribe("sess_a")
	defer cancelA()
	b, cancelB := h.Subscribe("sess_b")
	defer cancelB()

	h.Publish(New(EventAdvisory, "sess_a", nil))

	if len(a) != 1 {
		t.Errorf("sess_a subscriber got %d events, want 1", len(a))
	}
	if len(b) != 0 {
		t.Errorf("sess_b subscriber got %d events, want 0", len(b))
	}
}

func TestHubSlowSubscriberDropped(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("sess_1")
	defer cancel()

	for i := 0; i < 200; i++ {
		h.Publish(New(EventOverlay, "sess_1", nil))
	}

	// Buffer is 64; the rest must have been dropped, not blocked on.
	if got := len(ch); got != 64 {
		t.Errorf("buffered events = %d, want 64", got)
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe("sess_1")

	if got := h.SubscriberCount("sess_1"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	cancel()
	cancel() // second call is a no-op

	if got := h.SubscriberCount("sess_1"); got != 0 {
		t.Errorf("subscriber count after cancel = %d, want 0", got)
	}

	// Publishing to a session with no subscribers is fine.
	h.Publish(New(EventOverlay, "sess_1", nil))
}

func TestHubClosedRejectsSubscribe(t *testing.T) {
	h := NewHub(nil)
	h.Close()

	ch, cancel := h.Subscribe("sess_1")
	defer cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel from closed hub")
	}
	h.Publish(New(EventOverlay, "sess_1", nil))
}
