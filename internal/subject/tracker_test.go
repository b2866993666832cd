package subject

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	if got := Normalize("☕ Coffee Mug"); got != "coffee mug" {
		t.Errorf("expected 'coffee mug', got %q", got)
	}
	if got := Normalize("coffee mug!!"); got != "coffee mug" {
		t.Errorf("expected 'coffee mug', got %q", got)
	}
	if got := Normalize("  Keyboard\t "); got != "keyboard" {
		t.Errorf("expected 'keyboard', got %q", got)
	}
	if got := Normalize("⌨️"); got != "" {
		t.Errorf("emoji-only label should normalize to empty, got %q", got)
	}
}

func TestTracker_EmptyAlwaysNew(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	if !tr.IsNewSubject("☕ Coffee Mug") {
		t.Error("any candidate is new while no subject is active")
	}
}

func TestTracker_DecorationInsensitive(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe("☕ Coffee Mug", "hello")

	if tr.IsNewSubject("coffee mug") {
		t.Error("'coffee mug' should match '☕ Coffee Mug'")
	}
	if tr.IsNewSubject("COFFEE MUG!!") {
		t.Error("case and punctuation must not cause a transition")
	}
	if !tr.IsNewSubject("Keyboard") {
		t.Error("'Keyboard' should be a transition from 'Coffee Mug'")
	}
}

func TestTracker_TransitionScenario(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	transition, isNew := tr.Observe("☕ Coffee Mug", "I hold the coffee.")
	if !isNew {
		t.Fatal("first observation should be a transition")
	}
	if transition.PreviousLabel != "" || transition.NewLabel != "☕ Coffee Mug" {
		t.Errorf("unexpected transition %+v", transition)
	}
	if label, ok := tr.Active(); !ok || label != "☕ Coffee Mug" {
		t.Errorf("active subject should be '☕ Coffee Mug', got %q", label)
	}
	if len(tr.History()) != 1 {
		t.Errorf("expected 1 utterance, got %d", len(tr.History()))
	}

	_, isNew = tr.Observe("coffee mug!!", "Still me.")
	if isNew {
		t.Fatal("same subject with different decoration must not transition")
	}
	if len(tr.History()) != 2 {
		t.Errorf("same-subject update should append history, got %d", len(tr.History()))
	}

	transition, isNew = tr.Observe("⌨️ Keyboard", "Clack clack.")
	if !isNew {
		t.Fatal("a different subject should transition")
	}
	if transition.PreviousLabel != "☕ Coffee Mug" || transition.NewLabel != "⌨️ Keyboard" {
		t.Errorf("unexpected transition %+v", transition)
	}
	history := tr.History()
	if len(history) != 1 || history[0].Text != "Clack clack." {
		t.Errorf("transition should clear history before appending, got %+v", history)
	}
}

func TestTracker_HistoryBounded(t *testing.T) {
	tr := NewTracker(Config{MaxHistory: 3})
	tr.Observe("Lamp", "one")
	tr.Observe("lamp", "two")
	tr.Observe("Lamp!", "three")
	tr.Observe("LAMP", "four")

	history := tr.History()
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	if history[0].Text != "two" || history[2].Text != "four" {
		t.Errorf("oldest utterances should be dropped first, got %+v", history)
	}
}

func TestTracker_EmptyUtteranceNotRecorded(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe("Plant", "")
	if len(tr.History()) != 0 {
		t.Error("empty utterances should not enter the history")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe("Plant", "photosynthesizing")
	tr.Reset()

	if _, ok := tr.Active(); ok {
		t.Error("no subject should be active after Reset")
	}
	if len(tr.History()) != 0 {
		t.Error("history should be empty after Reset")
	}
	if !tr.IsNewSubject("Plant") {
		t.Error("after Reset the same label counts as a new subject")
	}
}

func TestTracker_TransitionTimestamp(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	fixed := time.Unix(42, 0)
	tr.now = func() time.Time { return fixed }

	transition, _ := tr.Observe("Mug", "hi")
	if !transition.Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, transition.Timestamp)
	}
}

func TestTracker_PureDecorationLabelStable(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	if _, changed := tr.Observe("\U0001F525\U0001F525", "flames"); !changed {
		t.Fatal("first observation should be a transition")
	}
	if _, changed := tr.Observe("\U0001F525\U0001F525", "still flames"); changed {
		t.Error("repeating a decoration-only label should not transition")
	}
	if label, active := tr.Active(); !active || label != "\U0001F525\U0001F525" {
		t.Errorf("Active = %q, %v; want the raw label active", label, active)
	}
	if _, changed := tr.Observe("mug", "a mug"); !changed {
		t.Error("a real label after a decoration-only one should transition")
	}
}
