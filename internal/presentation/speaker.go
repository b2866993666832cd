package presentation

import (
	"context"

	"github.com/eidolon-live/eidolon/internal/locate"
)

// Outcome distinguishes a finished delivery from an interrupted one and
// from a failure. Interruption is a deliberate operation, not an error.
type Outcome string

const (
	OutcomeDone        Outcome = "done"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
)

// Utterance is one line of speech attributed to a subject, with the
// overlay geometry that was current when it was decided.
type Utterance struct {
	SubjectLabel string        `json:"subject_label"`
	Text         string        `json:"text"`
	Bounds       locate.Bounds `json:"bounds"`
}

// Speaker delivers an utterance and blocks until it finishes, is
// interrupted through the context, or fails. IsAvailable reports whether
// the capability exists at all; a false return is surfaced to the user,
// a one-off Speak failure is only logged.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) (Outcome, error)
	IsAvailable() bool
}

// NoopSpeaker discards utterances. Used when no synthesis backend is
// configured.
type NoopSpeaker struct{}

func (NoopSpeaker) Speak(ctx context.Context, u Utterance) (Outcome, error) {
	select {
	case <-ctx.Done():
		return OutcomeInterrupted, nil
	default:
		return OutcomeDone, nil
	}
}

func (NoopSpeaker) IsAvailable() bool { return false }
