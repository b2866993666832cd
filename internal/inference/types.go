package inference

import "time"

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Result is the parsed outcome of one remote analysis: who is in the
// scene and what they say.
type Result struct {
	SubjectLabel string
	Utterance    string
	Timestamp    int64
}

// PlaceholderUtterance substitutes for empty or unparseable model output.
// Invalid output is a recoverable condition, never an error.
const PlaceholderUtterance = "..."
