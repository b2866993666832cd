package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestQuotaExceededError_Message(t *testing.T) {
	err := &QuotaExceededError{RetryAfter: 30 * time.Second}
	want := "quota exceeded, retry after 30s"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestIsQuotaExceeded_Direct(t *testing.T) {
	err := &QuotaExceededError{RetryAfter: time.Minute}
	qe, ok := IsQuotaExceeded(err)
	if !ok {
		t.Fatal("expected quota error to be recognized")
	}
	if qe.RetryAfter != time.Minute {
		t.Errorf("expected retry after 1m, got %v", qe.RetryAfter)
	}
}

func TestIsQuotaExceeded_Wrapped(t *testing.T) {
	inner := &QuotaExceededError{RetryAfter: 5 * time.Second}
	err := fmt.Errorf("analyze frame: %w", inner)
	qe, ok := IsQuotaExceeded(err)
	if !ok {
		t.Fatal("expected wrapped quota error to be recognized")
	}
	if qe.RetryAfter != 5*time.Second {
		t.Errorf("expected retry after 5s, got %v", qe.RetryAfter)
	}
}

func TestIsQuotaExceeded_Other(t *testing.T) {
	if _, ok := IsQuotaExceeded(errors.New("boom")); ok {
		t.Error("plain error should not be treated as quota exhaustion")
	}
	if _, ok := IsQuotaExceeded(ErrNoFrame); ok {
		t.Error("sentinel should not be treated as quota exhaustion")
	}
}

func TestNewID_PrefixAndLength(t *testing.T) {
	id := NewID("sess_")
	if len(id) != len("sess_")+32 {
		t.Errorf("unexpected id length %d", len(id))
	}
	if id[:5] != "sess_" {
		t.Errorf("expected sess_ prefix, got %s", id[:5])
	}
	if id == NewID("sess_") {
		t.Error("two ids should not collide")
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	apiErr := NewAPIError("invalid_request", "bad body").WithDetails(map[string]string{"field": "interval"})
	if apiErr.Code != "invalid_request" {
		t.Errorf("expected code invalid_request, got %s", apiErr.Code)
	}
	if apiErr.Details == nil {
		t.Error("details should be set")
	}
	httpErr := apiErr.ToHTTP(400)
	if httpErr.Code != 400 {
		t.Errorf("expected status 400, got %d", httpErr.Code)
	}
}
