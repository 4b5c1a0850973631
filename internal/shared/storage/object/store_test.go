package object

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBoundTTLClampsToMax(t *testing.T) {
	got, err := BoundTTL(48*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("BoundTTL: %v", err)
	}
	if got != time.Hour {
		t.Fatalf("expected clamp to 1h, got %s", got)
	}
}

func TestBoundTTLKeepsSmallValues(t *testing.T) {
	got, err := BoundTTL(15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("BoundTTL: %v", err)
	}
	if got != 15*time.Minute {
		t.Fatalf("expected 15m, got %s", got)
	}
}

func TestBoundTTLRejectsNonPositive(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		if _, err := BoundTTL(ttl, time.Hour); !errors.Is(err, ErrInvalidTTL) {
			t.Fatalf("ttl %s: expected ErrInvalidTTL, got %v", ttl, err)
		}
	}
}

func TestIsTransientMatchesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("fetch attempt 2: %w", ErrTransient)
	if !IsTransient(wrapped) {
		t.Fatalf("expected wrapped transient to match")
	}
	if IsTransient(ErrNotFound) {
		t.Fatalf("not-found must not be transient")
	}
	if IsTransient(ErrAccessDenied) {
		t.Fatalf("access-denied must not be transient")
	}
}
