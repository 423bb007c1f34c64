package engine

import (
	"testing"
	"time"
)

func TestExpiresAt(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := ExpiresAt(anchor, 60)
	want := anchor.Add(time.Hour)
	if !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestIsExpired(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"fresh", 0, false},
		{"just under", 59 * time.Minute, false},
		{"exactly at expiry", 60 * time.Minute, false}, // strictly after, not at
		{"just over", 61 * time.Minute, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsExpired(anchor, 60, anchor.Add(tc.elapsed)); got != tc.want {
				t.Errorf("IsExpired(+%v) = %v, want %v", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestTimeRemaining(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := TimeRemaining(anchor, 60, anchor.Add(15*time.Minute)); got != 45*time.Minute {
		t.Errorf("TimeRemaining = %v, want 45m", got)
	}

	// Floored at zero once past expiry
	if got := TimeRemaining(anchor, 60, anchor.Add(2*time.Hour)); got != 0 {
		t.Errorf("TimeRemaining past expiry = %v, want 0", got)
	}
}

func TestClockSingleInstant(t *testing.T) {
	// The same captured now must never disagree between IsExpired and
	// TimeRemaining.
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := anchor.Add(61 * time.Minute)

	if !IsExpired(anchor, 60, now) {
		t.Fatal("expected expired")
	}
	if TimeRemaining(anchor, 60, now) != 0 {
		t.Fatal("expired note must have zero time remaining")
	}
}
