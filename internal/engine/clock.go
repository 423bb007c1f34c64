package engine

import "time"

// Decay clock arithmetic. Pure functions of an anchor instant, a TTL in
// minutes, and a caller-captured now. Callers must capture now once per
// evaluation so IsExpired and TimeRemaining never disagree.

// ExpiresAt returns the instant the note expires: lastRevised + decayMinutes.
func ExpiresAt(lastRevised time.Time, decayMinutes int) time.Time {
	return lastRevised.Add(time.Duration(decayMinutes) * time.Minute)
}

// IsExpired reports whether the note has decayed past its expiry instant.
func IsExpired(lastRevised time.Time, decayMinutes int, now time.Time) bool {
	return now.After(ExpiresAt(lastRevised, decayMinutes))
}

// TimeRemaining returns the duration until expiry, floored at zero.
func TimeRemaining(lastRevised time.Time, decayMinutes int, now time.Time) time.Duration {
	remaining := ExpiresAt(lastRevised, decayMinutes).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
