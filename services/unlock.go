// services/unlock.go
package services

import "time"

// EvaluateUnlock returns the unlock time implied by count.
// An existing unlock time is kept while the count stays at or above threshold.
func EvaluateUnlock(prev *time.Time, count, threshold int, now time.Time) *time.Time {
	if count < threshold {
		return nil
	}
	if prev != nil {
		return prev
	}
	t := now
	return &t
}

// UnlockTransition describes how one participant's state changed.
type UnlockTransition struct {
	Changed     bool // count or unlock state differs from what is stored
	FirstUnlock bool // locked before, unlocked now
	UnlockedAt  *time.Time
}

func EvaluateTransition(prevCount int, prev *time.Time, count, threshold int, now time.Time) UnlockTransition {
	next := EvaluateUnlock(prev, count, threshold, now)
	return UnlockTransition{
		Changed:     prevCount != count || (prev == nil) != (next == nil),
		FirstUnlock: prev == nil && next != nil,
		UnlockedAt:  next,
	}
}
