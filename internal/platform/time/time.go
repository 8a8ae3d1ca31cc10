// Package time holds the process clock seam and small time helpers
package time

import "time"

// Now is the clock used for resolution and ledger timestamps, swapped in tests
var Now = func() time.Time { return time.Now().UTC() }

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// OrNow returns t, or the clock when t is zero
func OrNow(t time.Time) time.Time {
	if t.IsZero() {
		return Now()
	}
	return t.UTC()
}
