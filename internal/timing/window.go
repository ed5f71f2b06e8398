// Package timing holds the pure window rules for starting and
// force-finishing a test paper attempt. No I/O, no side effects.
package timing

import "time"

// Grace extends both the allowed start window and the auto-submit
// deadline of a scheduled paper.
const Grace = 15 * time.Minute

// CanStart reports whether an attempt may begin at now. Untimed papers
// (nil start time) may be started at any moment; scheduled papers allow
// starting up to Grace past the official start.
func CanStart(now time.Time, testStartTime *time.Time) bool {
	if testStartTime == nil {
		return true
	}
	return !now.After(testStartTime.Add(Grace))
}

// Deadline returns the instant at which an open attempt must be
// force-submitted. The second return value is false for untimed papers,
// which have no deadline.
func Deadline(testEndTime *time.Time) (time.Time, bool) {
	if testEndTime == nil {
		return time.Time{}, false
	}
	return testEndTime.Add(Grace), true
}
