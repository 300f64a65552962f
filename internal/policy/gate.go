// Package policy gates reply attempts on the configured work window and the
// cooldown between executed replies.
package policy

import "time"

// Cooldown is the minimum interval between two executed replies.
const Cooldown = 5000 * time.Millisecond

// Decision explains why an event was or was not eligible.
type Decision int

const (
	Eligible Decision = iota
	SkipOutsideWindow
	SkipCooldown
)

// String returns the log reason for a decision.
func (d Decision) String() string {
	switch d {
	case Eligible:
		return "eligible"
	case SkipOutsideWindow:
		return "outside work window"
	case SkipCooldown:
		return "within cooldown"
	default:
		return "unknown"
	}
}

// Gate evaluates eligibility. Both checks are mandatory; failing either one
// halts the pipeline with a distinct reason but no error.
type Gate struct {
	startHour int // inclusive
	endHour   int // exclusive
}

// NewGate creates a gate for the window [startHour, endHour).
func NewGate(startHour, endHour int) *Gate {
	return &Gate{startHour: startHour, endHour: endHour}
}

// Check returns the eligibility decision for an attempt at now, given the
// time the last reply began executing (zero value = never). No mutation.
func (g *Gate) Check(now time.Time, lastReply time.Time) Decision {
	hour := now.Hour()
	if hour < g.startHour || hour >= g.endHour {
		return SkipOutsideWindow
	}
	if !lastReply.IsZero() && now.Sub(lastReply) < Cooldown {
		return SkipCooldown
	}
	return Eligible
}
