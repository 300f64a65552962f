// Package match classifies message text as a dispatch message. A dispatch
// message carries, in order: a date token like "9/15(週一)", a departure time
// "08:00", one of the serviced cities, and the route separator ">". Messages
// containing "@" have already been claimed by another driver and are excluded.
package match

import (
	"regexp"
	"strings"
)

// Result is the classification of one message text.
type Result struct {
	Matched  bool
	Excluded bool
}

// Accepted reports whether the message should trigger a reply.
func (r Result) Accepted() bool { return r.Matched && !r.Excluded }

// Field validators. Each token is matched independently; Classify combines
// them with ordered anchoring over the whole text.
var (
	// dateRe: day/month with a parenthesized weekday, e.g. "9/15(週一)".
	dateRe = regexp.MustCompile(`\d{1,2}/\d{1,2}\(週.\)`)
	// timeRe: 24h departure time, e.g. "08:00".
	timeRe = regexp.MustCompile(`\d{2}:\d{2}`)
)

// cities are the serviced pickup/dropoff cities.
var cities = []string{"新北市", "台北市"}

// routeSeparator marks the origin > destination route line.
const routeSeparator = ">"

// exclusionMark tags messages already claimed by another driver.
const exclusionMark = "@"

// DateToken reports whether s contains a date token starting at or after
// from, returning the index just past the match.
func DateToken(s string, from int) (int, bool) {
	loc := dateRe.FindStringIndex(s[from:])
	if loc == nil {
		return 0, false
	}
	return from + loc[1], true
}

// TimeToken reports whether s contains a time token at or after from,
// returning the index just past the match.
func TimeToken(s string, from int) (int, bool) {
	loc := timeRe.FindStringIndex(s[from:])
	if loc == nil {
		return 0, false
	}
	return from + loc[1], true
}

// CityToken reports whether s contains a serviced city at or after from,
// returning the index just past the first such occurrence.
func CityToken(s string, from int) (int, bool) {
	best := -1
	for _, city := range cities {
		if i := strings.Index(s[from:], city); i >= 0 {
			end := from + i + len(city)
			if best < 0 || end < best {
				best = end
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// RouteToken reports whether s contains the route separator at or after from.
func RouteToken(s string, from int) bool {
	return strings.Contains(s[from:], routeSeparator)
}

// Classify runs the structural match and the exclusion check over the full
// message text. The four tokens must appear in relative order; the exclusion
// mark is checked independently of the match.
func Classify(text string) Result {
	r := Result{Excluded: strings.Contains(text, exclusionMark)}

	pos, ok := DateToken(text, 0)
	if !ok {
		return r
	}
	pos, ok = TimeToken(text, pos)
	if !ok {
		return r
	}
	pos, ok = CityToken(text, pos)
	if !ok {
		return r
	}
	r.Matched = RouteToken(text, pos)
	return r
}
