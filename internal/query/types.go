// Package query extracts structured entities from analyst queries.
package query

import (
	"fmt"
	"time"
)

// Intent is what the analyst wants back: rows or a bucketed summary.
type Intent string

const (
	// IntentPlainSearch - return matching log rows.
	IntentPlainSearch Intent = "plain_search"

	// IntentAggregate - return counts grouped by a field or time bucket.
	IntentAggregate Intent = "aggregate"
)

// EventCategory is a normalized security event type.
type EventCategory string

// Event categories, in keyword-table order.
const (
	EventNone          EventCategory = ""
	EventFailedLogin   EventCategory = "failed_login"
	EventSuccessLogin  EventCategory = "success_login"
	EventSSHBruteforce EventCategory = "ssh_bruteforce"
)

// TimeUnit is the granularity of a relative time range.
type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
)

// dateMathSuffix is the log store date-math unit for each TimeUnit.
var dateMathSuffix = map[TimeUnit]string{
	UnitMinute: "m",
	UnitHour:   "h",
	UnitDay:    "d",
}

// TimeRange is a relative lookback such as "last 2 hours".
// Amount is always positive.
type TimeRange struct {
	Amount int      `json:"relative_amount"`
	Unit   TimeUnit `json:"relative_unit"`
}

// DateMath renders the range's lower bound as log store date math, e.g. "now-2h".
func (r TimeRange) DateMath() string {
	return fmt.Sprintf("now-%d%s", r.Amount, dateMathSuffix[r.Unit])
}

// Duration returns the lookback as a time.Duration.
func (r TimeRange) Duration() time.Duration {
	switch r.Unit {
	case UnitMinute:
		return time.Duration(r.Amount) * time.Minute
	case UnitDay:
		return time.Duration(r.Amount) * 24 * time.Hour
	default:
		return time.Duration(r.Amount) * time.Hour
	}
}

// ParsedQuery is the structured result of entity extraction.
type ParsedQuery struct {
	// RawText is the trimmed analyst input.
	RawText string `json:"raw_text"`

	// Users is an ordered set of user identifiers.
	Users []string `json:"users"`

	// IPAddresses is an ordered set of dotted-quad addresses.
	IPAddresses []string `json:"ip_addresses"`

	// EventCategory is EventNone when no keyword matched.
	EventCategory EventCategory `json:"event_category,omitempty"`

	// TimeRange is nil when the text names no lookback.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// Intent is plain search unless an aggregation cue word is present.
	Intent Intent `json:"intent"`

	// UsedTagger reports whether an entity tagger contributed spans.
	UsedTagger bool `json:"used_tagger"`
}

// HasTimeRange reports whether a time range was extracted or inherited.
func (q ParsedQuery) HasTimeRange() bool {
	return q.TimeRange != nil
}

// Clone returns a deep copy so callers can merge into it without aliasing.
func (q ParsedQuery) Clone() ParsedQuery {
	out := q
	out.Users = append([]string(nil), q.Users...)
	out.IPAddresses = append([]string(nil), q.IPAddresses...)
	if q.TimeRange != nil {
		tr := *q.TimeRange
		out.TimeRange = &tr
	}
	return out
}

// orderedSet keeps first-seen order while dropping duplicates.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]struct{})}
}

// add reports whether v was new.
func (s *orderedSet) add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}
