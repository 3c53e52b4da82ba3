package session

import "github.com/siemql/siemql/internal/query"

// Field names used by inheritance rules.
const (
	FieldTimeRange = "time_range"
	FieldUsers     = "users"
)

// InheritRule fills one field of the current query from the previous parse.
// Apply returns true when it filled the field; it must leave the field
// untouched when the current query already has a value.
type InheritRule struct {
	Field string
	Apply func(current *query.ParsedQuery, last query.ParsedQuery) bool
}

// TimeRangeRule carries the previous time range into a query that names none.
var TimeRangeRule = InheritRule{
	Field: FieldTimeRange,
	Apply: func(current *query.ParsedQuery, last query.ParsedQuery) bool {
		if current.TimeRange != nil || last.TimeRange == nil {
			return false
		}
		tr := *last.TimeRange
		current.TimeRange = &tr
		return true
	},
}

// UsersRule carries the previous users into a query that names none. It is
// not part of DefaultRules.
var UsersRule = InheritRule{
	Field: FieldUsers,
	Apply: func(current *query.ParsedQuery, last query.ParsedQuery) bool {
		if len(current.Users) > 0 || len(last.Users) == 0 {
			return false
		}
		current.Users = append([]string(nil), last.Users...)
		return true
	},
}

// DefaultRules is the rule list used when a Context is built without one.
func DefaultRules() []InheritRule {
	return []InheritRule{TimeRangeRule}
}

// Inherit returns a copy of current with empty fields filled from the last
// recorded turn. Rules run in declared order and the first rule that fills a
// field wins; later rules for that field are skipped.
func (c *Context) Inherit(current query.ParsedQuery) query.ParsedQuery {
	out := current.Clone()

	last, ok := c.LastParsed()
	if !ok {
		return out
	}

	filled := make(map[string]bool, len(c.rules))
	for _, r := range c.rules {
		if filled[r.Field] {
			continue
		}
		if r.Apply(&out, last) {
			filled[r.Field] = true
		}
	}
	return out
}
