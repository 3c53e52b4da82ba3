package query

import (
	"fmt"
	"strings"
)

// EventKeywords maps one category to the phrases that identify it.
type EventKeywords struct {
	Category EventCategory
	Phrases  []string
}

// DefaultEventTable is scanned in order; the first category with a phrase
// present in the lower-cased text wins.
var DefaultEventTable = []EventKeywords{
	{
		Category: EventFailedLogin,
		Phrases: []string{
			"failed login", "failed authentication", "authentication failure",
			"invalid credentials", "login failed",
		},
	},
	{
		Category: EventSuccessLogin,
		Phrases:  []string{"successful login", "login success", "authenticated"},
	},
	{
		Category: EventSSHBruteforce,
		Phrases:  []string{"brute force", "multiple failed", "failed attempts"},
	},
}

// DetectEvent returns the first category in table order whose phrase occurs
// in text, or EventNone.
func DetectEvent(text string, table []EventKeywords) EventCategory {
	t := strings.ToLower(text)
	for _, entry := range table {
		for _, phrase := range entry.Phrases {
			if strings.Contains(t, phrase) {
				return entry.Category
			}
		}
	}
	return EventNone
}

// ValidateEventTable reports phrases that could match two categories: an
// identical phrase, or one category's phrase containing another's.
func ValidateEventTable(table []EventKeywords) error {
	for i, a := range table {
		for _, b := range table[i+1:] {
			for _, pa := range a.Phrases {
				for _, pb := range b.Phrases {
					if strings.Contains(pa, pb) || strings.Contains(pb, pa) {
						return fmt.Errorf("event table: %q (%s) overlaps %q (%s)", pa, a.Category, pb, b.Category)
					}
				}
			}
		}
	}
	return nil
}
