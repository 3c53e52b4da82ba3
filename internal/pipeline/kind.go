package pipeline

import (
	"strings"

	"github.com/siemql/siemql/internal/planner"
	"github.com/siemql/siemql/internal/query"
)

// aggregationCues make a query a candidate for aggregation even when the
// extractor saw a plain search.
var aggregationCues = []string{"count", "per ", "top ", "group "}

// kindRules are checked in order; the first rule with a matching phrase
// picks the aggregation kind.
var kindRules = []struct {
	kind    planner.Kind
	phrases []string
}{
	{planner.KindCountPerIP, []string{"per ip", "per source ip", "count per ip"}},
	{planner.KindTopUsers, []string{"top users", "top 10 users", "top user"}},
	{planner.KindDateHistogram, []string{"histogram", "timeline", "per hour"}},
}

// SelectKind chooses the plan kind for text. Aggregation is considered when
// intent is aggregate or the text carries an aggregation cue; a candidate
// with no recognised phrase falls back to a plain search.
func SelectKind(text string, intent query.Intent) planner.Kind {
	lower := strings.ToLower(text)

	if intent != query.IntentAggregate && !containsAny(lower, aggregationCues) {
		return planner.KindSearch
	}

	for _, r := range kindRules {
		if containsAny(lower, r.phrases) {
			return r.kind
		}
	}
	return planner.KindSearch
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
