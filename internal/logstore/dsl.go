package logstore

import (
	"encoding/json"

	"github.com/siemql/siemql/internal/planner"
)

// EncodeRequest renders a planned request as Elasticsearch query DSL:
//
//	{"query":{"bool":{"must":[...],"filter":[...]}},"size":N,"sort":[...],"aggs":{...}}
func EncodeRequest(req *planner.SearchRequest) map[string]any {
	if req == nil {
		return map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	}

	boolQuery := map[string]any{}

	if len(req.Must) > 0 {
		must := make([]any, 0, len(req.Must))
		for _, m := range req.Must {
			must = append(must, map[string]any{
				"match_phrase": map[string]any{m.Field: m.Phrase},
			})
		}
		boolQuery["must"] = must
	}

	if len(req.Filters) > 0 {
		filters := make([]any, 0, len(req.Filters))
		for _, f := range req.Filters {
			if enc := encodeFilter(f); enc != nil {
				filters = append(filters, enc)
			}
		}
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  req.Size,
	}

	if req.Sort != nil {
		body["sort"] = []any{
			map[string]any{req.Sort.Field: map[string]any{"order": string(req.Sort.Order)}},
		}
	}

	if req.Aggregation != nil {
		if agg := encodeAggregation(req.Aggregation); agg != nil {
			body["aggs"] = map[string]any{req.Aggregation.AggregationName(): agg}
		}
	}

	return body
}

// MarshalRequest encodes req as a JSON request body.
func MarshalRequest(req *planner.SearchRequest) ([]byte, error) {
	return json.Marshal(EncodeRequest(req))
}

func encodeFilter(f planner.Filter) map[string]any {
	switch f := f.(type) {
	case planner.TermFilter:
		return map[string]any{
			"term": map[string]any{f.Field: map[string]any{"value": f.Value}},
		}
	case planner.RangeFilter:
		return map[string]any{
			"range": map[string]any{f.Field: map[string]any{"gte": f.GTE}},
		}
	}
	return nil
}

func encodeAggregation(a planner.Aggregation) map[string]any {
	switch a := a.(type) {
	case planner.TermsAggregation:
		return map[string]any{
			"terms": map[string]any{"field": a.Field, "size": a.Size},
		}
	case planner.DateHistogramAggregation:
		return map[string]any{
			"date_histogram": map[string]any{"field": a.Field, "fixed_interval": a.Interval},
		}
	}
	return nil
}
