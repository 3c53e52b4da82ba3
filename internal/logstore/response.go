package logstore

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// Hit is one matching document.
type Hit struct {
	ID     string         `json:"_id"`
	Index  string         `json:"_index,omitempty"`
	Source map[string]any `json:"_source"`
}

// Bucket is one aggregation bucket. Key is a string for terms aggregations
// and epoch milliseconds for date histograms.
type Bucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string,omitempty"`
	DocCount    int64  `json:"doc_count"`
}

// AggregationResult is either a bucket list or a scalar Value.
type AggregationResult struct {
	Buckets []Bucket `json:"buckets,omitempty"`
	Value   any      `json:"value,omitempty"`
}

// HasBuckets reports whether the aggregation returned a bucket list.
func (a AggregationResult) HasBuckets() bool {
	return a.Buckets != nil
}

// SearchResponse is the outcome of a search. Failures are carried in Error
// with no hits rather than returned as a Go error.
type SearchResponse struct {
	Hits         []Hit                        `json:"hits"`
	Total        int64                        `json:"total"`
	TookMs       int64                        `json:"took_ms"`
	Aggregations map[string]AggregationResult `json:"aggregations,omitempty"`
	Error        string                       `json:"error,omitempty"`
}

// Failed reports whether the search did not complete.
func (r *SearchResponse) Failed() bool {
	return r != nil && r.Error != ""
}

// failedResponse wraps a failure as data.
func failedResponse(format string, args ...any) *SearchResponse {
	return &SearchResponse{
		Hits:  []Hit{},
		Error: fmt.Sprintf(format, args...),
	}
}

// decodeSearchResponse reads a _search body.
func decodeSearchResponse(p *fastjson.Parser, body []byte) (*SearchResponse, error) {
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("invalid search response: %w", err)
	}

	resp := &SearchResponse{
		Hits:   []Hit{},
		TookMs: v.GetInt64("took"),
	}

	// 7.x+ reports {"value": N}, 6.x a bare number.
	if total := v.Get("hits", "total"); total != nil {
		if total.Type() == fastjson.TypeObject {
			resp.Total = total.GetInt64("value")
		} else {
			resp.Total, _ = total.Int64()
		}
	}

	for _, h := range v.GetArray("hits", "hits") {
		hit := Hit{
			ID:     string(h.GetStringBytes("_id")),
			Index:  string(h.GetStringBytes("_index")),
			Source: map[string]any{},
		}
		if src := h.Get("_source"); src != nil && src.Type() == fastjson.TypeObject {
			if m, ok := toAny(src).(map[string]any); ok {
				hit.Source = m
			}
		}
		resp.Hits = append(resp.Hits, hit)
	}

	aggs := v.GetObject("aggregations")
	if aggs == nil {
		return resp, nil
	}

	resp.Aggregations = make(map[string]AggregationResult, aggs.Len())
	aggs.Visit(func(key []byte, av *fastjson.Value) {
		resp.Aggregations[string(key)] = decodeAggregation(av)
	})

	return resp, nil
}

func decodeAggregation(av *fastjson.Value) AggregationResult {
	if buckets := av.Get("buckets"); buckets != nil && buckets.Type() == fastjson.TypeArray {
		arr, _ := buckets.Array()
		out := AggregationResult{Buckets: make([]Bucket, 0, len(arr))}
		for _, b := range arr {
			out.Buckets = append(out.Buckets, Bucket{
				Key:         toAny(b.Get("key")),
				KeyAsString: string(b.GetStringBytes("key_as_string")),
				DocCount:    b.GetInt64("doc_count"),
			})
		}
		return out
	}

	if val := av.Get("value"); val != nil {
		return AggregationResult{Value: toAny(val)}
	}
	return AggregationResult{Value: toAny(av)}
}

// toAny converts a parsed value into plain Go values. Integral numbers
// become int64, others float64.
func toAny(v *fastjson.Value) any {
	if v == nil {
		return nil
	}

	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		m := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, child *fastjson.Value) {
			m[string(key)] = toAny(child)
		})
		return m
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, 0, len(arr))
		for _, child := range arr {
			out = append(out, toAny(child))
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
