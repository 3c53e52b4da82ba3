// Package format turns search responses into rows and summaries for the
// CLI and the web front end.
package format

import (
	"fmt"

	"github.com/siemql/siemql/internal/logstore"
)

// Row is the analyst-facing view of one hit.
type Row struct {
	ID        string `json:"_id"`
	Timestamp string `json:"timestamp,omitempty"`
	User      string `json:"user,omitempty"`
	Event     string `json:"event,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BucketRow is one aggregation bucket.
type BucketRow struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

// Hits projects every hit in resp onto a Row. A nil or failed response
// yields an empty slice.
func Hits(resp *logstore.SearchResponse) []Row {
	rows := []Row{}
	if resp == nil {
		return rows
	}
	for _, h := range resp.Hits {
		rows = append(rows, Row{
			ID:        h.ID,
			Timestamp: field(h.Source, logstore.TimestampField),
			User:      field(h.Source, "user"),
			Event:     field(h.Source, "event"),
			Message:   field(h.Source, "message"),
		})
	}
	return rows
}

// Aggregations flattens resp.Aggregations. Bucket aggregations become
// []BucketRow; histogram buckets use the formatted key when the store sent
// one. Anything else passes through as its scalar value.
func Aggregations(resp *logstore.SearchResponse) map[string]any {
	out := map[string]any{}
	if resp == nil {
		return out
	}
	for name, agg := range resp.Aggregations {
		if !agg.HasBuckets() {
			out[name] = agg.Value
			continue
		}
		buckets := make([]BucketRow, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			key := b.Key
			if b.KeyAsString != "" {
				key = b.KeyAsString
			}
			buckets = append(buckets, BucketRow{Key: key, DocCount: b.DocCount})
		}
		out[name] = buckets
	}
	return out
}

func field(src map[string]any, name string) string {
	v, ok := src[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
