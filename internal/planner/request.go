// Package planner maps an effective ParsedQuery to a transport-neutral
// SearchRequest.
package planner

// Kind selects the request shape.
type Kind string

const (
	// KindSearch - filtered row search, no aggregation.
	KindSearch Kind = "search"

	// KindCountPerIP - terms aggregation over the source IP field.
	KindCountPerIP Kind = "count_per_ip"

	// KindTopUsers - terms aggregation over the user field.
	KindTopUsers Kind = "top_users"

	// KindDateHistogram - fixed-interval histogram over the timestamp field.
	KindDateHistogram Kind = "date_histogram"
)

// IsAggregation reports whether k attaches an aggregation.
func (k Kind) IsAggregation() bool {
	switch k {
	case KindCountPerIP, KindTopUsers, KindDateHistogram:
		return true
	}
	return false
}

// Aggregation names used in requests and responses.
const (
	AggByIP     = "by_ip"
	AggByUser   = "by_user"
	AggTimeline = "timeline"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter is a non-scoring restriction. Implemented by TermFilter and
// RangeFilter only.
type Filter interface {
	// FilterField returns the field the filter applies to.
	FilterField() string
	isFilter()
}

// TermFilter requires Field to equal Value exactly.
type TermFilter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// FilterField implements Filter.
func (f TermFilter) FilterField() string { return f.Field }
func (TermFilter) isFilter()             {}

// RangeFilter requires Field to be at or after GTE, expressed in date math.
type RangeFilter struct {
	Field string `json:"field"`
	GTE   string `json:"gte"`
}

// FilterField implements Filter.
func (f RangeFilter) FilterField() string { return f.Field }
func (RangeFilter) isFilter()             {}

// MatchPhrase is a scoring clause matching Phrase against a text field.
type MatchPhrase struct {
	Field  string `json:"field"`
	Phrase string `json:"phrase"`
}

// Sort orders results by one field.
type Sort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Aggregation is a named bucketed summary. Implemented by
// TermsAggregation and DateHistogramAggregation only.
type Aggregation interface {
	// AggregationName is the key the response buckets are returned under.
	AggregationName() string
	isAggregation()
}

// TermsAggregation groups by exact field value, top Size buckets by count.
type TermsAggregation struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	Size  int    `json:"size"`
}

// AggregationName implements Aggregation.
func (a TermsAggregation) AggregationName() string { return a.Name }
func (TermsAggregation) isAggregation()            {}

// DateHistogramAggregation buckets Field into fixed Interval widths.
type DateHistogramAggregation struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	Interval string `json:"fixed_interval"`
}

// AggregationName implements Aggregation.
func (a DateHistogramAggregation) AggregationName() string { return a.Name }
func (DateHistogramAggregation) isAggregation()            {}

// SearchRequest is the planner output. It carries no wire format; the log
// store client encodes it.
type SearchRequest struct {
	Must        []MatchPhrase `json:"must,omitempty"`
	Filters     []Filter      `json:"filters"`
	Size        int           `json:"size"`
	Sort        *Sort         `json:"sort,omitempty"`
	Aggregation Aggregation   `json:"aggregation,omitempty"`
}

// RangeFilters returns the range filters in order.
func (r *SearchRequest) RangeFilters() []RangeFilter {
	var out []RangeFilter
	for _, f := range r.Filters {
		if rf, ok := f.(RangeFilter); ok {
			out = append(out, rf)
		}
	}
	return out
}

// TermFilters returns the term filters on field in order.
func (r *SearchRequest) TermFilters(field string) []TermFilter {
	var out []TermFilter
	for _, f := range r.Filters {
		if tf, ok := f.(TermFilter); ok && tf.Field == field {
			out = append(out, tf)
		}
	}
	return out
}
