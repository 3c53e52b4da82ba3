package planner

import (
	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/query"
)

// DefaultLookback is the range lower bound used when a query names no time range.
const DefaultLookback = "now-24h"

// Config holds field names and sizing defaults.
type Config struct {
	UserField      string
	IPField        string
	TimestampField string
	EventField     string

	// PageSize is the row count for plain searches.
	PageSize int

	// AggregationSize is the terms bucket count used when a caller passes 0.
	AggregationSize int

	// HistogramInterval is the bucket width used when a caller passes "".
	HistogramInterval string
}

// DefaultConfig returns the field mapping of the default index schema.
func DefaultConfig() Config {
	return Config{
		UserField:         "user",
		IPField:           "source.ip",
		TimestampField:    "@timestamp",
		EventField:        "event",
		PageSize:          100,
		AggregationSize:   10,
		HistogramInterval: "1h",
	}
}

// ConfigFrom builds a planner Config from application settings.
func ConfigFrom(qc config.QueryConfig) Config {
	return Config{
		UserField:         qc.UserField,
		IPField:           qc.IPField,
		TimestampField:    qc.TimestampField,
		EventField:        qc.EventField,
		PageSize:          qc.PageSize,
		AggregationSize:   qc.AggregationSize,
		HistogramInterval: qc.HistogramInterval,
	}
}

// Planner builds SearchRequests. It holds no state beyond its Config and
// every method is a pure function of its arguments.
type Planner struct {
	cfg Config
}

// New creates a planner. Zero fields in cfg take DefaultConfig values.
func New(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.UserField == "" {
		cfg.UserField = def.UserField
	}
	if cfg.IPField == "" {
		cfg.IPField = def.IPField
	}
	if cfg.TimestampField == "" {
		cfg.TimestampField = def.TimestampField
	}
	if cfg.EventField == "" {
		cfg.EventField = def.EventField
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.AggregationSize <= 0 {
		cfg.AggregationSize = def.AggregationSize
	}
	if cfg.HistogramInterval == "" {
		cfg.HistogramInterval = def.HistogramInterval
	}
	return &Planner{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// EventPhrase is the text matched against the event field for a category.
// Only failed_login has a display phrase; other categories search for their
// own token.
func EventPhrase(c query.EventCategory) string {
	if c == query.EventFailedLogin {
		return "failed login"
	}
	return string(c)
}

// PlanSearch builds a filtered row search. A query without a time range is
// bounded to the last 24 hours.
func (p *Planner) PlanSearch(q query.ParsedQuery) *SearchRequest {
	req := &SearchRequest{
		Filters: make([]Filter, 0, len(q.Users)+len(q.IPAddresses)+1),
		Size:    p.cfg.PageSize,
		Sort:    &Sort{Field: p.cfg.TimestampField, Order: SortDesc},
	}

	if q.EventCategory != query.EventNone {
		req.Must = append(req.Must, MatchPhrase{
			Field:  p.cfg.EventField,
			Phrase: EventPhrase(q.EventCategory),
		})
	}

	for _, u := range q.Users {
		req.Filters = append(req.Filters, TermFilter{Field: p.cfg.UserField, Value: u})
	}
	for _, ip := range q.IPAddresses {
		req.Filters = append(req.Filters, TermFilter{Field: p.cfg.IPField, Value: ip})
	}

	lower := DefaultLookback
	if q.TimeRange != nil {
		lower = q.TimeRange.DateMath()
	}
	req.Filters = append(req.Filters, RangeFilter{Field: p.cfg.TimestampField, GTE: lower})

	return req
}

// PlanAggregation builds on PlanSearch, so aggregations honour the same
// filters. size <= 0 uses the configured bucket count and an empty interval
// uses the configured histogram width. An unknown kind returns the plain
// search request.
func (p *Planner) PlanAggregation(q query.ParsedQuery, kind Kind, size int, interval string) *SearchRequest {
	req := p.PlanSearch(q)

	if size <= 0 {
		size = p.cfg.AggregationSize
	}
	if interval == "" {
		interval = p.cfg.HistogramInterval
	}

	switch kind {
	case KindCountPerIP:
		req.Aggregation = TermsAggregation{Name: AggByIP, Field: p.cfg.IPField, Size: size}
	case KindTopUsers:
		req.Aggregation = TermsAggregation{Name: AggByUser, Field: p.cfg.UserField, Size: size}
	case KindDateHistogram:
		req.Aggregation = DateHistogramAggregation{Name: AggTimeline, Field: p.cfg.TimestampField, Interval: interval}
	default:
		return req
	}

	req.Size = 0
	return req
}

// Plan dispatches on kind: KindSearch and unknown kinds yield PlanSearch,
// aggregation kinds use the configured size and interval.
func (p *Planner) Plan(q query.ParsedQuery, kind Kind) *SearchRequest {
	if !kind.IsAggregation() {
		return p.PlanSearch(q)
	}
	return p.PlanAggregation(q, kind, 0, "")
}
