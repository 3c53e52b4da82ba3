package planner

import (
	"reflect"
	"testing"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/query"
)

func TestPlanSearch_RoundTrip(t *testing.T) {
	p := New(DefaultConfig())
	parsed := query.ExtractPatterns("failed login by user admin from 10.0.0.5 in the last 2 hours")

	req := p.PlanSearch(parsed)

	wantMust := []MatchPhrase{{Field: "event", Phrase: "failed login"}}
	if !reflect.DeepEqual(req.Must, wantMust) {
		t.Errorf("Must = %+v, want %+v", req.Must, wantMust)
	}

	wantFilters := []Filter{
		TermFilter{Field: "user", Value: "admin"},
		TermFilter{Field: "source.ip", Value: "10.0.0.5"},
		RangeFilter{Field: "@timestamp", GTE: "now-2h"},
	}
	if !reflect.DeepEqual(req.Filters, wantFilters) {
		t.Errorf("Filters = %+v, want %+v", req.Filters, wantFilters)
	}

	for _, rf := range req.RangeFilters() {
		if rf.GTE == DefaultLookback {
			t.Error("default 24h range present alongside explicit range")
		}
	}
	if req.Size != 100 {
		t.Errorf("Size = %d, want 100", req.Size)
	}
	if req.Sort == nil || *req.Sort != (Sort{Field: "@timestamp", Order: SortDesc}) {
		t.Errorf("Sort = %+v, want @timestamp desc", req.Sort)
	}
	if req.Aggregation != nil {
		t.Errorf("Aggregation = %+v, want nil", req.Aggregation)
	}
}

func TestPlanSearch_DefaultLookbackExactlyOnce(t *testing.T) {
	p := New(DefaultConfig())

	tests := []struct {
		name   string
		parsed query.ParsedQuery
		want   string
	}{
		{"no time range", query.ParsedQuery{}, "now-24h"},
		{"users only", query.ParsedQuery{Users: []string{"a", "b"}}, "now-24h"},
		{"minutes", query.ParsedQuery{TimeRange: &query.TimeRange{Amount: 15, Unit: query.UnitMinute}}, "now-15m"},
		{"days", query.ParsedQuery{TimeRange: &query.TimeRange{Amount: 7, Unit: query.UnitDay}}, "now-7d"},
		{"24 hours explicit", query.ParsedQuery{TimeRange: &query.TimeRange{Amount: 24, Unit: query.UnitHour}}, "now-24h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := p.PlanSearch(tt.parsed).RangeFilters()
			if len(ranges) != 1 {
				t.Fatalf("got %d range filters, want 1", len(ranges))
			}
			if ranges[0].GTE != tt.want {
				t.Errorf("GTE = %q, want %q", ranges[0].GTE, tt.want)
			}
		})
	}
}

func TestPlanSearch_EventPhrase(t *testing.T) {
	p := New(DefaultConfig())

	tests := []struct {
		category query.EventCategory
		want     []MatchPhrase
	}{
		{query.EventFailedLogin, []MatchPhrase{{Field: "event", Phrase: "failed login"}}},
		{query.EventSuccessLogin, []MatchPhrase{{Field: "event", Phrase: "success_login"}}},
		{query.EventSSHBruteforce, []MatchPhrase{{Field: "event", Phrase: "ssh_bruteforce"}}},
		{query.EventNone, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := p.PlanSearch(query.ParsedQuery{EventCategory: tt.category}).Must
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Must = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanAggregation(t *testing.T) {
	p := New(DefaultConfig())
	parsed := query.ParsedQuery{Users: []string{"admin"}}

	tests := []struct {
		name     string
		kind     Kind
		size     int
		interval string
		wantSize int
		wantAgg  Aggregation
	}{
		{
			name:    "count per ip",
			kind:    KindCountPerIP,
			size:    10,
			wantAgg: TermsAggregation{Name: "by_ip", Field: "source.ip", Size: 10},
		},
		{
			name:    "top users custom size",
			kind:    KindTopUsers,
			size:    5,
			wantAgg: TermsAggregation{Name: "by_user", Field: "user", Size: 5},
		},
		{
			name:    "terms default size",
			kind:    KindTopUsers,
			wantAgg: TermsAggregation{Name: "by_user", Field: "user", Size: 10},
		},
		{
			name:     "histogram explicit interval",
			kind:     KindDateHistogram,
			interval: "5m",
			wantAgg:  DateHistogramAggregation{Name: "timeline", Field: "@timestamp", Interval: "5m"},
		},
		{
			name:    "histogram default interval",
			kind:    KindDateHistogram,
			wantAgg: DateHistogramAggregation{Name: "timeline", Field: "@timestamp", Interval: "1h"},
		},
		{
			name:     "unknown kind degrades to search",
			kind:     Kind("sum_bytes"),
			size:     10,
			wantSize: 100,
			wantAgg:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := p.PlanAggregation(parsed, tt.kind, tt.size, tt.interval)

			if req.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", req.Size, tt.wantSize)
			}
			if !reflect.DeepEqual(req.Aggregation, tt.wantAgg) {
				t.Errorf("Aggregation = %+v, want %+v", req.Aggregation, tt.wantAgg)
			}
			// Same filters as the plain search.
			if !reflect.DeepEqual(req.Filters, p.PlanSearch(parsed).Filters) {
				t.Errorf("Filters = %+v differ from base search", req.Filters)
			}
		})
	}
}

func TestPlanAggregation_CountPerIPScenario(t *testing.T) {
	p := New(DefaultConfig())
	parsed := query.ExtractPatterns("count per ip")

	if parsed.Intent != query.IntentAggregate {
		t.Fatalf("Intent = %q, want aggregate", parsed.Intent)
	}

	req := p.PlanAggregation(parsed, KindCountPerIP, 10, "")
	if req.Size != 0 {
		t.Errorf("Size = %d, want 0", req.Size)
	}
	terms, ok := req.Aggregation.(TermsAggregation)
	if !ok || terms.Name != AggByIP || terms.Size != 10 || terms.Field != "source.ip" {
		t.Errorf("Aggregation = %+v, want by_ip terms of 10", req.Aggregation)
	}
	ranges := req.RangeFilters()
	if len(ranges) != 1 || ranges[0].GTE != "now-24h" {
		t.Errorf("RangeFilters = %+v, want single now-24h", ranges)
	}
}

func TestPlan_Dispatch(t *testing.T) {
	p := New(DefaultConfig())
	q := query.ParsedQuery{}

	if req := p.Plan(q, KindSearch); req.Aggregation != nil || req.Size != 100 {
		t.Errorf("Plan(search) = %+v", req)
	}
	if req := p.Plan(q, KindDateHistogram); req.Size != 0 || req.Aggregation == nil {
		t.Errorf("Plan(histogram) = %+v", req)
	}
}

func TestPlanSearch_Deterministic(t *testing.T) {
	p := New(DefaultConfig())
	q := query.ExtractPatterns("failed login by alice from 10.1.1.1 past 3 days")

	first := p.PlanSearch(q)
	for i := 0; i < 5; i++ {
		if got := p.PlanSearch(q); !reflect.DeepEqual(got, first) {
			t.Fatalf("plan %d differs", i)
		}
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	p := New(Config{IPField: "client.ip"})
	cfg := p.Config()

	if cfg.IPField != "client.ip" {
		t.Errorf("IPField = %q, want client.ip", cfg.IPField)
	}
	if cfg.UserField != "user" || cfg.PageSize != 100 || cfg.HistogramInterval != "1h" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	req := p.PlanSearch(query.ParsedQuery{IPAddresses: []string{"10.0.0.1"}})
	if got := req.TermFilters("client.ip"); len(got) != 1 {
		t.Errorf("TermFilters(client.ip) = %+v", got)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Default().Query)
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("ConfigFrom(defaults) = %+v, want %+v", cfg, DefaultConfig())
	}
}

func TestKind_IsAggregation(t *testing.T) {
	for _, k := range []Kind{KindCountPerIP, KindTopUsers, KindDateHistogram} {
		if !k.IsAggregation() {
			t.Errorf("%s.IsAggregation() = false", k)
		}
	}
	if KindSearch.IsAggregation() || Kind("").IsAggregation() {
		t.Error("search kinds reported as aggregation")
	}
}
