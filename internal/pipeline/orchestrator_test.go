package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/siemql/siemql/internal/bus"
	"github.com/siemql/siemql/internal/logstore"
	apperrors "github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/planner"
	"github.com/siemql/siemql/internal/query"
	"github.com/siemql/siemql/internal/session"
)

type fakeSearcher struct {
	mu       sync.Mutex
	requests []*planner.SearchRequest
	indexes  []string
	resp     *logstore.SearchResponse
}

func (f *fakeSearcher) Search(_ context.Context, index string, req *planner.SearchRequest) *logstore.SearchResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.indexes = append(f.indexes, index)
	if f.resp == nil {
		return &logstore.SearchResponse{Hits: []logstore.Hit{}}
	}
	return f.resp
}

type fakeStore struct {
	fakeSearcher
	docs []logstore.Document
	err  error
}

func (f *fakeStore) InsertDocument(_ context.Context, index string, doc logstore.Document) (*logstore.InsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return &logstore.InsertResult{ID: "doc-1", Index: index, Result: "created"}, nil
}

type recordedQuery struct {
	kind   string
	hits   int
	failed bool
}

type fakeMetrics struct {
	queries []recordedQuery
	inserts []error
}

func (m *fakeMetrics) RecordQuery(kind string, _ time.Duration, hits int, failed bool) {
	m.queries = append(m.queries, recordedQuery{kind, hits, failed})
}

func (m *fakeMetrics) RecordInsert(_ string, err error) {
	m.inserts = append(m.inserts, err)
}

func newTestOrchestrator(s Searcher) *Orchestrator {
	log := logger.Default()
	return New(query.NewExtractor(nil, log), planner.New(planner.DefaultConfig()), s, "ps01_logs", log)
}

func TestSelectKind(t *testing.T) {
	tests := []struct {
		text   string
		intent query.Intent
		want   planner.Kind
	}{
		{"failed logins per IP", query.IntentAggregate, planner.KindCountPerIP},
		{"count per source ip for admin", query.IntentAggregate, planner.KindCountPerIP},
		{"show top users with failed logins", query.IntentAggregate, planner.KindTopUsers},
		{"top 10 users by failures", query.IntentAggregate, planner.KindTopUsers},
		{"failed login histogram", query.IntentAggregate, planner.KindDateHistogram},
		{"timeline of ssh brute force", query.IntentAggregate, planner.KindDateHistogram},
		{"count per hour", query.IntentAggregate, planner.KindDateHistogram},
		{"top users per ip", query.IntentAggregate, planner.KindCountPerIP},
		{"count failed logins", query.IntentAggregate, planner.KindSearch},
		{"timeline of admin logins", query.IntentPlainSearch, planner.KindSearch},
		{"group by user timeline", query.IntentPlainSearch, planner.KindDateHistogram},
		{"failed login by admin", query.IntentPlainSearch, planner.KindSearch},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := SelectKind(tt.text, tt.intent); got != tt.want {
				t.Errorf("SelectKind(%q, %s) = %s, want %s", tt.text, tt.intent, got, tt.want)
			}
		})
	}
}

func TestHandleQuery_CountPerIP(t *testing.T) {
	s := &fakeSearcher{resp: &logstore.SearchResponse{
		Hits: []logstore.Hit{},
		Aggregations: map[string]logstore.AggregationResult{
			"by_ip": {Buckets: []logstore.Bucket{{Key: "10.0.0.5", DocCount: 12}}},
		},
	}}
	o := newTestOrchestrator(s)
	sess := session.NewContext(0)

	res := o.HandleQuery(context.Background(), "count failed logins per ip in the last 6 hours", sess)

	if res.Kind != planner.KindCountPerIP {
		t.Fatalf("Kind = %s, want %s", res.Kind, planner.KindCountPerIP)
	}

	want := &planner.SearchRequest{
		Must: []planner.MatchPhrase{{Field: "event", Phrase: "failed login"}},
		Filters: []planner.Filter{
			planner.RangeFilter{Field: "@timestamp", GTE: "now-6h"},
		},
		Size:        0,
		Sort:        &planner.Sort{Field: "@timestamp", Order: planner.SortDesc},
		Aggregation: planner.TermsAggregation{Name: "by_ip", Field: "source.ip", Size: 10},
	}
	if !reflect.DeepEqual(res.Request, want) {
		t.Errorf("Request = %+v\nwant %+v", res.Request, want)
	}

	if len(s.indexes) != 1 || s.indexes[0] != "ps01_logs" {
		t.Errorf("searched indexes = %v", s.indexes)
	}
	if res.Response != s.resp {
		t.Error("Result.Response is not the searcher's response")
	}

	turns := sess.Turns()
	if len(turns) != 1 {
		t.Fatalf("recorded %d turns, want 1", len(turns))
	}
	if turns[0].ID != res.TurnID || turns[0].RawText != "count failed logins per ip in the last 6 hours" {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestHandleQuery_FollowUpInheritsTimeRange(t *testing.T) {
	s := &fakeSearcher{}
	o := newTestOrchestrator(s)
	sess := session.NewContext(0)

	first := o.HandleQuery(context.Background(), "failed login by admin in the last 2 hours", sess)
	second := o.HandleQuery(context.Background(), "show events for user root", sess)

	if got := first.Request.RangeFilters(); len(got) != 1 || got[0].GTE != "now-2h" {
		t.Errorf("first range = %+v", got)
	}

	if second.Effective.TimeRange == nil || *second.Effective.TimeRange != (query.TimeRange{Amount: 2, Unit: query.UnitHour}) {
		t.Fatalf("second TimeRange = %+v, want inherited 2 hours", second.Effective.TimeRange)
	}
	if got := second.Request.RangeFilters(); len(got) != 1 || got[0].GTE != "now-2h" {
		t.Errorf("second range = %+v, want exactly one now-2h", got)
	}
	if got := second.Request.TermFilters("user"); len(got) != 1 || got[0].Value != "root" {
		t.Errorf("second user filters = %+v, want root only", got)
	}
	if sess.Len() != 2 {
		t.Errorf("session length = %d, want 2", sess.Len())
	}
}

func TestHandleQuery_StatelessUsesDefaultLookback(t *testing.T) {
	o := newTestOrchestrator(&fakeSearcher{})

	res := o.HandleQuery(context.Background(), "show events for user root", nil)

	if got := res.Request.RangeFilters(); len(got) != 1 || got[0].GTE != planner.DefaultLookback {
		t.Errorf("range = %+v, want %s", got, planner.DefaultLookback)
	}
}

func TestHandleQuery_Deterministic(t *testing.T) {
	o := newTestOrchestrator(&fakeSearcher{})

	a := session.NewContext(0)
	b := session.NewContext(0)
	for _, text := range []string{"failed login by admin last 3 days", "top users"} {
		ra := o.HandleQuery(context.Background(), text, a)
		rb := o.HandleQuery(context.Background(), text, b)
		if !reflect.DeepEqual(ra.Request, rb.Request) || ra.Kind != rb.Kind {
			t.Errorf("%q: requests differ:\n%+v\n%+v", text, ra.Request, rb.Request)
		}
	}
}

func TestHandleQuery_SearchFailureIsData(t *testing.T) {
	s := &fakeSearcher{resp: &logstore.SearchResponse{Hits: []logstore.Hit{}, Error: "connection refused"}}
	o := newTestOrchestrator(s)
	m := &fakeMetrics{}
	o.SetMetrics(m)
	sess := session.NewContext(0)

	res := o.HandleQuery(context.Background(), "failed login by admin", sess)

	if !res.Response.Failed() || res.Response.Error != "connection refused" {
		t.Errorf("Response = %+v", res.Response)
	}
	if sess.Len() != 1 {
		t.Error("failed search should still be recorded")
	}
	if len(m.queries) != 1 || !m.queries[0].failed || m.queries[0].kind != "search" {
		t.Errorf("metrics = %+v", m.queries)
	}
}

func TestHandleQuery_PublishesAuditEvent(t *testing.T) {
	mb := bus.NewMemoryBus(logger.Default())
	defer mb.Close()

	var mu sync.Mutex
	var got []bus.Event
	mb.Subscribe(context.Background(), bus.TopicQueryHandled, func(_ context.Context, e bus.Event) error {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		return nil
	})

	o := newTestOrchestrator(&fakeSearcher{})
	o.SetBus(mb)

	ctx := WithSessionID(context.Background(), "01HZX0000000000000000000AB")
	res := o.HandleQuery(ctx, "top users with failed logins", nil)

	if !mb.DrainTimeout(time.Second) {
		t.Fatal("handlers did not drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	e := got[0]
	if e.Type != bus.TypeQueryHandled || e.CorrelationID != "01HZX0000000000000000000AB" {
		t.Errorf("event = %+v", e)
	}
	payload, ok := e.Payload.(QueryHandled)
	if !ok {
		t.Fatalf("payload = %T", e.Payload)
	}
	if payload.TurnID != res.TurnID || payload.Kind != "top_users" || payload.Event != "failed_login" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHandleQuery_ClosedBusDoesNotFail(t *testing.T) {
	mb := bus.NewMemoryBus(logger.Default())
	mb.Close()

	o := newTestOrchestrator(&fakeSearcher{})
	o.SetBus(mb)

	res := o.HandleQuery(context.Background(), "failed login", nil)
	if res == nil || res.Response == nil {
		t.Fatal("HandleQuery should succeed when publishing fails")
	}
}

func TestInsert(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store)
	m := &fakeMetrics{}
	o.SetMetrics(m)

	res, err := o.Insert(context.Background(), logstore.Document{"user": "admin", "event": "failed login"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if res.ID != "doc-1" || res.Index != "ps01_logs" {
		t.Errorf("Insert() = %+v", res)
	}
	if len(store.docs) != 1 || len(m.inserts) != 1 || m.inserts[0] != nil {
		t.Errorf("docs = %v, metrics = %v", store.docs, m.inserts)
	}

	store.err = apperrors.InsertError("ps01_logs", errors.New("400 Bad Request"))
	if _, err := o.Insert(context.Background(), logstore.Document{"user": "x"}); !apperrors.IsCode(err, apperrors.CodeInsert) {
		t.Errorf("Insert() error = %v, want %s", err, apperrors.CodeInsert)
	}
	if len(m.inserts) != 2 || m.inserts[1] == nil {
		t.Errorf("failed insert not recorded: %v", m.inserts)
	}
}

func TestInsert_InvalidDocument(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(store)

	for _, doc := range []logstore.Document{{}, {"_id": "x"}, {"source..ip": "10.0.0.5"}} {
		if _, err := o.Insert(context.Background(), doc); !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Errorf("Insert(%v) error = %v, want %s", doc, err, apperrors.CodeValidation)
		}
	}
	if len(store.docs) != 0 {
		t.Errorf("invalid documents reached the store: %v", store.docs)
	}
}

func TestInsert_SearcherWithoutInserts(t *testing.T) {
	o := newTestOrchestrator(&fakeSearcher{})

	if _, err := o.Insert(context.Background(), logstore.Document{"user": "x"}); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("Insert() error = %v, want %s", err, apperrors.CodeUnavailable)
	}
}

func TestSessionID(t *testing.T) {
	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID(empty) = %q", got)
	}
	if got := SessionID(WithSessionID(context.Background(), "abc")); got != "abc" {
		t.Errorf("SessionID() = %q, want abc", got)
	}
}
