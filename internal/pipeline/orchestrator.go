// Package pipeline runs one analyst query end to end: extraction, context
// inheritance, planning, search and recording.
package pipeline

import (
	"context"
	"time"

	"github.com/siemql/siemql/internal/bus"
	"github.com/siemql/siemql/internal/logstore"
	"github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/pkg/security"
	"github.com/siemql/siemql/internal/planner"
	"github.com/siemql/siemql/internal/query"
	"github.com/siemql/siemql/internal/session"
)

// Searcher executes a planned request against an index. Failures are
// reported in the response, never as a Go error.
type Searcher interface {
	Search(ctx context.Context, index string, req *planner.SearchRequest) *logstore.SearchResponse
}

// Inserter is implemented by searchers that can also store documents.
type Inserter interface {
	InsertDocument(ctx context.Context, index string, doc logstore.Document) (*logstore.InsertResult, error)
}

// Metrics is the interface for recording pipeline metrics.
// This allows the pipeline to be decoupled from the metrics package.
type Metrics interface {
	RecordQuery(kind string, latency time.Duration, hits int, failed bool)
	RecordInsert(index string, err error)
}

// Result is the outcome of one handled query.
type Result struct {
	TurnID    string                   `json:"turn_id"`
	Effective query.ParsedQuery        `json:"parsed"`
	Kind      planner.Kind             `json:"kind"`
	Request   *planner.SearchRequest   `json:"-"`
	Response  *logstore.SearchResponse `json:"response"`
}

// QueryHandled is the payload of a query.handled audit event.
type QueryHandled struct {
	TurnID string   `json:"turn_id"`
	Text   string   `json:"text"`
	Kind   string   `json:"kind"`
	Users  []string `json:"users,omitempty"`
	IPs    []string `json:"ips,omitempty"`
	Event  string   `json:"event,omitempty"`
	Total  int64    `json:"total"`
	Hits   int      `json:"hits"`
	Error  string   `json:"error,omitempty"`
	TookMs int64    `json:"took_ms"`
}

// DocumentInserted is the payload of a document.inserted audit event.
type DocumentInserted struct {
	ID    string `json:"id"`
	Index string `json:"index"`
}

// Orchestrator wires the extractor, planner and searcher together.
type Orchestrator struct {
	extractor *query.Extractor
	planner   *planner.Planner
	searcher  Searcher
	index     string
	bus       bus.Bus
	metrics   Metrics
	log       *logger.Logger
	now       func() time.Time
}

// New creates an orchestrator that searches index.
func New(extractor *query.Extractor, p *planner.Planner, searcher Searcher, index string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		planner:   p,
		searcher:  searcher,
		index:     index,
		log:       log,
		now:       time.Now,
	}
}

// SetBus sets the bus audit events are published on. b may be nil.
func (o *Orchestrator) SetBus(b bus.Bus) {
	o.bus = b
}

// SetMetrics sets the metrics recorder. m may be nil.
func (o *Orchestrator) SetMetrics(m Metrics) {
	o.metrics = m
}

// Index returns the index queries run against.
func (o *Orchestrator) Index() string {
	return o.index
}

// HandleQuery extracts entities from text, fills gaps from sess, plans and
// runs the search, then records the turn in sess. sess may be nil for a
// stateless query. The search outcome, including failure, is in
// Result.Response.
func (o *Orchestrator) HandleQuery(ctx context.Context, text string, sess *session.Context) *Result {
	start := o.now()

	parsed := o.extractor.Extract(ctx, text)
	effective := parsed
	if sess != nil {
		effective = sess.Inherit(parsed)
	}

	kind := SelectKind(parsed.RawText, effective.Intent)
	req := o.planner.Plan(effective, kind)

	resp := o.searcher.Search(ctx, o.index, req)
	if resp == nil {
		resp = &logstore.SearchResponse{Hits: []logstore.Hit{}, Error: "search returned no response"}
	}

	res := &Result{
		TurnID:    session.NewID(),
		Effective: effective,
		Kind:      kind,
		Request:   req,
		Response:  resp,
	}

	if sess != nil {
		sess.Record(session.Turn{
			ID:       res.TurnID,
			RawText:  parsed.RawText,
			Parsed:   effective,
			Response: resp,
			At:       start.UTC(),
		})
	}

	took := o.now().Sub(start)
	if o.metrics != nil {
		o.metrics.RecordQuery(string(kind), took, len(resp.Hits), resp.Failed())
	}

	log := o.logFor(ctx)
	if resp.Failed() {
		log.Warn("Search failed", "kind", kind, "error", resp.Error)
	} else {
		log.Info("Query handled",
			"text", security.SanitizeForLog(parsed.RawText),
			"kind", kind,
			"hits", len(resp.Hits),
			"total", resp.Total,
			"took", took,
		)
	}

	o.publish(ctx, bus.TopicQueryHandled, bus.TypeQueryHandled, QueryHandled{
		TurnID: res.TurnID,
		Text:   parsed.RawText,
		Kind:   string(kind),
		Users:  effective.Users,
		IPs:    effective.IPAddresses,
		Event:  string(effective.EventCategory),
		Total:  resp.Total,
		Hits:   len(resp.Hits),
		Error:  resp.Error,
		TookMs: took.Milliseconds(),
	})

	return res
}

// Insert stores doc in the orchestrator's index. The searcher must also
// implement Inserter. Field names are validated before anything is sent.
func (o *Orchestrator) Insert(ctx context.Context, doc logstore.Document) (*logstore.InsertResult, error) {
	ins, ok := o.searcher.(Inserter)
	if !ok {
		return nil, errNoInserter
	}
	if err := security.ValidateDocument(doc); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid document", err)
	}

	res, err := ins.InsertDocument(ctx, o.index, doc)
	if o.metrics != nil {
		o.metrics.RecordInsert(o.index, err)
	}
	if err != nil {
		return nil, err
	}

	o.logFor(ctx).Info("Document inserted", "index", res.Index, "id", res.ID)
	o.publish(ctx, bus.TopicDocumentInserted, bus.TypeDocumentInserted, DocumentInserted{
		ID:    res.ID,
		Index: res.Index,
	})
	return res, nil
}

// logFor tags the logger with the request and session ids found in ctx.
func (o *Orchestrator) logFor(ctx context.Context) *logger.Logger {
	log := o.log.WithContext(ctx)
	if id := SessionID(ctx); id != "" {
		log = log.WithSession(id)
	}
	return log
}

// publish sends an audit event. Failures are logged and otherwise ignored.
func (o *Orchestrator) publish(ctx context.Context, topic, eventType string, payload any) {
	if o.bus == nil {
		return
	}
	event := bus.NewEvent(eventType, "pipeline", SessionID(ctx), payload)
	if err := o.bus.Publish(ctx, topic, event); err != nil {
		o.log.Warn("Failed to publish audit event", "topic", topic, "error", err)
	}
}
