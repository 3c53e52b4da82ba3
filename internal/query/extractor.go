package query

import (
	"context"
	"strings"

	"github.com/siemql/siemql/internal/pkg/logger"
)

// Extractor turns analyst text into a ParsedQuery. Pattern rules always run;
// when a tagger is configured its PERSON/ORG/PRODUCT spans are added to the
// users found by the patterns.
type Extractor struct {
	tagger  EntityTagger
	events  []EventKeywords
	metrics FallbackMetrics
	log     *logger.Logger
}

// FallbackMetrics records extractions that ignored a failed tagger.
type FallbackMetrics interface {
	RecordTaggerFallback()
}

// NewExtractor creates an extractor. tagger may be nil.
func NewExtractor(tagger EntityTagger, log *logger.Logger) *Extractor {
	return &Extractor{
		tagger: tagger,
		events: DefaultEventTable,
		log:    log,
	}
}

// HasTagger reports whether a tagger is configured.
func (e *Extractor) HasTagger() bool {
	return e.tagger != nil
}

// SetMetrics sets the recorder notified on tagger fallback. m may be nil.
func (e *Extractor) SetMetrics(m FallbackMetrics) {
	e.metrics = m
}

// SetEventTable replaces the keyword table after checking it for phrases
// shared between categories.
func (e *Extractor) SetEventTable(table []EventKeywords) error {
	if err := ValidateEventTable(table); err != nil {
		return err
	}
	e.events = table
	return nil
}

// Extract never fails. A tagger error is logged and the pattern result is
// returned unchanged.
func (e *Extractor) Extract(ctx context.Context, text string) ParsedQuery {
	text = strings.TrimSpace(text)
	parsed := ExtractPatterns(text)
	parsed.EventCategory = DetectEvent(text, e.events)

	if e.tagger == nil || text == "" {
		e.logParsed(parsed)
		return parsed
	}

	spans, err := e.tagger.Tag(ctx, text)
	if err != nil {
		e.log.Warn("Entity tagger failed, using pattern extraction only",
			"tagger", e.tagger.Name(), "error", err)
		if e.metrics != nil {
			e.metrics.RecordTaggerFallback()
		}
		e.logParsed(parsed)
		return parsed
	}

	users := newOrderedSet()
	for _, u := range parsed.Users {
		users.add(u)
	}
	for _, s := range spans {
		if isUserLabel(s.Label) && users.add(strings.TrimSpace(s.Text)) {
			parsed.UsedTagger = true
		}
	}
	parsed.Users = users.items

	e.logParsed(parsed)
	return parsed
}

func (e *Extractor) logParsed(p ParsedQuery) {
	e.log.Debug("Parsed query",
		"text", p.RawText,
		"users", len(p.Users),
		"ips", len(p.IPAddresses),
		"event", p.EventCategory,
		"has_time", p.HasTimeRange(),
		"intent", p.Intent,
		"tagger", p.UsedTagger,
	)
}
