package query

import (
	"context"
	"fmt"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/pkg/logger"
)

// Entity labels accepted as user identifiers.
const (
	LabelPerson       = "PERSON"
	LabelOrganization = "ORG"
	LabelProduct      = "PRODUCT"
)

// Span is one entity found by a tagger.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EntityTagger finds named entities in text. Implementations are optional:
// extraction works with pattern rules alone when no tagger is configured.
type EntityTagger interface {
	// Tag returns entity spans in text order.
	Tag(ctx context.Context, text string) ([]Span, error)

	// Name identifies the tagger in logs.
	Name() string
}

// isUserLabel reports whether spans with label name a principal.
func isUserLabel(label string) bool {
	switch label {
	case LabelPerson, LabelOrganization, LabelProduct:
		return true
	}
	return false
}

// NewTagger builds the tagger selected by cfg. It returns (nil, nil) when
// tagging is disabled. A remote tagger is probed once; a failed probe is
// returned so the caller decides whether to run without it.
func NewTagger(ctx context.Context, cfg config.TaggerConfig, log *logger.Logger) (EntityTagger, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "lexicon":
		lex, err := LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return nil, err
		}
		log.Info("Lexicon entity tagger loaded", "path", cfg.LexiconPath, "entries", lex.Len())
		return lex, nil

	case "remote":
		rt := NewRemoteTagger(RemoteTaggerConfig{URL: cfg.URL, Timeout: cfg.Timeout})
		if err := rt.Probe(ctx); err != nil {
			return nil, err
		}
		log.Info("Remote entity tagger reachable", "url", cfg.URL)
		return rt, nil

	default:
		return nil, fmt.Errorf("unknown tagger type: %s", cfg.Type)
	}
}
