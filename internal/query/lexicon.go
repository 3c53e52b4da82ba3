package query

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LexiconEntry is one known principal and the spellings that refer to it.
type LexiconEntry struct {
	Name    string   `yaml:"name"`
	Label   string   `yaml:"label"`
	Aliases []string `yaml:"aliases"`
}

type lexiconFile struct {
	Entities []LexiconEntry `yaml:"entities"`
}

type compiledEntry struct {
	entry   LexiconEntry
	pattern *regexp.Regexp
}

// LexiconTagger tags known account, service and product names from a
// dictionary. Matching is case-insensitive on whole words and every span
// carries the entry's canonical name.
type LexiconTagger struct {
	entries []compiledEntry
}

// LoadLexicon reads a YAML lexicon:
//
//	entities:
//	  - name: svc-backup
//	    label: PRODUCT
//	    aliases: [backup service]
func LoadLexicon(path string) (*LexiconTagger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon builds a tagger from YAML bytes.
func ParseLexicon(data []byte) (*LexiconTagger, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	return NewLexiconTagger(f.Entities)
}

// NewLexiconTagger compiles entries. An entry without a label is tagged PERSON.
func NewLexiconTagger(entries []LexiconEntry) (*LexiconTagger, error) {
	lt := &LexiconTagger{entries: make([]compiledEntry, 0, len(entries))}

	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("lexicon entry without name")
		}
		if e.Label == "" {
			e.Label = LabelPerson
		}

		forms := append([]string{e.Name}, e.Aliases...)
		quoted := make([]string, 0, len(forms))
		for _, f := range forms {
			if f = strings.TrimSpace(f); f != "" {
				quoted = append(quoted, regexp.QuoteMeta(f))
			}
		}
		// Longest form first so "backup service" beats "backup".
		sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })

		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compiling lexicon entry %q: %w", e.Name, err)
		}
		lt.entries = append(lt.entries, compiledEntry{entry: e, pattern: re})
	}

	return lt, nil
}

// Name implements EntityTagger.
func (t *LexiconTagger) Name() string { return "lexicon" }

// Len returns the number of entries.
func (t *LexiconTagger) Len() int { return len(t.entries) }

// Tag implements EntityTagger.
func (t *LexiconTagger) Tag(_ context.Context, text string) ([]Span, error) {
	var spans []Span
	for _, ce := range t.entries {
		for _, loc := range ce.pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, Span{
				Text:  ce.entry.Name,
				Label: ce.entry.Label,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}
