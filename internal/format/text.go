package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/siemql/siemql/internal/logstore"
)

// MaxTextHits caps the hit table printed by WriteText.
const MaxTextHits = 10

// Report is everything a front end shows for one handled query.
type Report struct {
	Parsed       any            `json:"parsed"`
	DSL          map[string]any `json:"dsl"`
	Hits         []Row          `json:"hits"`
	Total        int64          `json:"total"`
	Aggregations map[string]any `json:"aggregations,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// NewReport builds a Report from the parsed query, the encoded request and
// the search outcome.
func NewReport(parsed any, dsl map[string]any, resp *logstore.SearchResponse) *Report {
	r := &Report{
		Parsed:       parsed,
		DSL:          dsl,
		Hits:         Hits(resp),
		Aggregations: Aggregations(resp),
	}
	if resp != nil {
		r.Total = resp.Total
		r.Error = resp.Error
	}
	if len(r.Aggregations) == 0 {
		r.Aggregations = nil
	}
	return r
}

// WriteText renders r for a terminal: the parsed query and DSL as indented
// JSON, the first MaxTextHits hits as a table, then any aggregations.
func WriteText(w io.Writer, r *Report) error {
	ew := &errWriter{w: w}

	ew.printf("\nParsed:\n")
	ew.json(r.Parsed)
	ew.printf("\nDSL:\n")
	ew.json(r.DSL)

	if r.Error != "" {
		ew.printf("\nSearch failed: %s\n", r.Error)
		return ew.err
	}

	shown := r.Hits
	if len(shown) > MaxTextHits {
		shown = shown[:MaxTextHits]
	}
	ew.printf("\nHits (%d of %d):\n", len(shown), r.Total)
	if len(shown) > 0 {
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIMESTAMP\tUSER\tEVENT\tMESSAGE")
		for _, row := range shown {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.ID, row.Timestamp, row.User, row.Event, row.Message)
		}
		if err := tw.Flush(); err != nil && ew.err == nil {
			ew.err = err
		}
	}

	if len(r.Aggregations) > 0 {
		ew.printf("\nAggregations:\n")
		names := make([]string, 0, len(r.Aggregations))
		for name := range r.Aggregations {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			buckets, ok := r.Aggregations[name].([]BucketRow)
			if !ok {
				ew.printf("  %s: %v\n", name, r.Aggregations[name])
				continue
			}
			ew.printf("  %s:\n", name)
			tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
			for _, b := range buckets {
				fmt.Fprintf(tw, "    %v\t%d\n", b.Key, b.DocCount)
			}
			if err := tw.Flush(); err != nil && ew.err == nil {
				ew.err = err
			}
		}
	}

	return ew.err
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}

func (e *errWriter) json(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		if e.err == nil {
			e.err = err
		}
		return
	}
	e.Write(append(data, '\n'))
}
