// Package components renders the web front end's HTML fragments as templ
// components.
package components

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/a-h/templ"

	"github.com/siemql/siemql/internal/format"
)

// HistoryItem is one earlier turn of the analyst's session.
type HistoryItem struct {
	Text   string
	At     time.Time
	Total  int64
	Failed bool
}

// SearchPageData is the data for the search page.
type SearchPageData struct {
	Query   string
	Index   string
	History []HistoryItem
	Now     time.Time
}

// ResultsData is the data for one rendered query outcome.
type ResultsData struct {
	TurnID string
	Kind   string
	Report *format.Report
}

// SearchPage renders the full search page.
func SearchPage(data SearchPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>siemql</title>`)
		p.raw(`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`)
		p.raw(`<script src="https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"></script>`)
		p.raw(`</head><body>`)

		p.raw(`<header><h1>siemql</h1><span class="index">`)
		p.text(data.Index)
		p.raw(`</span></header><main>`)

		p.raw(`<form hx-post="/search" hx-target="#results" hx-swap="innerHTML">`)
		p.raw(`<input type="text" name="q" placeholder="failed logins per ip in the last 6 hours" autofocus value="`)
		p.text(data.Query)
		p.raw(`"><button type="submit">Search</button></form>`)
		p.raw(`<section id="results"></section>`)

		if len(data.History) > 0 {
			p.raw(`<section id="history"><h2>Session</h2><ol>`)
			for _, h := range data.History {
				p.raw(`<li>`)
				p.text(h.Text)
				if h.Failed {
					p.raw(` <span class="failed">failed</span>`)
				} else {
					p.rawf(` <span class="total">%s hits</span>`, formatCount(h.Total))
				}
				p.raw(` <time>`)
				p.text(formatRelativeTime(h.At, data.Now))
				p.raw(`</time></li>`)
			}
			p.raw(`</ol></section>`)
		}

		p.raw(`<section id="audit" hx-ext="sse" sse-connect="/events"><h2>Activity</h2>`)
		p.raw(`<ul sse-swap="audit" hx-swap="afterbegin"></ul></section>`)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// Results renders the outcome of one query: the parsed entities, the DSL,
// then hits and aggregations or the failure.
func Results(data ResultsData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		r := data.Report

		p.raw(`<div class="result" data-turn="`)
		p.text(data.TurnID)
		p.raw(`"><p class="kind">`)
		p.text(data.Kind)
		p.raw(`</p>`)

		p.raw(`<details><summary>Parsed</summary><pre>`)
		p.text(pretty(r.Parsed))
		p.raw(`</pre></details>`)
		p.raw(`<details><summary>DSL</summary><pre>`)
		p.text(pretty(r.DSL))
		p.raw(`</pre></details>`)

		if r.Error != "" {
			p.raw(`<div class="error">Search failed: `)
			p.text(r.Error)
			p.raw(`</div></div>`)
			return p.err
		}

		p.rawf(`<h3>Hits (%d of %d)</h3>`, len(r.Hits), r.Total)
		if len(r.Hits) > 0 {
			p.raw(`<table class="hits"><thead><tr><th>ID</th><th>Timestamp</th><th>User</th><th>Event</th><th>Message</th></tr></thead><tbody>`)
			for _, h := range r.Hits {
				p.raw(`<tr>`)
				for _, cell := range []string{h.ID, h.Timestamp, h.User, h.Event, oneLine(h.Message)} {
					p.raw(`<td>`)
					p.text(cell)
					p.raw(`</td>`)
				}
				p.raw(`</tr>`)
			}
			p.raw(`</tbody></table>`)
		}

		if len(r.Aggregations) > 0 {
			names := make([]string, 0, len(r.Aggregations))
			for name := range r.Aggregations {
				names = append(names, name)
			}
			sort.Strings(names)

			p.raw(`<h3>Aggregations</h3>`)
			for _, name := range names {
				p.raw(`<div class="aggregation"><h4>`)
				p.text(name)
				p.raw(`</h4>`)
				switch v := r.Aggregations[name].(type) {
				case []format.BucketRow:
					p.raw(`<table class="buckets"><tbody>`)
					for _, b := range v {
						p.raw(`<tr><td>`)
						p.text(fmt.Sprint(b.Key))
						p.rawf(`</td><td>%d</td></tr>`, b.DocCount)
					}
					p.raw(`</tbody></table>`)
				default:
					p.raw(`<p>`)
					p.text(pretty(v))
					p.raw(`</p>`)
				}
				p.raw(`</div>`)
			}
		}

		p.raw(`</div>`)
		return p.err
	})
}

// ErrorMessage renders an inline error.
func ErrorMessage(msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="error">`)
		p.text(msg)
		p.raw(`</div>`)
		return p.err
	})
}
