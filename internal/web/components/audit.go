package components

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
)

// AuditEntry is one audit event as shown in the activity feed.
type AuditEntry struct {
	Type          string
	Summary       string
	CorrelationID string
	At            time.Time
}

// AuditItem renders one activity feed line. The markup carries no newlines
// so it fits a single SSE data field.
func AuditItem(e AuditEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<li class="audit" data-type="`)
		p.text(e.Type)
		p.raw(`" data-session="`)
		p.text(e.CorrelationID)
		p.raw(`"><time>`)
		p.text(e.At.Format("15:04:05"))
		p.raw(`</time> <span class="type">`)
		p.text(e.Type)
		p.raw(`</span> `)
		p.text(oneLine(e.Summary))
		p.raw(`</li>`)
		return p.err
	})
}
