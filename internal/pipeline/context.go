package pipeline

import (
	"context"

	"github.com/siemql/siemql/internal/pkg/errors"
)

type sessionIDKey struct{}

var errNoInserter = errors.New(errors.CodeUnavailable, "log store does not accept inserts")

// WithSessionID returns a context carrying the session id used to correlate
// audit events and log lines.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the session id stored by WithSessionID, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
