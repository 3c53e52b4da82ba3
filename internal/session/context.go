// Package session keeps the bounded per-analyst history of handled queries
// and supplies defaults for follow-up queries from it.
package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/siemql/siemql/internal/logstore"
	"github.com/siemql/siemql/internal/query"
)

// DefaultMaxTurns is the history capacity when none is configured.
const DefaultMaxTurns = 50

// Turn is one handled query.
type Turn struct {
	ID       string                   `json:"id"`
	RawText  string                   `json:"raw_text"`
	Parsed   query.ParsedQuery        `json:"parsed"`
	Response *logstore.SearchResponse `json:"response,omitempty"`
	At       time.Time                `json:"at"`
}

// Context is an ordered, capacity-bounded history of turns. Recording past
// capacity drops the oldest turn. A Context is not safe for concurrent use;
// Manager serialises access per session.
type Context struct {
	turns    []Turn
	maxTurns int
	rules    []InheritRule
}

// NewContext creates an empty history. maxTurns <= 0 uses DefaultMaxTurns.
// With no rules, DefaultRules apply.
func NewContext(maxTurns int, rules ...InheritRule) *Context {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Context{
		turns:    make([]Turn, 0, min(maxTurns, 16)),
		maxTurns: maxTurns,
		rules:    rules,
	}
}

// Record appends turn, evicting the oldest when full. A missing ID or
// timestamp is filled in.
func (c *Context) Record(turn Turn) {
	if turn.ID == "" {
		turn.ID = NewID()
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}

	if len(c.turns) >= c.maxTurns {
		n := copy(c.turns, c.turns[len(c.turns)-c.maxTurns+1:])
		clear(c.turns[n:])
		c.turns = c.turns[:n]
	}
	c.turns = append(c.turns, turn)
}

// LastParsed returns the parse of the most recent turn.
func (c *Context) LastParsed() (query.ParsedQuery, bool) {
	if len(c.turns) == 0 {
		return query.ParsedQuery{}, false
	}
	return c.turns[len(c.turns)-1].Parsed, true
}

// Turns returns a copy of the history, oldest first.
func (c *Context) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of recorded turns.
func (c *Context) Len() int { return len(c.turns) }

// Cap returns the capacity.
func (c *Context) Cap() int { return c.maxTurns }

// Reset drops all turns.
func (c *Context) Reset() {
	clear(c.turns)
	c.turns = c.turns[:0]
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new lexically sortable ULID string.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Now(), idEntropy).String()
}

// validID reports whether id parses as a ULID.
func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
