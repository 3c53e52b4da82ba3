package pipeline

import (
	"strings"
	"unicode"

	"github.com/siemql/siemql/internal/logstore"
	"github.com/siemql/siemql/internal/pkg/errors"
)

// ParseDocument reads `key=value` pairs from line. Values may be quoted with
// single or double quotes to include spaces. Tokens without '=' are ignored.
func ParseDocument(line string) (logstore.Document, error) {
	return ParseDocumentArgs(splitQuoted(line))
}

// ParseDocumentArgs builds a document from pre-split `key=value` args, as
// handed over by a shell.
func ParseDocumentArgs(args []string) (logstore.Document, error) {
	doc := logstore.Document{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		doc[k] = strings.Trim(v, `'"`)
	}
	if len(doc) == 0 {
		return nil, errors.New(errors.CodeValidation, "no key=value pairs given")
	}
	return doc, nil
}

// splitQuoted splits on whitespace outside quotes and drops the quotes.
func splitQuoted(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		inTok bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inTok = true
		case unicode.IsSpace(r):
			if inTok {
				out = append(out, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if inTok {
		out = append(out, cur.String())
	}
	return out
}
