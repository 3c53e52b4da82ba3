package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits.
const (
	// MaxQueryLength bounds an analyst question in characters.
	MaxQueryLength = 1000

	// MaxIndexNameBytes is the log store's limit on index names.
	MaxIndexNameBytes = 255

	// MaxDocumentFields bounds the fields of one inserted document.
	MaxDocumentFields = 100

	// MaxFieldNameLength bounds a document field name in characters.
	MaxFieldNameLength = 256
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// ValidateQuery validates an analyst question.
// Requirements: Required, at most MaxQueryLength chars, valid UTF-8.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return &ValidationError{
			Field:      "query",
			Constraint: "required",
		}
	}

	if !utf8.ValidString(query) {
		return &ValidationError{
			Field:      "query",
			Constraint: "must be valid UTF-8",
		}
	}

	if length := utf8.RuneCountInString(query); length > MaxQueryLength {
		return &ValidationError{
			Field:      "query",
			Value:      length,
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxQueryLength),
		}
	}

	return nil
}

// indexForbidden are characters the log store rejects in index names.
const indexForbidden = `\/*?"<>| ,#:`

// ValidateIndexName checks name against the log store's index naming rules:
// lowercase, no forbidden characters, not starting with '-', '_' or '+',
// not "." or "..", and at most MaxIndexNameBytes bytes.
func ValidateIndexName(name string) error {
	fail := func(constraint string) error {
		return &ValidationError{Field: "index", Value: SanitizeForLog(name), Constraint: constraint}
	}

	switch {
	case name == "":
		return &ValidationError{Field: "index", Constraint: "required"}
	case len(name) > MaxIndexNameBytes:
		return fail(fmt.Sprintf("maximum length is %d bytes", MaxIndexNameBytes))
	case name == "." || name == "..":
		return fail("must not be . or ..")
	case strings.ContainsAny(name[:1], "-_+"):
		return fail("must not start with -, _ or +")
	case strings.ContainsAny(name, indexForbidden):
		return fail("contains a forbidden character")
	case strings.ToLower(name) != name:
		return fail("must be lowercase")
	}
	return nil
}

// ValidateDocument checks the field names of a document about to be
// stored. Names starting with '_' collide with the store's metadata fields.
func ValidateDocument(doc map[string]any) error {
	if len(doc) == 0 {
		return &ValidationError{Field: "document", Constraint: "at least one field is required"}
	}
	if len(doc) > MaxDocumentFields {
		return &ValidationError{
			Field:      "document",
			Value:      len(doc),
			Constraint: fmt.Sprintf("at most %d fields", MaxDocumentFields),
		}
	}

	for name := range doc {
		if err := validateFieldName(name); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldName(name string) error {
	fail := func(constraint string) error {
		return &ValidationError{Field: "field name", Value: SanitizeForLog(name), Constraint: constraint}
	}

	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Field: "field name", Constraint: "required"}
	case utf8.RuneCountInString(name) > MaxFieldNameLength:
		return fail(fmt.Sprintf("maximum length is %d characters", MaxFieldNameLength))
	case strings.HasPrefix(name, "_"):
		return fail("must not start with _")
	case strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, ".."):
		return fail("empty path segment")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fail("contains a control character")
		}
	}
	return nil
}
