package format

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/siemql/siemql/internal/pkg/errors"
)

// Filter runs the jq expression expr over v and returns every value it
// produces. v is round-tripped through JSON first so structs are seen the
// way they would be printed.
func Filter(v any, expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid jq expression", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "failed to compile jq expression", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "encoding jq input", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "decoding jq input", err)
	}

	values := []any{}
	iter := code.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			if haltErr, ok := err.(*gojq.HaltError); ok && haltErr.Value() == nil {
				break
			}
			return nil, errors.Wrap(errors.CodeValidation, fmt.Sprintf("jq %q", expr), err)
		}
		values = append(values, out)
	}
	return values, nil
}
