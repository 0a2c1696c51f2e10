package cli

import (
	"github.com/goccy/go-json"
)

// view converts a value to its generic JSON form, so text output uses the
// same field names as JSON output.
func view(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// respond prints v through the formatter.
func (s *session) respond(v any) error {
	out, err := view(v)
	if err != nil {
		return s.formatter.Fail(ErrCodeGeneric, ExitFailure, err)
	}
	return s.formatter.Success(out)
}
