package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Cookie is the polymorphic cookie field on account save requests.
// Clients send it as a JSON string, a list, or an object; all three
// shapes normalize to a single stored string:
//
//   - a string is stored verbatim, whether or not its contents are JSON
//   - a list or object is re-serialized to compact JSON text
//   - any other scalar keeps its literal JSON representation
//
// Normalization is deterministic and lossless for JSON-shaped input.
type Cookie string

// UnmarshalJSON resolves the accepted input shapes to the canonical string.
func (c *Cookie) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*c = ""
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Cookie(s)
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return err
		}
		*c = Cookie(buf.String())
	default:
		// number, bool or null: keep the literal token
		if !json.Valid(trimmed) {
			return errors.New("invalid cookie value")
		}
		if bytes.Equal(trimmed, []byte("null")) {
			*c = ""
			return nil
		}
		*c = Cookie(trimmed)
	}
	return nil
}

// String returns the normalized stored representation.
func (c Cookie) String() string {
	return string(c)
}

// IsEmpty reports whether the cookie carries no value.
// Empty cookies fail required-field validation.
func (c Cookie) IsEmpty() bool {
	return c == ""
}
