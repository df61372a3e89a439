package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedInput is returned when probe input is not a JSON object.
var ErrMalformedInput = errors.New("input must be a JSON object")

// ParseInput normalises probe input to an object.
//
// Accepted forms are JSON text (string, []byte, json.RawMessage), maps and
// any value that marshals to a JSON object. nil, "" and "{}" all mean the
// empty object. Arrays, scalars and invalid JSON are rejected with
// ErrMalformedInput.
//
// The returned raw form is compact JSON with sorted keys.
func ParseInput(input any) (map[string]any, json.RawMessage, error) {
	var data []byte
	switch v := input.(type) {
	case nil:
		return map[string]any{}, json.RawMessage("{}"), nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		data = b
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return map[string]any{}, json.RawMessage("{}"), nil
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("%w: trailing data after object", ErrMalformedInput)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: got %s", ErrMalformedInput, jsonKind(decoded))
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return obj, raw, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// stringify renders a decoded JSON value for a path or query slot.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return ""
	case map[string]any, []any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
