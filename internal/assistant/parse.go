package assistant

// parse.go is the single entry point for reading structured data out of
// completion text. Models often wrap JSON in markdown fences and sometimes add
// nothing else; anything beyond one JSON object is rejected.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/JonMunkholm/salesunifier/internal/core"
)

var fenceRegex = regexp.MustCompile("```(?i:json)?\\s*")

// ErrNotObject is returned when the completion is valid JSON but not an object.
var ErrNotObject = errors.New("response is not a JSON object")

// StripFences removes markdown code fences around a completion.
func StripFences(s string) string {
	return strings.TrimSpace(fenceRegex.ReplaceAllString(strings.TrimSpace(s), ""))
}

// ParseObject strips fences and decodes a single JSON object, keeping the key
// order of the response. Values become string or float64; null becomes nil;
// booleans and nested values are kept as their JSON text.
func ParseObject(response string) ([]core.KeyValue, error) {
	text := StripFences(response)
	if text == "" {
		return nil, errors.New("empty response")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	var pairs []core.KeyValue
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		v, err := scalarValue(raw)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		pairs = append(pairs, core.KeyValue{Key: key, Value: v})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return pairs, nil
}

func scalarValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("missing value")
	}

	switch trimmed[0] {
	case 'n':
		return nil, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return s, nil
	case 't', 'f', '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return nil, err
		}
		return compact.String(), nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		return n.Float64()
	}
}
