// internal/operations/normalize.go
package operations

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrResponseUnparseable means a decoded response body could not be reduced to a candidate
// list: a string payload was not JSON, or the value had an unsupported shape.
var ErrResponseUnparseable = errors.New("operations: response could not be parsed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fencedJSONRegex captures the body of a Markdown code fence, with or without a json tag.
// \x60 is a backtick; raw strings cannot contain one.
var fencedJSONRegex = regexp.MustCompile("(?s)^\x60\x60\x60(?:json|JSON)?\\s*(.*?)\\s*\x60\x60\x60$")

// Fields of a mapping response checked, in order, for the candidate list.
const (
	fieldOperations = "operations"
	fieldActions    = "actions"
	fieldResponse   = "response"
)

// Candidate is one unvalidated record taken from a normalized response. Value is whatever
// the endpoint sent at that position; it is usually, but not necessarily, a JSON object.
type Candidate struct {
	Value any
}

// Record returns the candidate as a JSON object, if it is one.
func (c Candidate) Record() (map[string]any, bool) {
	m, ok := c.Value.(map[string]any)
	return m, ok
}

// Normalize reduces a decoded response of any supported shape to a list of candidates.
//
// A mapping yields its "operations" field, else its "actions" field, else its "response"
// field parsed as JSON text, else the mapping itself. A sequence is used as is. A string is
// parsed as JSON once and the result goes through the same rules. Anything that does not
// resolve to a sequence is wrapped as a single candidate.
func Normalize(raw any) ([]Candidate, error) {
	resolved, err := resolve(raw, true)
	if err != nil {
		return nil, err
	}
	return toCandidates(resolved), nil
}

func resolve(raw any, allowString bool) (any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return resolveMapping(v)
	case []any:
		return v, nil
	case string:
		if !allowString {
			return nil, fmt.Errorf("%w: JSON text decoded to another string", ErrResponseUnparseable)
		}
		parsed, err := parseJSONText(v)
		if err != nil {
			return nil, err
		}
		return resolve(parsed, false)
	default:
		return nil, fmt.Errorf("%w: unsupported response type %T", ErrResponseUnparseable, raw)
	}
}

func resolveMapping(m map[string]any) (any, error) {
	if v, ok := m[fieldOperations]; ok {
		return v, nil
	}
	if v, ok := m[fieldActions]; ok {
		return v, nil
	}
	if v, ok := m[fieldResponse]; ok {
		text, isString := v.(string)
		if !isString {
			return nil, fmt.Errorf("%w: %q field is %T, want JSON text", ErrResponseUnparseable, fieldResponse, v)
		}
		return parseJSONText(text)
	}
	return m, nil
}

// parseJSONText decodes a JSON document, first removing a surrounding Markdown code fence
// if the model added one.
func parseJSONText(text string) (any, error) {
	text = strings.TrimSpace(text)
	if matches := fencedJSONRegex.FindStringSubmatch(text); len(matches) > 1 {
		text = matches[1]
	}

	var v any
	if err := json.UnmarshalFromString(text, &v); err != nil {
		return nil, fmt.Errorf("%w: %w (payload: %s)", ErrResponseUnparseable, err, truncate(text, 200))
	}
	return v, nil
}

func toCandidates(v any) []Candidate {
	list, ok := v.([]any)
	if !ok {
		return []Candidate{{Value: v}}
	}
	out := make([]Candidate, len(list))
	for i, item := range list {
		out[i] = Candidate{Value: item}
	}
	return out
}

// truncate shortens s for error messages. It may cut a multi-byte rune, which is fine for logs.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
