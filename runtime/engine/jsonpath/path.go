package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

var (
	ErrNotFound    = errors.New("path not found")
	ErrInvalidPath = errors.New("invalid path")
)

// Root is the path selecting the whole document.
const Root = "$"

// IsPath reports whether s looks like a reference path.
func IsPath(s string) bool {
	return s == Root || strings.HasPrefix(s, "$.") || strings.HasPrefix(s, "$[")
}

// Parse splits a reference path into the hierarchy gabs understands.
// Supported forms: $.a.b, $.a[0], $.a.[0], $['a b'], $["a"].
func Parse(path string) ([]string, error) {
	if path == "" || path == Root {
		return nil, nil
	}
	if !strings.HasPrefix(path, Root) {
		return nil, fmt.Errorf("%w: %s must start with $", ErrInvalidPath, path)
	}

	rest := strings.ReplaceAll(path[1:], ".[", "[")
	var segments []string

	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				end = len(rest)
			}
			name := rest[:end]
			if name == "" || name == "*" {
				return nil, fmt.Errorf("%w: unsupported path expression %s", ErrInvalidPath, path)
			}
			segments = append(segments, name)
			rest = rest[end:]
		case '[':
			end := closingBracket(rest)
			if end == -1 {
				return nil, fmt.Errorf("%w: unterminated bracket in %s", ErrInvalidPath, path)
			}
			segment, err := bracketSegment(rest[1:end])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
			}
			segments = append(segments, segment)
			rest = rest[end+1:]
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %s", ErrInvalidPath, rest[0], path)
		}
	}

	return segments, nil
}

func closingBracket(s string) int {
	quote := byte(0)
	for i := 1; i < len(s); i++ {
		switch {
		case quote != 0 && s[i] == quote:
			quote = 0
		case quote == 0 && (s[i] == '\'' || s[i] == '"'):
			quote = s[i]
		case quote == 0 && s[i] == ']':
			return i
		}
	}
	return -1
}

func bracketSegment(inner string) (string, error) {
	inner = strings.TrimSpace(inner)
	if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
		return inner[1 : len(inner)-1], nil
	}
	index, err := strconv.Atoi(inner)
	if err != nil || index < 0 {
		return "", fmt.Errorf("unsupported subscript [%s]", inner)
	}
	return inner, nil
}

// Lookup resolves path against doc. The boolean is false when the path does not exist.
func Lookup(doc any, path string) (any, bool, error) {
	segments, err := Parse(path)
	if err != nil {
		return nil, false, err
	}
	if len(segments) == 0 {
		return doc, true, nil
	}

	container := gabs.Wrap(doc)
	if !container.Exists(segments...) {
		return nil, false, nil
	}
	return container.Search(segments...).Data(), true, nil
}

// Get resolves path against doc and fails with ErrNotFound for missing paths.
func Get(doc any, path string) (any, error) {
	value, ok, err := Lookup(doc, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return value, nil
}

// Set returns a copy of doc with value written at path. Missing intermediate objects
// are created. The original document is never modified.
func Set(doc any, path string, value any) (any, error) {
	segments, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return value, nil
	}

	container := gabs.Wrap(DeepCopy(doc))
	if _, err := container.Set(value, segments...); err != nil {
		return nil, fmt.Errorf("cannot set %s: %w", path, err)
	}
	return container.Data(), nil
}

// DeepCopy clones decoded JSON values (maps, slices and scalars).
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// Normalize converts arbitrary Go values into the decoded JSON shape the engine
// works on (map[string]any, []any, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON serialisable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
