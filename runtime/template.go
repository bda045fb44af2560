package runtime

import (
	"strings"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
)

const dynamicSuffix = ".$"

// payload renders path-dialect payload templates (Parameters, ResultSelector,
// ItemSelector and friends). Keys ending in .$ are replaced by what their value
// selects: a $$ context path, a $name variable reference, a $ input path or an
// intrinsic call.
type payload struct {
	library   *intrinsics.Library
	input     any
	context   map[string]any
	variables map[string]any
}

func (p payload) render(template any) (any, error) {
	switch t := template.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			name, dynamic := strings.CutSuffix(key, dynamicSuffix)
			if !dynamic {
				rendered, err := p.render(value)
				if err != nil {
					return nil, err
				}
				out[key] = rendered
				continue
			}

			selector, ok := value.(string)
			if !ok {
				return nil, states.NewRuntimeError("The value of field [%s] must be a path or an intrinsic function, got %s", key, describe(value))
			}
			resolved, err := p.resolve(selector)
			if err != nil {
				return nil, err
			}
			out[name] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			rendered, err := p.render(value)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil

	default:
		return t, nil
	}
}

func (p payload) resolve(selector string) (any, error) {
	if !strings.HasPrefix(selector, "$") {
		return p.library.ApplyScope(intrinsics.Scope{Input: p.input, Context: p.context, Lookup: p.lookup}, selector)
	}

	value, found, err := p.lookup(selector)
	if err != nil || !found {
		return nil, states.NewParameterPathFailure(selector)
	}
	return jsonpath.DeepCopy(value), nil
}

// lookup resolves a reference path against the document it addresses.
func (p payload) lookup(selector string) (any, bool, error) {
	switch {
	case strings.HasPrefix(selector, "$$"):
		return jsonpath.Lookup(p.context, selector[1:])
	case isVariableRef(selector):
		name, rest := splitVariableRef(selector)
		value, ok := p.variables[name]
		if !ok {
			return nil, false, nil
		}
		return jsonpath.Lookup(value, "$"+rest)
	}
	return jsonpath.Lookup(p.input, selector)
}

// isVariableRef reports whether s is a $name reference to an assigned variable.
func isVariableRef(s string) bool {
	if len(s) < 2 || s[0] != '$' {
		return false
	}
	c := s[1]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func splitVariableRef(s string) (name, rest string) {
	s = s[1:]
	end := strings.IndexAny(s, ".[")
	if end == -1 {
		return s, ""
	}
	return s[:end], s[end:]
}
