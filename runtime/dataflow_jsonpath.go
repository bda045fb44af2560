package runtime

import (
	"time"

	"github.com/BDNK1/sfnsim/runtime/choice"
	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
)

var _ DataFlow = (*pathFlow)(nil)

// pathFlow implements the JSONPath dialect:
//
//	raw -> InputPath -> Parameters -> action -> ResultSelector -> ResultPath -> OutputPath
type pathFlow struct {
	library *intrinsics.Library
}

func newPathFlow(library *intrinsics.Library) *pathFlow {
	return &pathFlow{library: library}
}

func (f *pathFlow) payload(e *Execution, input any) payload {
	return payload{
		library:   f.library,
		input:     input,
		context:   e.Vars.Context.Document(),
		variables: e.Vars.Assigned,
	}
}

func (f *pathFlow) Input(e *Execution, s *State, raw any) (any, error) {
	effective, err := selectPath(raw, s.InputPath, "InputPath")
	if err != nil {
		return nil, err
	}
	if s.Parameters == nil {
		return effective, nil
	}
	return f.payload(e, effective).render(s.Parameters)
}

func (f *pathFlow) Output(e *Execution, s *State, raw, effective, result any, hasResult bool) (any, error) {
	if !hasResult {
		if err := f.assign(e, s, effective); err != nil {
			return nil, err
		}
		return selectPath(effective, s.OutputPath, "OutputPath")
	}

	if s.ResultSelector != nil {
		selected, err := f.payload(e, result).render(s.ResultSelector)
		if err != nil {
			return nil, err
		}
		result = selected
	}
	if err := f.assign(e, s, result); err != nil {
		return nil, err
	}

	merged, err := stateResult(raw, result, s.ResultPath)
	if err != nil {
		return nil, err
	}
	return selectPath(merged, s.OutputPath, "OutputPath")
}

// assign renders the Assign block against the state result and stores it.
func (f *pathFlow) assign(e *Execution, s *State, input any) error {
	if len(s.Assign) == 0 {
		return nil
	}
	rendered, err := f.payload(e, input).render(map[string]any(s.Assign))
	if err != nil {
		return err
	}
	e.Assign(rendered.(map[string]any))
	return nil
}

func (f *pathFlow) Items(e *Execution, s *State, effective any) ([]any, error) {
	path := jsonpath.Root
	if s.ItemsPath.Set && !s.ItemsPath.Null {
		path = s.ItemsPath.Path
	}
	value, found, err := f.payload(e, effective).lookup(path)
	if err != nil || !found {
		return nil, states.NewRuntimeError("ItemsPath [%s] could not be resolved against the state input", path)
	}
	items, ok := value.([]any)
	if !ok {
		return nil, states.NewRuntimeError("Items must resolve to an array, got %s", describe(value))
	}
	return items, nil
}

func (f *pathFlow) ItemInput(e *Execution, s *State, effective, item any) (any, error) {
	if s.ItemSelector == nil {
		return jsonpath.DeepCopy(item), nil
	}
	return f.payload(e, effective).render(s.ItemSelector)
}

func (f *pathFlow) Template(e *Execution, template any, input any) (any, error) {
	if template == nil {
		return map[string]any{}, nil
	}
	return f.payload(e, input).render(template)
}

func (f *pathFlow) TaskResult(_ string, result any) any {
	return result
}

func (f *pathFlow) Matcher(e *Execution, input any) choice.Matcher {
	p := f.payload(e, input)
	return choice.PathMatcher(p.lookup)
}

func (f *pathFlow) WaitFor(e *Execution, s *State, input any) (WaitSpec, error) {
	switch {
	case s.Seconds != nil:
		return secondsSpec(s.Seconds)
	case s.SecondsPath != "":
		value, err := f.waitValue(e, input, s.SecondsPath)
		if err != nil {
			return WaitSpec{}, err
		}
		return secondsSpec(value)
	case s.Timestamp != nil:
		return timestampSpec(s.Timestamp)
	case s.TimestampPath != "":
		value, err := f.waitValue(e, input, s.TimestampPath)
		if err != nil {
			return WaitSpec{}, err
		}
		return timestampSpec(value)
	}
	return WaitSpec{}, errWaitUnresolved()
}

func (f *pathFlow) waitValue(e *Execution, input any, path string) (any, error) {
	value, found, err := f.payload(e, input).lookup(path)
	if err != nil || !found {
		return nil, errWaitUnresolved()
	}
	return value, nil
}

func (f *pathFlow) Failure(e *Execution, s *State, input any) (string, string, error) {
	name, err := f.failureField(e, input, s.Error, s.ErrorPath)
	if err != nil {
		return "", "", err
	}
	cause, err := f.failureField(e, input, s.Cause, s.CausePath)
	if err != nil {
		return "", "", err
	}
	return name, cause, nil
}

func (f *pathFlow) failureField(e *Execution, input any, literal any, path string) (string, error) {
	if path != "" {
		p := f.payload(e, input)
		value, err := p.resolve(path)
		if err != nil {
			return "", err
		}
		s, ok := value.(string)
		if !ok {
			return "", states.NewRuntimeError("Path [%s] must select a string, got %s", path, describe(value))
		}
		return s, nil
	}
	if literal == nil {
		return "", nil
	}
	s, ok := literal.(string)
	if !ok {
		return "", states.NewRuntimeError("Error and Cause must be strings, got %s", describe(literal))
	}
	return s, nil
}

func (f *pathFlow) Caught(_ *Execution, c *Catcher, raw any, stateErr *states.Error) (any, error) {
	return stateResult(raw, stateErr.ToMap(), c.ResultPath)
}

// selectPath applies an InputPath or OutputPath. Omitted keeps the value, null
// gives an empty object and a path that selects nothing is a runtime error.
func selectPath(value any, p OptionalPath, field string) (any, error) {
	switch {
	case !p.Set:
		return value, nil
	case p.Null:
		return map[string]any{}, nil
	}

	selected, found, err := jsonpath.Lookup(value, p.Path)
	if err != nil {
		return nil, states.NewRuntimeError("Invalid %s [%s]: %v", field, p.Path, err)
	}
	if !found {
		return nil, states.NewRuntimeError("%s [%s] could not be resolved against the state input", field, p.Path)
	}
	return selected, nil
}

// stateResult combines the raw state input with a result according to
// ResultPath. Null keeps the input, omitted replaces it, and a path writes the
// result into a copy of the input.
func stateResult(raw, result any, p OptionalPath) (any, error) {
	switch {
	case p.Null:
		return raw, nil
	case !p.Set || p.Path == "" || p.Path == jsonpath.Root:
		return result, nil
	}

	if !jsonpath.IsPath(p.Path) {
		return nil, states.NewResultPathMatchFailure(p.Path)
	}
	merged, err := jsonpath.Set(raw, p.Path, result)
	if err != nil {
		return nil, states.NewResultPathMatchFailure(p.Path)
	}
	return merged, nil
}

func secondsSpec(value any) (WaitSpec, error) {
	var seconds float64
	switch v := value.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	default:
		return WaitSpec{}, states.NewRuntimeError("Wait seconds must be a number, got %s", describe(value))
	}
	if seconds < 0 {
		return WaitSpec{}, states.NewRuntimeError("Wait seconds must not be negative, got %v", seconds)
	}
	return WaitSpec{Seconds: &seconds}, nil
}

func timestampSpec(value any) (WaitSpec, error) {
	s, ok := value.(string)
	if !ok {
		return WaitSpec{}, states.NewRuntimeError("Wait timestamp must be a string, got %s", describe(value))
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return WaitSpec{}, states.NewRuntimeError("Wait timestamp [%s] is not an RFC 3339 timestamp", s)
	}
	return WaitSpec{Timestamp: &ts}, nil
}

func errWaitUnresolved() error {
	return states.NewRuntimeError("Could not resolve value of Seconds, SecondsPath, Timestamp or TimestampPath in Wait step")
}
