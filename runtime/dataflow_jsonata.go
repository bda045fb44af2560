package runtime

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/BDNK1/sfnsim/runtime/choice"
	"github.com/BDNK1/sfnsim/runtime/engine/expr"
	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/states"
)

var _ DataFlow = (*exprFlow)(nil)

// statesKey is the reserved variable holding input, context, result and
// errorOutput. Assign cannot overwrite it.
const statesKey = "states"

// exprFlow implements the JSONata dialect on top of the expression evaluator.
// Arguments builds the effective input and Output the state output; both see
// the assigned variables and a states object.
type exprFlow struct {
	l         *slog.Logger
	evaluator *expr.Evaluator
}

func newExprFlow(l *slog.Logger, evaluator *expr.Evaluator) *exprFlow {
	return &exprFlow{l: l, evaluator: evaluator}
}

func (f *exprFlow) env(e *Execution, input any, bound map[string]any) map[string]any {
	statesValue := map[string]any{
		"input":   input,
		"context": e.Vars.Context.Document(),
	}
	maps.Copy(statesValue, bound)

	env := make(map[string]any, len(e.Vars.Assigned)+1)
	maps.Copy(env, e.Vars.Assigned)
	env[statesKey] = statesValue
	return env
}

func (f *exprFlow) Input(e *Execution, s *State, raw any) (any, error) {
	if s.Arguments == nil {
		return raw, nil
	}
	return f.evaluator.Evaluate(s.Arguments, f.env(e, raw, nil))
}

func (f *exprFlow) Output(e *Execution, s *State, raw, _, result any, hasResult bool) (any, error) {
	var bound map[string]any
	if hasResult {
		bound = map[string]any{"result": result}
	}
	env := f.env(e, raw, bound)

	output := raw
	if hasResult {
		output = result
	}
	if s.Output != nil {
		evaluated, err := f.evaluator.Evaluate(s.Output, env)
		if err != nil {
			return nil, err
		}
		output = evaluated
	}

	if err := f.assign(e, s.Assign, env); err != nil {
		return nil, err
	}
	return output, nil
}

// assign evaluates every assignment against env, which holds the variables
// from before this state, and then merges them in one step.
func (f *exprFlow) assign(e *Execution, assign map[string]any, env map[string]any) error {
	if len(assign) == 0 {
		return nil
	}

	values := make(map[string]any, len(assign))
	for name, value := range assign {
		if name == statesKey {
			f.l.WarnContext(e, fmt.Sprintf("Ignoring assignment to reserved variable %q", statesKey))
			continue
		}
		evaluated, err := f.evaluator.Evaluate(value, env)
		if err != nil {
			return err
		}
		values[name] = evaluated
	}
	e.Assign(values)
	return nil
}

func (f *exprFlow) Items(e *Execution, s *State, effective any) ([]any, error) {
	value := effective
	if s.Items != nil {
		evaluated, err := f.evaluator.Evaluate(s.Items, f.env(e, effective, nil))
		if err != nil {
			return nil, err
		}
		value = evaluated
	}
	items, ok := value.([]any)
	if !ok {
		return nil, states.NewRuntimeError("Items must resolve to an array, got %s", describe(value))
	}
	return items, nil
}

func (f *exprFlow) ItemInput(e *Execution, s *State, effective, item any) (any, error) {
	if s.ItemSelector == nil {
		return jsonpath.DeepCopy(item), nil
	}
	return f.evaluator.Evaluate(s.ItemSelector, f.env(e, effective, nil))
}

func (f *exprFlow) Template(e *Execution, template any, input any) (any, error) {
	if template == nil {
		return map[string]any{}, nil
	}
	return f.evaluator.Evaluate(template, f.env(e, input, nil))
}

// TaskResult exposes Lambda function results under Payload, the shape of a
// Lambda invoke response.
func (f *exprFlow) TaskResult(resource string, result any) any {
	if isLambdaFunctionARN(resource) {
		return map[string]any{"Payload": result}
	}
	return result
}

func (f *exprFlow) Matcher(e *Execution, input any) choice.Matcher {
	return choice.ConditionMatcher(f.evaluator, f.env(e, input, nil))
}

func (f *exprFlow) WaitFor(e *Execution, s *State, input any) (WaitSpec, error) {
	env := f.env(e, input, nil)
	switch {
	case s.Seconds != nil:
		value, err := f.evaluator.Evaluate(s.Seconds, env)
		if err != nil {
			return WaitSpec{}, err
		}
		return secondsSpec(value)
	case s.Timestamp != nil:
		value, err := f.evaluator.Evaluate(s.Timestamp, env)
		if err != nil {
			return WaitSpec{}, err
		}
		return timestampSpec(value)
	}
	return WaitSpec{}, errWaitUnresolved()
}

func (f *exprFlow) Failure(e *Execution, s *State, input any) (string, string, error) {
	env := f.env(e, input, nil)
	name, err := f.failureField(s.Error, env)
	if err != nil {
		return "", "", err
	}
	cause, err := f.failureField(s.Cause, env)
	if err != nil {
		return "", "", err
	}
	return name, cause, nil
}

func (f *exprFlow) failureField(value any, env map[string]any) (string, error) {
	if value == nil {
		return "", nil
	}
	evaluated, err := f.evaluator.Evaluate(value, env)
	if err != nil {
		return "", err
	}
	s, ok := evaluated.(string)
	if !ok {
		return "", states.NewRuntimeError("Error and Cause must evaluate to strings, got %s", describe(evaluated))
	}
	return s, nil
}

func (f *exprFlow) Caught(e *Execution, c *Catcher, raw any, stateErr *states.Error) (any, error) {
	errorOutput := stateErr.ToMap()
	env := f.env(e, raw, map[string]any{"errorOutput": errorOutput})

	var output any = errorOutput
	switch {
	case c.ResultPath.Set:
		merged, err := stateResult(raw, errorOutput, c.ResultPath)
		if err != nil {
			return nil, err
		}
		output = merged
	case c.Output != nil:
		evaluated, err := f.evaluator.Evaluate(c.Output, env)
		if err != nil {
			return nil, err
		}
		output = evaluated
	}

	if err := f.assign(e, c.Assign, env); err != nil {
		return nil, err
	}
	return output, nil
}
