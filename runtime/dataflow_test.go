package runtime

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
)

func TestStateResult(t *testing.T) {
	raw := map[string]any{"a": float64(1), "nested": map[string]any{"b": float64(2)}}
	result := map[string]any{"r": true}

	tests := []struct {
		name string
		path OptionalPath
		want any
	}{
		{"omitted replaces", OptionalPath{}, result},
		{"root replaces", Path("$"), result},
		{"null keeps input", NullPath(), raw},
		{"top level key", Path("$.out"), map[string]any{"a": float64(1), "nested": map[string]any{"b": float64(2)}, "out": result}},
		{"nested key", Path("$.nested.c"), map[string]any{"a": float64(1), "nested": map[string]any{"b": float64(2), "c": result}}},
		{"overwrite", Path("$.a"), map[string]any{"a": result, "nested": map[string]any{"b": float64(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stateResult(raw, result, tt.path)
			if err != nil {
				t.Fatalf("stateResult failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, ok := raw["out"]; ok {
		t.Error("Expected the raw input to be left untouched")
	}
}

func TestStateResult_Failures(t *testing.T) {
	for _, p := range []string{"$.a.b", "not-a-path"} {
		_, err := stateResult(map[string]any{"a": "scalar"}, 1, Path(p))
		se, ok := states.As(err)
		if !ok || se.Name != states.ResultPathMatchFailure {
			t.Errorf("%s: expected %s, got %v", p, states.ResultPathMatchFailure, err)
		}
	}
}

func TestSelectPath(t *testing.T) {
	value := map[string]any{"a": []any{"x", "y"}}

	got, err := selectPath(value, OptionalPath{}, "InputPath")
	if err != nil || !reflect.DeepEqual(got, value) {
		t.Errorf("Expected omitted path to keep the value, got %v (%v)", got, err)
	}

	got, err = selectPath(value, NullPath(), "InputPath")
	if err != nil || !reflect.DeepEqual(got, map[string]any{}) {
		t.Errorf("Expected null path to give {}, got %v (%v)", got, err)
	}

	got, err = selectPath(value, Path("$.a[1]"), "InputPath")
	if err != nil || got != "y" {
		t.Errorf("Expected y, got %v (%v)", got, err)
	}

	_, err = selectPath(value, Path("$.b"), "OutputPath")
	se, ok := states.As(err)
	if !ok || se.Name != states.RuntimeErrorName {
		t.Errorf("Expected runtime error for missing path, got %v", err)
	}
}

func TestPayloadRender(t *testing.T) {
	p := payload{
		library:   intrinsics.New(),
		input:     map[string]any{"order": map[string]any{"id": "o-1", "qty": float64(2)}},
		context:   map[string]any{"Execution": map[string]any{"Name": "run"}},
		variables: map[string]any{"customer": map[string]any{"tier": "gold"}},
	}

	got, err := p.render(map[string]any{
		"id.$":        "$.order.id",
		"execution.$": "$$.Execution.Name",
		"tier.$":      "$customer.tier",
		"label.$":     "States.Format('{}x{}', $.order.id, $.order.qty)",
		"static":      []any{"keep", map[string]any{"qty.$": "$.order.qty"}},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	want := map[string]any{
		"id":        "o-1",
		"execution": "run",
		"tier":      "gold",
		"label":     "o-1x2",
		"static":    []any{"keep", map[string]any{"qty": float64(2)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPayloadRender_Failures(t *testing.T) {
	p := payload{library: intrinsics.New(), input: map[string]any{}}

	tests := []struct {
		name     string
		template map[string]any
		want     string
	}{
		{"non string selector", map[string]any{"x.$": float64(1)}, states.RuntimeErrorName},
		{"missing path", map[string]any{"x.$": "$.nope"}, states.ParameterPathFailure},
		{"unknown variable", map[string]any{"x.$": "$nope"}, states.ParameterPathFailure},
		{"bad intrinsic", map[string]any{"x.$": "States.Nope()"}, states.IntrinsicFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.render(tt.template)
			se, ok := states.As(err)
			if !ok {
				t.Fatalf("Expected named error, got %v", err)
			}
			if se.Name != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, se.Name)
			}
		})
	}
}

func TestIsVariableRef(t *testing.T) {
	tests := []struct {
		selector string
		want     bool
	}{
		{"$count", true},
		{"$_private.x", true},
		{"$", false},
		{"$.a", false},
		{"$$.Execution", false},
		{"$[0]", false},
		{"count", false},
	}

	for _, tt := range tests {
		if got := isVariableRef(tt.selector); got != tt.want {
			t.Errorf("isVariableRef(%q) = %v, expected %v", tt.selector, got, tt.want)
		}
	}

	name, rest := splitVariableRef("$order.items[0]")
	if name != "order" || rest != ".items[0]" {
		t.Errorf("splitVariableRef gave %q %q", name, rest)
	}
}

func TestWaitSpecDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seconds := 3.5
	future := now.Add(90 * time.Second)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		spec WaitSpec
		want float64
	}{
		{"seconds", WaitSpec{Seconds: &seconds}, 3.5},
		{"future timestamp", WaitSpec{Timestamp: &future}, 90},
		{"past timestamp", WaitSpec{Timestamp: &past}, 0},
		{"empty", WaitSpec{}, 0},
	}

	for _, tt := range tests {
		if got := tt.spec.Duration(now); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSecondsSpec(t *testing.T) {
	if _, err := secondsSpec(float64(-1)); err == nil {
		t.Error("Expected negative seconds to fail")
	}
	if _, err := secondsSpec("10"); err == nil {
		t.Error("Expected string seconds to fail")
	}
	spec, err := secondsSpec(10)
	if err != nil || *spec.Seconds != 10 {
		t.Errorf("Expected 10 seconds, got %v (%v)", spec, err)
	}
	if _, err := timestampSpec("yesterday"); err == nil {
		t.Error("Expected a malformed timestamp to fail")
	}
}

const jsonataIncrement = `{
	"QueryLanguage": "JSONata",
	"StartAt": "Inc",
	"States": {
		"Inc": {
			"Type": "Task",
			"Resource": "` + incrementARN + `",
			"Arguments": "{% $states.input.n %}",
			"Assign": {"last": "{% $states.result.Payload %}"},
			"Output": "{% {\"value\": $states.result.Payload} %}",
			"Next": "Done"
		},
		"Done": {
			"Type": "Pass",
			"Output": "{% {\"value\": $states.input.value, \"last\": $last} %}",
			"End": true
		}
	}
}`

func TestJSONata_ArgumentsOutputAssign(t *testing.T) {
	output, err := execute(t, jsonataIncrement, map[string]any{"n": 41}, nil, increment())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, map[string]any{"value": float64(42), "last": float64(42)})
}

func TestJSONata_OptionSelectsDialect(t *testing.T) {
	def := `{
		"StartAt": "P",
		"States": {"P": {"Type": "Pass", "Output": "{% $states.input.a + '!' %}", "End": true}}
	}`

	output, err := execute(t, def, map[string]any{"a": "hi"}, &Options{QueryLanguage: QueryLanguageJSONata})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if output != "hi!" {
		t.Errorf("Expected hi!, got %v", output)
	}
}

func TestJSONata_AssignUsesPreviousValues(t *testing.T) {
	output, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "Init",
		"States": {
			"Init": {"Type": "Pass", "Assign": {"a": 1, "b": 2}, "Next": "Swap"},
			"Swap": {"Type": "Pass", "Assign": {"a": "{% $b %}", "b": "{% $a %}", "states": "ignored"}, "Next": "Show"},
			"Show": {"Type": "Pass", "Output": "{% [$a, $b] %}", "End": true}
		}
	}`, nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, []any{float64(2), float64(1)})
}

func TestJSONata_ChoiceCondition(t *testing.T) {
	def := `{
		"QueryLanguage": "JSONata",
		"StartAt": "C",
		"States": {
			"C": {
				"Type": "Choice",
				"Choices": [{"Condition": "{% $states.input.n > 10 %}", "Output": "{% 'big' %}", "Next": "Done"}],
				"Default": "Done"
			},
			"Done": {"Type": "Succeed"}
		}
	}`

	output, err := execute(t, def, map[string]any{"n": 20}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if output != "big" {
		t.Errorf("Expected rule Output to apply, got %v", output)
	}

	output, err = execute(t, def, map[string]any{"n": 1}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, map[string]any{"n": float64(1)})
}

func TestJSONata_CatchOutput(t *testing.T) {
	output, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "T",
		"States": {
			"T": {
				"Type": "Task",
				"Resource": "`+incrementARN+`",
				"Catch": [{
					"ErrorEquals": ["NotANumber"],
					"Output": "{% {\"failed\": $states.errorOutput.Error, \"input\": $states.input} %}",
					"Assign": {"cause": "{% $states.errorOutput.Cause %}"},
					"Next": "Report"
				}],
				"End": true
			},
			"Report": {"Type": "Pass", "Output": "{% {\"failed\": $states.input.failed, \"input\": $states.input.input, \"cause\": $cause} %}", "End": true}
		}
	}`, "x", nil, increment())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, map[string]any{
		"failed": "NotANumber",
		"input":  "x",
		"cause":  "increment expects a number",
	})
}

func TestJSONata_MapItems(t *testing.T) {
	output, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "M",
		"States": {
			"M": {
				"Type": "Map",
				"Items": "{% $states.input.values %}",
				"ItemSelector": {"v": "{% $states.context.Map.Item.Value %}", "i": "{% $states.context.Map.Item.Index %}"},
				"ItemProcessor": {
					"StartAt": "Echo",
					"States": {"Echo": {"Type": "Pass", "Output": "{% $states.input.v * 10 + $states.input.i %}", "End": true}}
				},
				"End": true
			}
		}
	}`, map[string]any{"values": []any{1, 2}}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, []any{float64(10), float64(21)})
}

func TestJSONata_FailAndWait(t *testing.T) {
	recorder := &waits{}
	_, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "W",
		"States": {
			"W": {"Type": "Wait", "Seconds": "{% $states.input.delay %}", "Next": "F"},
			"F": {"Type": "Fail", "Error": "{% 'E.' + $states.input.code %}", "Cause": "static cause"}
		}
	}`, map[string]any{"delay": 3, "code": "X"}, &Options{Wait: recorder.wait})
	expectError(t, err, "E.X", "static cause")
	expectOutput(t, recorder.seconds, []float64{3})
}

func TestJSONata_QueryEvaluationError(t *testing.T) {
	_, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "P",
		"States": {"P": {"Type": "Pass", "Output": "{% $states.input.( %}", "End": true}}
	}`, map[string]any{}, nil)
	expectError(t, err, states.QueryEvaluationError, "")
}

func TestJSONata_MixedDialects(t *testing.T) {
	output, err := execute(t, `{
		"QueryLanguage": "JSONata",
		"StartAt": "Expr",
		"States": {
			"Expr": {"Type": "Pass", "Output": "{% {\"n\": $states.input.n + 1} %}", "Next": "Path"},
			"Path": {"Type": "Pass", "QueryLanguage": "JSONPath", "Parameters": {"m.$": "$.n"}, "End": true}
		}
	}`, map[string]any{"n": 1}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	expectOutput(t, output, map[string]any{"m": float64(2)})
}

func TestExprFlowTaskResult(t *testing.T) {
	f := newExprFlow(nil, nil)
	if got := f.TaskResult(incrementARN, float64(1)); !reflect.DeepEqual(got, map[string]any{"Payload": float64(1)}) {
		t.Errorf("Expected function results under Payload, got %v", got)
	}
	if got := f.TaskResult("arn:aws:states:::sns:publish", "x"); got != "x" {
		t.Errorf("Expected integration results unchanged, got %v", got)
	}
}

func TestDataFlowUnknownLanguage(t *testing.T) {
	disabled := false
	machine, err := Load(mustParse(t, `{
		"StartAt": "P",
		"States": {"P": {"Type": "Pass", "QueryLanguage": "XPath", "End": true}}
	}`), nil, &Options{ValidateDefinition: &disabled})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = machine.Execute(context.Background(), nil)
	expectError(t, err, states.RuntimeErrorName, "Unrecognised QueryLanguage XPath")
}
