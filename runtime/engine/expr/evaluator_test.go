package expr

import (
	"reflect"
	"testing"

	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
)

func testEnv() map[string]any {
	return map[string]any{
		"states": map[string]any{
			"input": map[string]any{
				"x":     1.0,
				"name":  "Hello!",
				"items": []any{1.0, 2.0, 3.0},
			},
		},
		"counter": 5.0,
	}
}

func TestIsExpression(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"{% states.input %}", true},
		{"  {% 1 + 1 %}  ", true},
		{"{%%}", true},
		{"plain", false},
		{"{% unterminated", false},
		{"$.path", false},
	}
	for _, tt := range tests {
		if got := IsExpression(tt.in); got != tt.want {
			t.Errorf("IsExpression(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{name: "plain string", value: "no expression", expected: "no expression"},
		{name: "number passthrough", value: 3.0, expected: 3.0},
		{name: "member access", value: "{% states.input.name %}", expected: "Hello!"},
		{name: "dollar prefix", value: "{% $states.input.x + 1 %}", expected: 2.0},
		{name: "variable", value: "{% $counter * 2 %}", expected: 10.0},
		{name: "dollar inside string literal", value: `{% "$counter" %}`, expected: "$counter"},
		{name: "null alias", value: "{% null %}", expected: nil},
		{name: "undefined variable", value: "{% missing %}", expected: nil},
		{
			name:     "nested map",
			value:    map[string]any{"a": "{% states.input.x %}", "b": []any{"{% 'lit' %}", 2.0}},
			expected: map[string]any{"a": 1.0, "b": []any{"lit", 2.0}},
		},
		{name: "partition", value: "{% $partition(states.input.items, 2) %}", expected: []any{[]any{1.0, 2.0}, []any{3.0}}},
		{name: "range", value: "{% $range(1, 3, 1) %}", expected: []any{1.0, 2.0, 3.0}},
		{name: "parse", value: `{% $parse('{"k": true}') %}`, expected: map[string]any{"k": true}},
		{name: "base64", value: "{% $base64decode($base64encode('hi')) %}", expected: "hi"},
		{name: "hash", value: "{% $hash('hello', 'MD5') %}", expected: "5d41402abc4b2a76b9719d911017c592"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.value, testEnv())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %#v, want %#v", got, tt.expected)
			}
		})
	}
}

func TestEvaluateUUID(t *testing.T) {
	e := NewEvaluator(intrinsics.New(intrinsics.WithUUID(func() string { return "uuid-1" })))

	got, err := e.Evaluate("{% $uuid() %}", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "uuid-1" {
		t.Errorf("got %v, want uuid-1", got)
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEvaluator(nil)

	_, err := e.Evaluate("{% states.input. %}", testEnv())
	if got := states.Name(err, ""); got != states.QueryEvaluationError {
		t.Errorf("syntax error: got %q, want %q (%v)", got, states.QueryEvaluationError, err)
	}

	_, err = e.Evaluate("{% $hash('a', 'CRC32') %}", testEnv())
	if got := states.Name(err, ""); got != states.IntrinsicFailure {
		t.Errorf("intrinsic failure: got %q, want %q (%v)", got, states.IntrinsicFailure, err)
	}
}

func TestEvaluateBool(t *testing.T) {
	e := NewEvaluator(nil)

	ok, err := e.EvaluateBool("{% states.input.name == 'Hello!' %}", testEnv())
	if err != nil || !ok {
		t.Errorf("EvaluateBool = %v, %v", ok, err)
	}

	if _, err := e.EvaluateBool("{% states.input.x %}", testEnv()); err == nil {
		t.Error("expected an error for a non-boolean condition")
	}
}

func TestProgramCache(t *testing.T) {
	e := NewEvaluator(nil)

	for i := 0; i < 3; i++ {
		if _, err := e.Eval("counter + 1", testEnv()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count := 0
	e.programs.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("expected one cached program, got %d", count)
	}
}
