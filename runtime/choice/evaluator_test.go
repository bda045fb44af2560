package choice

import (
	"encoding/json"
	"testing"

	"github.com/BDNK1/sfnsim/runtime/engine/expr"
	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/states"
)

func rules(t *testing.T, raw string) []Rule {
	t.Helper()
	var out []Rule
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("invalid rules: %v", err)
	}
	return out
}

// documentLookup resolves paths against a plain JSON document.
func documentLookup(doc any) LookupFunc {
	return func(p string) (any, bool, error) {
		return jsonpath.Lookup(doc, p)
	}
}

func TestRun(t *testing.T) {
	choices := rules(t, `[{"Variable": "$.someString", "StringEquals": "Hello!", "Next": "MatchedStep"}]`)

	tests := []struct {
		name        string
		input       map[string]any
		defaultNext string
		want        string
		wantErr     string
	}{
		{name: "matched", input: map[string]any{"someString": "Hello!"}, defaultNext: "DefaultStep", want: "MatchedStep"},
		{name: "default", input: map[string]any{"someString": "Goodbye!"}, defaultNext: "DefaultStep", want: "DefaultStep"},
		{name: "no default", input: map[string]any{"someString": "Goodbye!"}, wantErr: states.NoChoiceMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(choices, tt.defaultNext, PathMatcher(documentLookup(tt.input)))
			if tt.wantErr != "" {
				if got := states.Name(err, ""); got != tt.wantErr {
					t.Fatalf("got error %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Next != tt.want {
				t.Errorf("got %q, want %q", result.Next, tt.want)
			}
		})
	}
}

func TestRunFirstMatchWins(t *testing.T) {
	choices := rules(t, `[
		{"Variable": "$.n", "NumericGreaterThan": 1, "Next": "First"},
		{"Variable": "$.n", "NumericGreaterThan": 0, "Next": "Second"}
	]`)

	result, err := Run(choices, "", PathMatcher(documentLookup(map[string]any{"n": 5.0})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Next != "First" || result.Rule != &choices[0] {
		t.Errorf("got %+v, want the first rule", result)
	}
}

func TestEvaluate(t *testing.T) {
	input := map[string]any{
		"str":      "Hello!",
		"other":    "Hello!",
		"num":      10.0,
		"limit":    20.0,
		"flag":     false,
		"nothing":  nil,
		"ts":       "2024-01-02T10:00:00Z",
		"later":    "2024-01-02T12:00:00+01:00",
		"fileName": "log-2024.txt",
	}

	tests := []struct {
		name string
		rule string
		want bool
	}{
		{"string equals", `{"Variable": "$.str", "StringEquals": "Hello!"}`, true},
		{"string equals path", `{"Variable": "$.str", "StringEqualsPath": "$.other"}`, true},
		{"numeric equals zero operand", `{"Variable": "$.num", "NumericEquals": 0}`, false},
		{"boolean equals false", `{"Variable": "$.flag", "BooleanEquals": false}`, true},
		{"type mismatch", `{"Variable": "$.str", "NumericEquals": 10}`, false},
		{"missing variable", `{"Variable": "$.missing", "StringEquals": "x"}`, false},
		{"numeric less than path", `{"Variable": "$.num", "NumericLessThanPath": "$.limit"}`, true},
		{"numeric less than equals", `{"Variable": "$.num", "NumericLessThanEquals": 10}`, true},
		{"numeric greater than", `{"Variable": "$.num", "NumericGreaterThan": 10}`, false},
		{"numeric greater than equals", `{"Variable": "$.num", "NumericGreaterThanEquals": 10}`, true},
		{"string less than", `{"Variable": "$.str", "StringLessThan": "Z"}`, true},
		{"timestamp greater than path", `{"Variable": "$.later", "TimestampGreaterThanPath": "$.ts"}`, true},
		{"timestamp equals other zone", `{"Variable": "$.ts", "TimestampEquals": "2024-01-02T11:00:00+01:00"}`, true},
		{"is null", `{"Variable": "$.nothing", "IsNull": true}`, true},
		{"is present", `{"Variable": "$.flag", "IsPresent": true}`, true},
		{"is not present", `{"Variable": "$.missing", "IsPresent": false}`, true},
		{"is numeric", `{"Variable": "$.num", "IsNumeric": true}`, true},
		{"is string", `{"Variable": "$.num", "IsString": true}`, false},
		{"is boolean", `{"Variable": "$.flag", "IsBoolean": true}`, true},
		{"is timestamp", `{"Variable": "$.ts", "IsTimestamp": true}`, true},
		{"is not timestamp", `{"Variable": "$.str", "IsTimestamp": false}`, true},
		{"string matches", `{"Variable": "$.fileName", "StringMatches": "log-*.txt"}`, true},
		{"not", `{"Not": {"Variable": "$.str", "StringEquals": "Bye"}}`, true},
		{"or", `{"Or": [{"Variable": "$.num", "NumericEquals": 1}, {"Variable": "$.num", "NumericEquals": 10}]}`, true},
		{"and", `{"And": [{"Variable": "$.num", "NumericEquals": 10}, {"Variable": "$.flag", "BooleanEquals": true}]}`, false},
		{"first field wins", `{"Variable": "$.str", "StringEquals": "Hello!", "NumericEquals": 3}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rule Rule
			if err := json.Unmarshal([]byte(tt.rule), &rule); err != nil {
				t.Fatalf("invalid rule: %v", err)
			}
			got, err := Evaluate(&rule, documentLookup(input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateWithoutTest(t *testing.T) {
	_, err := Evaluate(&Rule{Variable: "$.x", Next: "A"}, documentLookup(map[string]any{}))
	se, ok := states.As(err)
	if !ok || se.Name != states.RuntimeErrorName {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if se.Cause != "Choice does not contain a data-test expression" {
		t.Errorf("unexpected cause %q", se.Cause)
	}
}

func TestStringMatches(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"log-2024.txt", "log-*.txt", true},
		{"log-2024.txt.bak", "log-*.txt", false},
		{"xlog-2024.txt", "log-*.txt", false},
		{"abc", "*", true},
		{"a*c", `a\*c`, true},
		{"abc", `a\*c`, false},
		{"ab", "a*b*b", false},
		{"abab", "a*b*b", true},
		{"exact", "exact", true},
	}

	for _, tt := range tests {
		if got := StringMatches(tt.s, tt.pattern); got != tt.want {
			t.Errorf("StringMatches(%q, %q) = %v, want %v", tt.s, tt.pattern, got, tt.want)
		}
	}
}

func TestConditionMatcher(t *testing.T) {
	choices := rules(t, `[{"Condition": "{% states.input.v == 'Hello!' %}", "Next": "A"}]`)
	evaluator := expr.NewEvaluator(nil)

	env := func(v string) map[string]any {
		return map[string]any{"states": map[string]any{"input": map[string]any{"v": v}}}
	}

	result, err := Run(choices, "B", ConditionMatcher(evaluator, env("Hello!")))
	if err != nil || result.Next != "A" {
		t.Errorf("got %+v, %v, want A", result, err)
	}

	result, err = Run(choices, "B", ConditionMatcher(evaluator, env("Bye")))
	if err != nil || result.Next != "B" {
		t.Errorf("got %+v, %v, want B", result, err)
	}
}
