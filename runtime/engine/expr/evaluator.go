package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	openDelimiter  = "{%"
	closeDelimiter = "%}"
)

// IsExpression reports whether s is a {% ... %} expression string.
func IsExpression(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, openDelimiter) && strings.HasSuffix(trimmed, closeDelimiter) && len(trimmed) >= 4
}

// Body strips the delimiters from an expression string.
func Body(s string) string {
	trimmed := strings.TrimSpace(s)
	return strings.TrimSpace(trimmed[len(openDelimiter) : len(trimmed)-len(closeDelimiter)])
}

// Evaluator compiles and runs expressions with expr-lang. Programs are cached by
// source text since the same definition is evaluated many times.
type Evaluator struct {
	functions []expr.Option
	programs  sync.Map
}

func NewEvaluator(library *intrinsics.Library) *Evaluator {
	if library == nil {
		library = intrinsics.New()
	}
	return &Evaluator{functions: functions(library)}
}

// Eval runs a bare expression (no delimiters) against env.
func (e *Evaluator) Eval(expression string, env map[string]any) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, states.NewQueryEvaluationError(expression, err)
	}

	scope := make(map[string]any, len(env)+1)
	for k, v := range env {
		scope[k] = v
	}
	// null as alias for nil (JSON compatibility)
	scope["null"] = nil

	out, err := expr.Run(program, scope)
	if err != nil {
		if se, ok := states.As(err); ok {
			return nil, se
		}
		return nil, states.NewQueryEvaluationError(expression, err)
	}

	normalized, err := jsonpath.Normalize(out)
	if err != nil {
		return nil, states.NewQueryEvaluationError(expression, err)
	}
	return normalized, nil
}

// Evaluate walks value and replaces every {% %} string with its result.
// Maps and arrays are evaluated recursively, other values are returned as-is.
func (e *Evaluator) Evaluate(value any, env map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !IsExpression(v) {
			return v, nil
		}
		return e.Eval(Body(v), env)
	case map[string]any:
		evaluated := make(map[string]any, len(v))
		for key, val := range v {
			out, err := e.Evaluate(val, env)
			if err != nil {
				return nil, err
			}
			evaluated[key] = out
		}
		return evaluated, nil
	case []any:
		evaluated := make([]any, len(v))
		for i, val := range v {
			out, err := e.Evaluate(val, env)
			if err != nil {
				return nil, err
			}
			evaluated[i] = out
		}
		return evaluated, nil
	default:
		return value, nil
	}
}

// EvaluateBool evaluates a condition that must produce a boolean.
func (e *Evaluator) EvaluateBool(value any, env map[string]any) (bool, error) {
	out, err := e.Evaluate(value, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, states.NewRuntimeError("Condition %v evaluated to %T, expected boolean", value, out)
	}
	return b, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	source := stripSigils(expression)
	if cached, ok := e.programs.Load(source); ok {
		return cached.(*vm.Program), nil
	}

	// NOTE: expr.Env MUST come before AllowUndefinedVariables for it to work
	opts := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	}
	opts = append(opts, e.functions...)

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	e.programs.Store(source, program)
	return program, nil
}

// stripSigils drops the leading $ of identifiers outside string literals, so
// $states.input and states.input are the same reference.
func stripSigils(expression string) string {
	var out strings.Builder
	var quote byte

	for i := 0; i < len(expression); i++ {
		ch := expression[i]
		switch {
		case quote != 0:
			if ch == '\\' && i+1 < len(expression) {
				out.WriteByte(ch)
				i++
				ch = expression[i]
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case ch == '$' && i+1 < len(expression) && isIdentStart(expression[i+1]):
			continue
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
