package expr

import (
	"fmt"
	"math/rand"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/expr-lang/expr"
)

// Expression-dialect helpers mapped onto the intrinsic library.
var bindings = map[string]string{
	"partition":    "States.ArrayPartition",
	"range":        "States.ArrayRange",
	"hash":         "States.Hash",
	"uuid":         "States.UUID",
	"parse":        "States.StringToJson",
	"base64encode": "States.Base64Encode",
	"base64decode": "States.Base64Decode",
}

func functions(library *intrinsics.Library) []expr.Option {
	opts := make([]expr.Option, 0, len(bindings)+2)
	for name, intrinsic := range bindings {
		intrinsic := intrinsic
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			args, err := normalizeAll(params)
			if err != nil {
				return nil, err
			}
			return library.Call(intrinsic, args...)
		}))
	}

	opts = append(opts,
		expr.Function("random", random),
		expr.Function("exists", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("exists expects 1 argument, got %d", len(params))
			}
			return params[0] != nil, nil
		}),
	)
	return opts
}

// random returns a float in [0, 1). An optional seed makes it repeatable.
func random(params ...any) (any, error) {
	switch len(params) {
	case 0:
		return rand.Float64(), nil
	case 1:
		seed, ok := params[0].(int)
		if !ok {
			f, isFloat := params[0].(float64)
			if !isFloat {
				return nil, fmt.Errorf("random seed must be a number, got %T", params[0])
			}
			seed = int(f)
		}
		return rand.New(rand.NewSource(int64(seed))).Float64(), nil
	}
	return nil, fmt.Errorf("random expects at most 1 argument, got %d", len(params))
}

func normalizeAll(params []any) ([]any, error) {
	args := make([]any, len(params))
	for i, p := range params {
		normalized, err := jsonpath.Normalize(p)
		if err != nil {
			return nil, err
		}
		args[i] = normalized
	}
	return args, nil
}
