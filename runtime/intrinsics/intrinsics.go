package intrinsics

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"strings"

	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/google/uuid"
)

// Func implements one intrinsic. Arguments are already resolved.
type Func func(l *Library, args []any) (any, error)

// Library applies States.* intrinsic functions.
type Library struct {
	functions map[string]Func
	newUUID   func() string
}

type Option func(*Library)

// WithUUID replaces the generator used by States.UUID.
func WithUUID(fn func() string) Option {
	return func(l *Library) {
		l.newUUID = fn
	}
}

// WithFunction registers or overrides an intrinsic by its full name, e.g. "States.Format".
func WithFunction(name string, fn Func) Option {
	return func(l *Library) {
		l.functions[name] = fn
	}
}

func New(opts ...Option) *Library {
	l := &Library{
		functions: map[string]Func{
			"States.Format":         format,
			"States.StringToJson":   stringToJSON,
			"States.JsonToString":   jsonToString,
			"States.Array":          array,
			"States.ArrayPartition": arrayPartition,
			"States.ArrayContains":  arrayContains,
			"States.ArrayRange":     arrayRange,
			"States.ArrayGetItem":   arrayGetItem,
			"States.ArrayLength":    arrayLength,
			"States.ArrayUnique":    arrayUnique,
			"States.Base64Encode":   base64Encode,
			"States.Base64Decode":   base64Decode,
			"States.Hash":           hashOf,
			"States.JsonMerge":      jsonMerge,
			"States.MathRandom":     mathRandom,
			"States.MathAdd":        mathAdd,
			"States.StringSplit":    stringSplit,
			"States.UUID":           newUUID,
		},
		newUUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var defaultLibrary = New()

// Apply evaluates an intrinsic call against input with the default library.
func Apply(input any, call string) (any, error) {
	return defaultLibrary.Apply(input, call)
}

// Scope is what path arguments resolve against: $ paths read Input and $$
// paths read Context.
type Scope struct {
	Input   any
	Context any
	// Lookup resolves $-prefixed arguments when set, so callers can expose
	// more than Input and Context (assigned variables, for one).
	Lookup func(path string) (value any, found bool, err error)
}

// Apply evaluates an intrinsic call against input. Failures are reported as
// States.IntrinsicFailure unless the function raised a named error itself.
func (l *Library) Apply(input any, call string) (any, error) {
	return l.ApplyScope(Scope{Input: input}, call)
}

// ApplyScope is Apply with the context object available to $$ arguments.
func (l *Library) ApplyScope(scope Scope, call string) (any, error) {
	out, err := l.apply(scope, call)
	if err == nil {
		return out, nil
	}
	if _, ok := states.As(err); ok {
		return nil, err
	}
	return nil, states.NewIntrinsicFailure(err.Error())
}

func (l *Library) apply(scope Scope, raw string) (any, error) {
	c, err := parseCall(raw)
	if err != nil {
		return nil, err
	}

	fn, ok := l.functions[c.name]
	if !ok {
		return nil, states.NewIntrinsicFailure(fmt.Sprintf("Unrecognised intrinsic function [%s]", raw))
	}

	args := make([]any, 0, len(c.args))
	for _, token := range c.args {
		v, err := l.resolveArg(scope, token)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		args = append(args, v)
	}

	out, err := fn(l, args)
	if err != nil {
		if _, named := states.As(err); named {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return out, nil
}

func expectArgs(args []any, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("expected %d arguments, got %d", min, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%v is not an integer", v)
}

func toArray(v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%v is not an array", v)
	}
	return arr, nil
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "null", nil
	}
	return marshal(v)
}

func format(_ *Library, args []any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("expected a format string")
	}
	template, ok := args[0].(string)
	if !ok {
		return nil, errors.New("format template must be a string")
	}

	values := args[1:]
	var out strings.Builder
	for i := 0; i < len(template); i++ {
		switch {
		case template[i] == '\\' && i+1 < len(template) && strings.ContainsRune(`{}\`, rune(template[i+1])):
			out.WriteByte(template[i+1])
			i++
		case template[i] == '{' && i+1 < len(template) && template[i+1] == '}':
			if len(values) == 0 {
				return nil, errors.New("not enough arguments for format template")
			}
			s, err := stringify(values[0])
			if err != nil {
				return nil, err
			}
			out.WriteString(s)
			values = values[1:]
			i++
		default:
			out.WriteByte(template[i])
		}
	}
	if len(values) > 0 {
		return nil, errors.New("too many arguments for format template")
	}
	return out.String(), nil
}

func stringToJSON(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errors.New("argument must be a string")
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return out, nil
}

func jsonToString(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	return marshal(args[0])
}

func array(_ *Library, args []any) (any, error) {
	out := make([]any, len(args))
	copy(out, args)
	return out, nil
}

func arrayPartition(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, err
	}
	size, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}

	chunks := make([]any, 0, (len(arr)+size-1)/size)
	for i := 0; i < len(arr); i += size {
		end := min(i+size, len(arr))
		chunk := make([]any, end-i)
		copy(chunk, arr[i:end])
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func arrayContains(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range arr {
		if reflect.DeepEqual(v, args[1]) {
			return true, nil
		}
	}
	return false, nil
}

const maxRangeItems = 1000

func arrayRange(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 3, 3); err != nil {
		return nil, err
	}
	var bounds [3]int
	for i, a := range args {
		n, err := toInt(a)
		if err != nil {
			return nil, err
		}
		bounds[i] = n
	}
	start, end, step := bounds[0], bounds[1], bounds[2]
	if step == 0 {
		return nil, errors.New("step must not be zero")
	}

	out := []any{}
	for n := start; (step > 0 && n <= end) || (step < 0 && n >= end); n += step {
		if len(out) == maxRangeItems {
			return nil, fmt.Errorf("range exceeds %d items", maxRangeItems)
		}
		out = append(out, float64(n))
	}
	return out, nil
}

func arrayGetItem(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, err
	}
	index, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(arr) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return arr[index], nil
}

func arrayLength(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, err
	}
	return float64(len(arr)), nil
}

func arrayUnique(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	arr, err := toArray(args[0])
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(arr))
	for _, v := range arr {
		seen := false
		for _, u := range out {
			if reflect.DeepEqual(u, v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out, nil
}

func base64Encode(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	s, err := stringify(args[0])
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func base64Decode(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 1, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errors.New("argument must be a string")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return string(decoded), nil
}

func hashOf(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	data, err := stringify(args[0])
	if err != nil {
		return nil, err
	}
	algorithm, _ := args[1].(string)

	var h hash.Hash
	switch algorithm {
	case "MD5":
		h = md5.New()
	case "SHA-1":
		h = sha1.New()
	case "SHA-256":
		h = sha256.New()
	case "SHA-384":
		return nil, states.NewSimulatorError("States.Hash with SHA-384 not implemented")
	case "SHA-512", "SHA512":
		h = sha512.New()
	default:
		return nil, states.NewIntrinsicFailure(fmt.Sprintf("States.Hash with %v not supported", args[1]))
	}

	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func jsonMerge(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 3); err != nil {
		return nil, err
	}
	if len(args) == 3 && args[2] != false && args[2] != "false" {
		return nil, states.NewIntrinsicFailure("States.JsonMerge only supports shallow merging")
	}

	a, okA := args[0].(map[string]any)
	b, okB := args[1].(map[string]any)
	if !okA || !okB {
		return nil, errors.New("arguments must be objects")
	}

	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out, nil
}

// mathRandom returns an integer in [start, end). A seed makes the result repeatable.
func mathRandom(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 3); err != nil {
		return nil, err
	}
	start, err := toInt(args[0])
	if err != nil {
		return nil, err
	}
	end, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, errors.New("end must be greater than start")
	}

	if len(args) == 3 && args[2] != nil {
		seed, err := toInt(args[2])
		if err != nil {
			return nil, err
		}
		r := rand.New(rand.NewSource(int64(seed)))
		return float64(start + r.Intn(end-start)), nil
	}
	return float64(start + rand.Intn(end-start)), nil
}

func mathAdd(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	a, err := toInt(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toInt(args[1])
	if err != nil {
		return nil, err
	}
	return float64(a + b), nil
}

func stringSplit(_ *Library, args []any) (any, error) {
	if err := expectArgs(args, 2, 2); err != nil {
		return nil, err
	}
	s, okS := args[0].(string)
	sep, okSep := args[1].(string)
	if !okS || !okSep {
		return nil, errors.New("arguments must be strings")
	}

	parts := strings.Split(s, sep)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func newUUID(l *Library, args []any) (any, error) {
	if err := expectArgs(args, 0, 0); err != nil {
		return nil, err
	}
	return l.newUUID(), nil
}

// Call invokes an intrinsic by name with already resolved arguments.
func (l *Library) Call(name string, args ...any) (any, error) {
	fn, ok := l.functions[name]
	if !ok {
		return nil, states.NewIntrinsicFailure(fmt.Sprintf("Unrecognised intrinsic function [%s]", name))
	}
	out, err := fn(l, args)
	if err != nil {
		if _, named := states.As(err); named {
			return nil, err
		}
		return nil, states.NewIntrinsicFailure(fmt.Sprintf("%s: %v", name, err))
	}
	return out, nil
}
