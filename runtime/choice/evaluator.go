package choice

import (
	"regexp"
	"strings"
	"time"

	"github.com/BDNK1/sfnsim/runtime/engine/expr"
	"github.com/BDNK1/sfnsim/runtime/states"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?(Z|((\+|-)\d{2}:\d{2}))$`)

// LookupFunc resolves a path for Variable and *Path operands.
type LookupFunc func(path string) (value any, found bool, err error)

// Matcher decides whether a single rule matches.
type Matcher func(rule *Rule) (bool, error)

// Result is the outcome of a Choice state. Rule is nil when Default was taken.
type Result struct {
	Next string
	Rule *Rule
}

// Run walks rules in order and returns the first match. Without a match the
// default is used, and without a default the state fails.
func Run(rules []Rule, defaultNext string, match Matcher) (Result, error) {
	for i := range rules {
		ok, err := match(&rules[i])
		if err != nil {
			return Result{}, err
		}
		if ok {
			return Result{Next: rules[i].Next, Rule: &rules[i]}, nil
		}
	}

	if defaultNext != "" {
		return Result{Next: defaultNext}, nil
	}
	return Result{}, states.NewNoChoiceMatched()
}

// PathMatcher evaluates rules written with Variable and comparator fields.
func PathMatcher(lookup LookupFunc) Matcher {
	return func(rule *Rule) (bool, error) {
		return Evaluate(rule, lookup)
	}
}

// ConditionMatcher evaluates rules that carry a Condition expression.
func ConditionMatcher(evaluator *expr.Evaluator, env map[string]any) Matcher {
	return func(rule *Rule) (bool, error) {
		if rule.Condition == nil {
			return false, states.NewRuntimeError("Choice rule does not contain a Condition")
		}
		return evaluator.EvaluateBool(rule.Condition, env)
	}
}

// Evaluate tests a single rule, recursing through Not, Or and And.
func Evaluate(rule *Rule, lookup LookupFunc) (bool, error) {
	switch {
	case rule.Not != nil:
		ok, err := Evaluate(rule.Not, lookup)
		return !ok, err
	case rule.Or != nil:
		for i := range rule.Or {
			ok, err := Evaluate(&rule.Or[i], lookup)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case rule.And != nil:
		for i := range rule.And {
			ok, err := Evaluate(&rule.And[i], lookup)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	if c, ok := rule.comparison(); ok {
		return compareRule(rule, c, lookup)
	}

	if predicate, want, ok := rule.predicate(); ok {
		value, found, err := lookup(rule.Variable)
		if err != nil {
			return false, err
		}
		return predicate(value, found) == want, nil
	}

	if rule.StringMatches != nil {
		value, found, err := lookup(rule.Variable)
		if err != nil || !found {
			return false, err
		}
		s, isString := value.(string)
		return isString && StringMatches(s, *rule.StringMatches), nil
	}

	return false, states.NewRuntimeError("Choice does not contain a data-test expression")
}

func compareRule(rule *Rule, c comparison, lookup LookupFunc) (bool, error) {
	value, found, err := lookup(rule.Variable)
	if err != nil || !found {
		return false, err
	}

	operand := c.value
	if c.byPath {
		var ok bool
		operand, ok, err = lookup(c.path)
		if err != nil || !ok {
			return false, err
		}
	}

	order, ok := compare(c.kind, value, operand)
	if !ok {
		return false, nil
	}

	switch c.op {
	case opEquals:
		return order == 0, nil
	case opLessThan:
		return order < 0, nil
	case opLessThanEquals:
		return order <= 0, nil
	case opGreaterThan:
		return order > 0, nil
	default:
		return order >= 0, nil
	}
}

// compare orders a against b. ok is false when either side is not of the
// requested type.
func compare(k kind, a, b any) (order int, ok bool) {
	switch k {
	case kindString:
		x, okA := a.(string)
		y, okB := b.(string)
		if !okA || !okB {
			return 0, false
		}
		return strings.Compare(x, y), true
	case kindNumeric:
		x, okA := toFloat(a)
		y, okB := toFloat(b)
		if !okA || !okB {
			return 0, false
		}
		return cmpFloat(x, y), true
	case kindBoolean:
		x, okA := a.(bool)
		y, okB := b.(bool)
		if !okA || !okB {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		return 1, true
	case kindTimestamp:
		x, okA := toTime(a)
		y, okB := toTime(b)
		if !okA || !okB {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// predicate returns the first Is* test set on the rule and its expected outcome.
func (r *Rule) predicate() (func(value any, found bool) bool, bool, bool) {
	switch {
	case r.IsNull != nil:
		return func(v any, found bool) bool { return found && v == nil }, *r.IsNull, true
	case r.IsPresent != nil:
		return func(_ any, found bool) bool { return found }, *r.IsPresent, true
	case r.IsNumeric != nil:
		return func(v any, _ bool) bool { _, ok := toFloat(v); return ok }, *r.IsNumeric, true
	case r.IsString != nil:
		return func(v any, _ bool) bool { _, ok := v.(string); return ok }, *r.IsString, true
	case r.IsBoolean != nil:
		return func(v any, _ bool) bool { _, ok := v.(bool); return ok }, *r.IsBoolean, true
	case r.IsTimestamp != nil:
		return IsTimestamp, *r.IsTimestamp, true
	}
	return nil, false, false
}

// IsTimestamp reports whether v is an ISO-8601 timestamp string.
func IsTimestamp(v any, _ bool) bool {
	s, ok := v.(string)
	return ok && timestampPattern.MatchString(s)
}

// StringMatches reports whether s matches pattern, where * matches any run of
// characters and \* is a literal asterisk. The match is anchored at both ends.
func StringMatches(s, pattern string) bool {
	const placeholder = "\x00"
	parts := strings.Split(strings.ReplaceAll(pattern, `\*`, placeholder), "*")
	for i := range parts {
		parts[i] = strings.ReplaceAll(parts[i], placeholder, "*")
	}

	if len(parts) == 1 {
		return s == parts[0]
	}

	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(s, first) {
		return false
	}
	rest := s[len(first):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx == -1 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}
