package intrinsics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
)

const prefix = "States."

// IsCall reports whether s is an intrinsic function invocation.
func IsCall(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), prefix)
}

// call is a parsed intrinsic invocation with its raw argument tokens.
type call struct {
	name string
	args []string
}

func parseCall(s string) (call, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open == -1 || !strings.HasSuffix(s, ")") {
		return call{}, fmt.Errorf("malformed intrinsic function [%s]", s)
	}

	c := call{name: strings.TrimSpace(s[:open])}
	args, err := splitArgs(s[open+1 : len(s)-1])
	if err != nil {
		return call{}, fmt.Errorf("%s: %w", c.name, err)
	}
	c.args = args
	return c, nil
}

// splitArgs splits on commas that are outside quoted strings and nested calls.
// \' inside a quoted string is an escaped quote.
func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var (
		args    []string
		current strings.Builder
		inQuote bool
		depth   int
	)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && i+1 < len(s):
			current.WriteByte(ch)
			current.WriteByte(s[i+1])
			i++
			continue
		case ch == '\'':
			inQuote = !inQuote
		case !inQuote && ch == '(':
			depth++
		case !inQuote && ch == ')':
			depth--
		case !inQuote && depth == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated string literal in [%s]", s)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in [%s]", s)
	}
	return append(args, strings.TrimSpace(current.String())), nil
}

// resolveArg turns a raw token into a value: a path lookup, a nested call,
// a quoted string or a JSON literal. Bare words are kept as strings.
func (l *Library) resolveArg(scope Scope, token string) (any, error) {
	switch {
	case token == "":
		return nil, fmt.Errorf("empty argument")
	case strings.HasPrefix(token, "$") && scope.Lookup != nil:
		v, found, err := scope.Lookup(token)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", jsonpath.ErrNotFound, token)
		}
		return v, nil
	case strings.HasPrefix(token, "$$"):
		v, err := jsonpath.Get(scope.Context, token[1:])
		if err != nil {
			return nil, err
		}
		return v, nil
	case strings.HasPrefix(token, "$"):
		v, err := jsonpath.Get(scope.Input, token)
		if err != nil {
			return nil, err
		}
		return v, nil
	case IsCall(token):
		return l.apply(scope, token)
	case strings.HasPrefix(token, "'"):
		if len(token) < 2 || !strings.HasSuffix(token, "'") {
			return nil, fmt.Errorf("malformed string literal %s", token)
		}
		return unescape(token[1 : len(token)-1]), nil
	case token == "true":
		return true, nil
	case token == "false":
		return false, nil
	case token == "null":
		return nil, nil
	}

	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	return token, nil
}

func unescape(s string) string {
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(s)
}
