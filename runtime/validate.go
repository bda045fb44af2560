package runtime

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Validate checks a definition and returns every problem found. An empty
// result means the definition can be loaded.
func Validate(def *Definition) []string {
	if def == nil {
		return []string{"definition is empty"}
	}
	return validateDefinition(def, "")
}

func validateDefinition(def *Definition, prefix string) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, prefix+fmt.Sprintf(format, args...))
	}

	if err := validate.Struct(def); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return append(problems, prefix+err.Error())
		}
		for _, fieldErr := range validationErrors {
			add("field '%s' failed validation (rule: %s)", fieldErr.Namespace(), fieldErr.Tag())
		}
	}

	if def.StartAt != "" {
		if _, ok := def.States[def.StartAt]; !ok {
			add("StartAt state [%s] does not exist", def.StartAt)
		}
	}

	exists := func(name string) bool {
		s, ok := def.States[name]
		return ok && s != nil
	}

	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		s := def.States[name]
		if s == nil {
			continue
		}

		if s.Next != "" && !exists(s.Next) {
			add("State [%s] has Next [%s] which does not exist", name, s.Next)
		}
		for i, c := range s.Catch {
			if c.Next != "" && !exists(c.Next) {
				add("State [%s] Catch[%d] has Next [%s] which does not exist", name, i, c.Next)
			}
		}

		switch s.Type {
		case TypeChoice, TypeSucceed, TypeFail:
		default:
			if s.Next == "" && !s.End {
				add("State [%s] must have Next or End", name)
			}
			if s.Next != "" && s.End {
				add("State [%s] cannot have both Next and End", name)
			}
		}

		switch s.Type {
		case TypeTask:
			if s.Resource == "" {
				add("Task state [%s] has no Resource", name)
			}
		case TypeChoice:
			if len(s.Choices) == 0 {
				add("Choice state [%s] has no Choices", name)
			}
			for i, rule := range s.Choices {
				if rule.Next == "" {
					add("Choice state [%s] rule %d has no Next", name, i)
				} else if !exists(rule.Next) {
					add("Choice state [%s] rule %d has Next [%s] which does not exist", name, i, rule.Next)
				}
			}
			if s.Default != "" && !exists(s.Default) {
				add("Choice state [%s] has Default [%s] which does not exist", name, s.Default)
			}
		case TypeParallel:
			if len(s.Branches) == 0 {
				add("Parallel state [%s] has no Branches", name)
			}
			for i, branch := range s.Branches {
				if branch == nil {
					add("Parallel state [%s] branch %d is empty", name, i)
					continue
				}
				problems = append(problems, validateDefinition(branch, fmt.Sprintf("%sStates.%s.Branches[%d]: ", prefix, name, i))...)
			}
		case TypeMap:
			processor := s.Processor()
			if processor == nil {
				add("Map state [%s] has no ItemProcessor", name)
				continue
			}
			problems = append(problems, validateDefinition(processor, fmt.Sprintf("%sStates.%s.ItemProcessor: ", prefix, name))...)
		}
	}

	return problems
}
