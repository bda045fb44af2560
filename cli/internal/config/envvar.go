package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVarSpec is one ${VAR} or ${VAR:default} reference.
type EnvVarSpec struct {
	VarName      string
	HasDefault   bool
	DefaultValue string
}

// envVarPattern matches ${VAR} and ${VAR:default} anywhere in a value.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:[^}]*)?\}`)

// ParseEnvVar parses a value that consists of a single reference. ok is false
// for anything else, including literals that merely contain one.
//
//	ParseEnvVar("${REDIS_ADDR}")                -> required REDIS_ADDR
//	ParseEnvVar("${REDIS_ADDR:localhost:6379}") -> REDIS_ADDR with a default
//	ParseEnvVar("localhost:6379")               -> not a reference
func ParseEnvVar(value string) (spec EnvVarSpec, ok bool) {
	loc := envVarPattern.FindStringSubmatchIndex(value)
	if loc == nil || loc[0] != 0 || loc[1] != len(value) {
		return EnvVarSpec{}, false
	}
	return specFromMatch(envVarPattern.FindStringSubmatch(value)), true
}

func specFromMatch(match []string) EnvVarSpec {
	spec := EnvVarSpec{VarName: match[1], HasDefault: match[2] != ""}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(match[2], ":")
	}
	return spec
}

// Resolve returns the value of the variable, its default when unset, or an
// error for an unset required variable.
func (s EnvVarSpec) Resolve(lookup func(string) (string, bool)) (string, error) {
	if value, ok := lookup(s.VarName); ok {
		return value, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("environment variable %s is not set", s.VarName)
}

// ExpandEnv replaces every reference in value.
func ExpandEnv(value string, lookup func(string) (string, bool)) (string, error) {
	var firstErr error
	expanded := envVarPattern.ReplaceAllStringFunc(value, func(ref string) string {
		resolved, err := specFromMatch(envVarPattern.FindStringSubmatch(ref)).Resolve(lookup)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return resolved
	})
	return expanded, firstErr
}

// expandNode expands references in every scalar of a YAML document. Keys are
// left alone. A scalar that was entirely one reference is re-tagged so that
// "${PORT:8080}" still decodes into an int.
func expandNode(node *yaml.Node, lookup func(string) (string, bool)) error {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			if err := expandNode(child, lookup); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 1; i < len(node.Content); i += 2 {
			if err := expandNode(node.Content[i], lookup); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if !strings.Contains(node.Value, "${") {
			return nil
		}
		_, whole := ParseEnvVar(node.Value)
		expanded, err := ExpandEnv(node.Value, lookup)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		node.Value = expanded
		if whole && node.Style == 0 {
			node.Tag = ""
		}
	}
	return nil
}

func osLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}
