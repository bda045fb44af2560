package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionExtensions lists the file patterns LoadDefinitionDir picks up.
var DefinitionExtensions = []string{"*.json", "*.asl.json", "*.yaml", "*.yml"}

// ParseDefinition decodes an ASL definition written as JSON or YAML.
func ParseDefinition(data []byte) (*Definition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("definition is empty")
	}

	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, err
		}
		trimmed = converted
	}

	var def Definition
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return nil, fmt.Errorf("error unmarshalling definition: %w", err)
	}
	return &def, nil
}

// LoadDefinitionFile reads and parses a definition file.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading definition file: %w", err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDefinitionDir parses every definition file in dir, keyed by file name
// without extension.
func LoadDefinitionDir(dir string) (map[string]*Definition, error) {
	definitions := make(map[string]*Definition)

	for _, pattern := range DefinitionExtensions {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("error reading directory: %w", err)
		}

		for _, file := range files {
			name := DefinitionName(file)
			if _, seen := definitions[name]; seen {
				continue
			}
			def, err := LoadDefinitionFile(file)
			if err != nil {
				return nil, err
			}
			definitions[name] = def
		}
	}

	return definitions, nil
}

// DefinitionName is the machine name of a definition file: its base name
// without the definition extension.
func DefinitionName(file string) string {
	base := filepath.Base(file)
	for _, ext := range []string{".asl.json", ".json", ".yaml", ".yml"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// yamlToJSON goes through a generic value so that YAML null keeps the same
// meaning as JSON null for path fields.
func yamlToJSON(data []byte) ([]byte, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("error unmarshalling YAML: %w", err)
	}

	converted, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("error converting YAML to JSON: %w", err)
	}
	return converted, nil
}
