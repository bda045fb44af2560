// Package config loads sfnsim.yaml, the file describing the state machines a
// simulator serves and the resources their tasks reach.
package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BDNK1/sfnsim/cli/internal/security"
	"github.com/BDNK1/sfnsim/cli/internal/telemetry"
	"github.com/BDNK1/sfnsim/runtime"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "sfnsim.yaml"

// File is the parsed config file.
type File struct {
	Options            map[string]any    `yaml:"options"`
	StateMachines      map[string]string `yaml:"state_machines"`
	Resources          Resources         `yaml:"resources"`
	Telemetry          telemetry.Config  `yaml:"telemetry"`
	AllowAbsolutePaths bool              `yaml:"allow_absolute_paths"`

	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-"`
}

// Resources maps each catalog service to its named entries. Redis entries are
// connections that s3, sns and sqs entries refer to by name.
type Resources struct {
	Redis         map[string]map[string]any `yaml:"redis"`
	Lambda        map[string]Lambda         `yaml:"lambda"`
	S3            map[string]Bucket         `yaml:"s3"`
	SNS           map[string]Messaging      `yaml:"sns"`
	SQS           map[string]Messaging      `yaml:"sqs"`
	StepFunctions map[string]StateMachine   `yaml:"stepFunctions"`
	HTTP          map[string]map[string]any `yaml:"http"`
}

// Lambda is either served over HTTP (URL), answers with a fixed Response, or
// always fails with Error and Cause.
type Lambda struct {
	URL      string         `yaml:"url"`
	Client   map[string]any `yaml:"client"`
	Response any            `yaml:"response"`
	Error    string         `yaml:"error"`
	Cause    string         `yaml:"cause"`
}

type Bucket struct {
	Objects map[string]string `yaml:"objects"`
	Redis   string            `yaml:"redis"`
}

type Messaging struct {
	Redis string `yaml:"redis"`
}

type StateMachine struct {
	Definition string `yaml:"definition"`
}

// Load reads the config file at path. A missing file is an error; use Empty
// when no config is given.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	file, err := Parse(data, osLookup)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Dir = filepath.Dir(path)
	return file, nil
}

// Empty is the config used when no file is given. Paths resolve against the
// working directory.
func Empty() *File {
	return &File{Dir: "."}
}

// Parse decodes a config document, expanding environment references with
// lookup first.
func Parse(data []byte, lookup func(string) (string, bool)) (*File, error) {
	file := &File{Dir: "."}
	if len(bytes.TrimSpace(data)) == 0 {
		return file, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := expandNode(&doc, lookup); err != nil {
		return nil, err
	}
	if err := doc.Decode(file); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// Validate checks cross references between entries.
func (f *File) Validate() error {
	r := f.Resources
	for _, name := range sortedKeys(r.Lambda) {
		l := r.Lambda[name]
		set := 0
		for _, present := range []bool{l.URL != "", l.Response != nil, l.Error != ""} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("resources.lambda.%s: exactly one of url, response or error is required", name)
		}
	}
	for _, name := range sortedKeys(r.S3) {
		if err := f.checkRedis("s3", name, r.S3[name].Redis); err != nil {
			return err
		}
		if r.S3[name].Redis != "" && len(r.S3[name].Objects) > 0 {
			return fmt.Errorf("resources.s3.%s: objects cannot be seeded into a redis bucket", name)
		}
	}
	for _, name := range sortedKeys(r.SNS) {
		if err := f.checkRedis("sns", name, r.SNS[name].Redis); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(r.SQS) {
		if err := f.checkRedis("sqs", name, r.SQS[name].Redis); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(r.StepFunctions) {
		if r.StepFunctions[name].Definition == "" {
			return fmt.Errorf("resources.stepFunctions.%s: definition is required", name)
		}
		if _, clash := f.StateMachines[name]; clash {
			return fmt.Errorf("resources.stepFunctions.%s: also listed in state_machines", name)
		}
	}
	return nil
}

func (f *File) checkRedis(service, name, connection string) error {
	if connection == "" {
		return nil
	}
	if _, ok := f.Resources.Redis[connection]; !ok {
		return fmt.Errorf("resources.%s.%s: unknown redis connection %q", service, name, connection)
	}
	return nil
}

// Path resolves a path from the file against Dir.
func (f *File) Path(path string) (string, error) {
	return security.ResolvePath(f.Dir, path, f.AllowAbsolutePaths)
}

// RuntimeOptions decodes the options section.
func (f *File) RuntimeOptions() (*runtime.Options, error) {
	return runtime.DecodeOptions(f.Options)
}

// Definitions loads state_machines and resources.stepFunctions, keyed by
// machine name.
func (f *File) Definitions() (map[string]*runtime.Definition, error) {
	paths := make(map[string]string, len(f.StateMachines)+len(f.Resources.StepFunctions))
	maps.Copy(paths, f.StateMachines)
	for name, sm := range f.Resources.StepFunctions {
		paths[name] = sm.Definition
	}

	defs := make(map[string]*runtime.Definition, len(paths))
	for _, name := range sortedKeys(paths) {
		path, err := f.Path(paths[name])
		if err != nil {
			return nil, fmt.Errorf("state machine %s: %w", name, err)
		}
		def, err := runtime.LoadDefinitionFile(path)
		if err != nil {
			return nil, fmt.Errorf("state machine %s: %w", name, err)
		}
		defs[name] = def
	}
	return defs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
