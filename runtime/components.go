package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/BDNK1/sfnsim/runtime/choice"
)

// State kinds.
const (
	TypePass     = "Pass"
	TypeTask     = "Task"
	TypeChoice   = "Choice"
	TypeParallel = "Parallel"
	TypeMap      = "Map"
	TypeWait     = "Wait"
	TypeSucceed  = "Succeed"
	TypeFail     = "Fail"
)

// Query languages.
const (
	QueryLanguageJSONPath = "JSONPath"
	QueryLanguageJSONata  = "JSONata"
)

// Definition is a parsed state machine, or the body of a Parallel branch or
// Map item processor.
type Definition struct {
	Comment        string            `json:"Comment,omitempty"`
	StartAt        string            `json:"StartAt" validate:"required"`
	States         map[string]*State `json:"States" validate:"required,min=1,dive,required"`
	QueryLanguage  string            `json:"QueryLanguage,omitempty" validate:"omitempty,oneof=JSONPath JSONata"`
	TimeoutSeconds int               `json:"TimeoutSeconds,omitempty"`
	Version        string            `json:"Version,omitempty"`

	// Map item processors only
	ProcessorConfig map[string]any `json:"ProcessorConfig,omitempty"`
}

type State struct {
	Type          string       `json:"Type" validate:"required,oneof=Pass Task Choice Parallel Map Wait Succeed Fail"`
	Comment       string       `json:"Comment,omitempty"`
	QueryLanguage string       `json:"QueryLanguage,omitempty" validate:"omitempty,oneof=JSONPath JSONata"`
	Next          string       `json:"Next,omitempty"`
	End           bool         `json:"End,omitempty"`
	InputPath     OptionalPath `json:"InputPath,omitzero"`
	OutputPath    OptionalPath `json:"OutputPath,omitzero"`
	ResultPath    OptionalPath `json:"ResultPath,omitzero"`

	Parameters     any            `json:"Parameters,omitempty"`
	ResultSelector any            `json:"ResultSelector,omitempty"`
	Result         any            `json:"Result,omitempty"`
	Arguments      any            `json:"Arguments,omitempty"`
	Output         any            `json:"Output,omitempty"`
	Assign         map[string]any `json:"Assign,omitempty"`

	Resource         string    `json:"Resource,omitempty"`
	TimeoutSeconds   int       `json:"TimeoutSeconds,omitempty"`
	HeartbeatSeconds int       `json:"HeartbeatSeconds,omitempty"`
	Retry            []Retrier `json:"Retry,omitempty" validate:"dive"`
	Catch            []Catcher `json:"Catch,omitempty" validate:"dive"`
	Credentials      any       `json:"Credentials,omitempty"`

	Choices []choice.Rule `json:"Choices,omitempty"`
	Default string        `json:"Default,omitempty"`

	Branches []*Definition `json:"Branches,omitempty"`

	ItemProcessor              *Definition   `json:"ItemProcessor,omitempty" validate:"-"`
	Iterator                   *Definition   `json:"Iterator,omitempty" validate:"-"`
	ItemsPath                  OptionalPath  `json:"ItemsPath,omitzero"`
	Items                      any           `json:"Items,omitempty"`
	ItemSelector               any           `json:"ItemSelector,omitempty"`
	ItemReader                 *ItemReader   `json:"ItemReader,omitempty"`
	ResultWriter               *ResultWriter `json:"ResultWriter,omitempty"`
	MaxConcurrency             int           `json:"MaxConcurrency,omitempty" validate:"gte=0"`
	ToleratedFailurePercentage *float64      `json:"ToleratedFailurePercentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	ToleratedFailureCount      *int          `json:"ToleratedFailureCount,omitempty" validate:"omitempty,gte=0"`

	Seconds       any    `json:"Seconds,omitempty"`
	SecondsPath   string `json:"SecondsPath,omitempty"`
	Timestamp     any    `json:"Timestamp,omitempty"`
	TimestampPath string `json:"TimestampPath,omitempty"`

	Error     any    `json:"Error,omitempty"`
	ErrorPath string `json:"ErrorPath,omitempty"`
	Cause     any    `json:"Cause,omitempty"`
	CausePath string `json:"CausePath,omitempty"`
}

// successor is the state to run after s completes normally. End wins over Next.
func (s *State) successor() string {
	if s.End {
		return ""
	}
	return s.Next
}

// Processor returns the Map item processor, accepting the legacy Iterator field.
func (s *State) Processor() *Definition {
	if s.ItemProcessor != nil {
		return s.ItemProcessor
	}
	return s.Iterator
}

// Retrier is one entry of a state's Retry list. Unset fields get their
// defaults when the live descriptor is built for an invocation.
type Retrier struct {
	ErrorEquals     []string `json:"ErrorEquals" validate:"required,min=1"`
	IntervalSeconds *float64 `json:"IntervalSeconds,omitempty" default:"1" validate:"omitempty,gt=0"`
	MaxAttempts     *int     `json:"MaxAttempts,omitempty" default:"3" validate:"omitempty,gte=0"`
	BackoffRate     *float64 `json:"BackoffRate,omitempty" default:"2" validate:"omitempty,gte=1"`
	MaxDelaySeconds *float64 `json:"MaxDelaySeconds,omitempty" validate:"omitempty,gt=0"`
	JitterStrategy  string   `json:"JitterStrategy,omitempty" validate:"omitempty,oneof=FULL NONE"`
}

type Catcher struct {
	ErrorEquals []string       `json:"ErrorEquals" validate:"required,min=1"`
	Next        string         `json:"Next" validate:"required"`
	ResultPath  OptionalPath   `json:"ResultPath,omitzero"`
	Output      any            `json:"Output,omitempty"`
	Assign      map[string]any `json:"Assign,omitempty"`
}

// ItemReader reads Map items from an object in a bucket.
type ItemReader struct {
	Resource     string         `json:"Resource" validate:"required,arn"`
	Parameters   map[string]any `json:"Parameters,omitempty"`
	Arguments    map[string]any `json:"Arguments,omitempty"`
	ReaderConfig map[string]any `json:"ReaderConfig,omitempty"`
}

// ResultWriter stores Map results in a bucket instead of returning them.
type ResultWriter struct {
	Resource   string         `json:"Resource" validate:"required,arn"`
	Parameters map[string]any `json:"Parameters,omitempty"`
	Arguments  map[string]any `json:"Arguments,omitempty"`
}

// OptionalPath distinguishes an omitted path field, an explicit JSON null and
// a path string.
type OptionalPath struct {
	Set  bool
	Null bool
	Path string
}

// Path returns a set OptionalPath holding p.
func Path(p string) OptionalPath {
	return OptionalPath{Set: true, Path: p}
}

// NullPath returns an OptionalPath that was explicitly set to null.
func NullPath() OptionalPath {
	return OptionalPath{Set: true, Null: true}
}

// IsZero reports whether the field was omitted.
func (p OptionalPath) IsZero() bool {
	return !p.Set
}

func (p *OptionalPath) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = NullPath()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("path must be a string or null: %w", err)
	}
	*p = Path(s)
	return nil
}

func (p OptionalPath) MarshalJSON() ([]byte, error) {
	if p.Null || !p.Set {
		return []byte("null"), nil
	}
	return json.Marshal(p.Path)
}

func (p OptionalPath) String() string {
	switch {
	case !p.Set:
		return "<unset>"
	case p.Null:
		return "null"
	}
	return p.Path
}
