package runtime

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/BDNK1/sfnsim/runtime/states"
)

// Catalog service names.
const (
	ServiceLambda        = "lambda"
	ServiceS3            = "s3"
	ServiceSNS           = "sns"
	ServiceSQS           = "sqs"
	ServiceStepFunctions = "stepFunctions"
	ServiceHTTP          = "http"
)

// LambdaFunc is the body of a simulated Lambda function.
type LambdaFunc func(ctx context.Context, input any) (any, error)

// CallbackFunc answers a .waitForTaskToken integration.
type CallbackFunc func(ctx context.Context, taskInput, taskOutput any) (any, error)

// Lambda is an in-process function resource.
type Lambda struct {
	Name     string
	Function LambdaFunc
	Callback CallbackFunc
}

func (l *Lambda) Service() string      { return ServiceLambda }
func (l *Lambda) ResourceName() string { return l.Name }

func (l *Lambda) Invoke(ctx context.Context, _ string, input any) (any, error) {
	if l.Function == nil {
		return nil, states.NewTaskFailed("Lambda function [%s] has no handler", l.Name)
	}
	return l.Function(ctx, input)
}

func (l *Lambda) TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error) {
	if l.Callback == nil {
		return nil, states.NewSimulatorError("Lambda function [%s] does not support task callbacks", l.Name)
	}
	return l.Callback(ctx, taskInput, taskOutput)
}

// Bucket is an S3 bucket backed by an ObjectStore.
type Bucket struct {
	Name     string
	Objects  ObjectStore
	Callback CallbackFunc
}

// NewBucket returns a bucket holding objects in memory.
func NewBucket(name string, objects map[string]string) *Bucket {
	return &Bucket{Name: name, Objects: NewMemoryObjects(objects)}
}

func (b *Bucket) Service() string      { return ServiceS3 }
func (b *Bucket) ResourceName() string { return b.Name }

func (b *Bucket) TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error) {
	if b.Callback == nil {
		return nil, states.NewSimulatorError("Bucket [%s] does not support task callbacks", b.Name)
	}
	return b.Callback(ctx, taskInput, taskOutput)
}

// Topic is an SNS topic. Published messages go to Messages.
type Topic struct {
	Name     string
	Messages MessageSink
	Callback CallbackFunc
}

func NewTopic(name string) *Topic {
	return &Topic{Name: name, Messages: NewMemoryMessages()}
}

func (t *Topic) Service() string      { return ServiceSNS }
func (t *Topic) ResourceName() string { return t.Name }

func (t *Topic) TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error) {
	if t.Callback == nil {
		return nil, states.NewSimulatorError("Topic [%s] does not support task callbacks", t.Name)
	}
	return t.Callback(ctx, taskInput, taskOutput)
}

// Queue is an SQS queue. Sent messages go to Messages.
type Queue struct {
	Name     string
	Messages MessageSink
	Callback CallbackFunc
}

func NewQueue(name string) *Queue {
	return &Queue{Name: name, Messages: NewMemoryMessages()}
}

func (q *Queue) Service() string      { return ServiceSQS }
func (q *Queue) ResourceName() string { return q.Name }

func (q *Queue) TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error) {
	if q.Callback == nil {
		return nil, states.NewSimulatorError("Queue [%s] does not support task callbacks", q.Name)
	}
	return q.Callback(ctx, taskInput, taskOutput)
}

// StateMachineResource is a nested state machine. Either Machine or Function
// must be set.
type StateMachineResource struct {
	Name     string
	Machine  Executable
	Function LambdaFunc
	Callback CallbackFunc
}

func (s *StateMachineResource) Service() string      { return ServiceStepFunctions }
func (s *StateMachineResource) ResourceName() string { return s.Name }

func (s *StateMachineResource) Execute(ctx context.Context, input any) (any, error) {
	switch {
	case s.Machine != nil:
		return s.Machine.Execute(ctx, input)
	case s.Function != nil:
		return s.Function(ctx, input)
	}
	return nil, states.NewTaskFailed("State machine [%s] has nothing to execute", s.Name)
}

func (s *StateMachineResource) TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error) {
	if s.Callback == nil {
		return nil, states.NewSimulatorError("State machine [%s] does not support task callbacks", s.Name)
	}
	return s.Callback(ctx, taskInput, taskOutput)
}

// MemoryObjects is an ObjectStore kept in a map.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string]string
}

func NewMemoryObjects(initial map[string]string) *MemoryObjects {
	objects := make(map[string]string, len(initial))
	maps.Copy(objects, initial)
	return &MemoryObjects{objects: objects}
}

func (m *MemoryObjects) GetObject(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	return body, ok, nil
}

func (m *MemoryObjects) PutObject(_ context.Context, key, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return nil
}

// Objects returns a snapshot of the stored objects.
func (m *MemoryObjects) Objects() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.objects)
}

// MemoryMessages is a MessageSink kept in a slice.
type MemoryMessages struct {
	mu       sync.Mutex
	messages []string
}

func NewMemoryMessages() *MemoryMessages {
	return &MemoryMessages{}
}

func (m *MemoryMessages) Send(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

// Messages returns the messages received so far, oldest first.
func (m *MemoryMessages) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}
