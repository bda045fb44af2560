package plugin

import (
	"github.com/BDNK1/sfnsim/runtime"
	"github.com/BDNK1/sfnsim/runtime/states"
)

const (
	ServiceLambda        = runtime.ServiceLambda
	ServiceS3            = runtime.ServiceS3
	ServiceSNS           = runtime.ServiceSNS
	ServiceSQS           = runtime.ServiceSQS
	ServiceStepFunctions = runtime.ServiceStepFunctions
	ServiceHTTP          = runtime.ServiceHTTP
)

// Error is a named failure. Its Name is what Retry and Catch match.
type Error = states.Error

// NewError returns an error with the given name and cause.
func NewError(name, cause string) *Error {
	return states.NewError(name, cause)
}

// NewTaskFailed returns a States.TaskFailed error.
func NewTaskFailed(format string, args ...any) *Error {
	return states.NewTaskFailed(format, args...)
}

// InitializeConfig applies tag defaults to config, overlays raw and validates
// the result.
func InitializeConfig(config any, raw map[string]any) error {
	return runtime.InitializeConfig(config, raw)
}

// ToStringValueMap flattens values to strings, for headers and query
// parameters.
func ToStringValueMap(values map[string]any) map[string]string {
	return runtime.ToStringValueMap(values)
}

// Bucket, Topic and Queue wrap a backend into the catalog entry the S3, SNS
// and SQS integrations look up.
func Bucket(name string, objects ObjectStore) Resource {
	return &runtime.Bucket{Name: name, Objects: objects}
}

func Topic(name string, messages MessageSink) Resource {
	return &runtime.Topic{Name: name, Messages: messages}
}

func Queue(name string, messages MessageSink) Resource {
	return &runtime.Queue{Name: name, Messages: messages}
}

// DecodeInput converts a task input into T using its json tags and validates
// it. Failures are States.TaskFailed.
func DecodeInput[T any](input any, integration string) (T, error) {
	return runtime.DecodeTaskInput[T](input, integration)
}
