package runtime

import "context"

// Resource is anything a Task state can reach through the catalog. Service is
// the catalog namespace (lambda, s3, sns, sqs, stepFunctions, http) and
// ResourceName the key within it.
type Resource interface {
	Service() string
	ResourceName() string
}

// Invoker is implemented by resources that take a payload and return a result.
type Invoker interface {
	Invoke(ctx context.Context, action string, input any) (any, error)
}

// TaskCallbacker is implemented by resources that can answer a
// .waitForTaskToken integration. taskInput is the effective input of the
// state, taskOutput the result of the underlying call.
type TaskCallbacker interface {
	TaskCallback(ctx context.Context, taskInput, taskOutput any) (any, error)
}

// ObjectStore backs a Bucket.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) (body string, found bool, err error)
	PutObject(ctx context.Context, key, body string) error
}

// MessageSink backs a Topic or a Queue.
type MessageSink interface {
	Send(ctx context.Context, message string) error
}

// Executable is a nested state machine started by a Task state.
type Executable interface {
	Execute(ctx context.Context, input any) (any, error)
}

// Initializer lets a resource prepare connections before the first execution.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner lets a resource release what Initialize acquired.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
