package plugin

import "github.com/BDNK1/sfnsim/runtime"

// Resource is a catalog entry. See the package documentation for how
// ResourceName is matched.
type Resource = runtime.Resource

// Invoker is called by Lambda function ARNs, lambda:invoke and http:invoke.
// action is "invoke" for Lambda and the HTTP method for http:invoke.
type Invoker = runtime.Invoker

// TaskCallbacker answers the .waitForTaskToken variant of an integration. It
// receives the effective task input, which carries the task token, and the
// result of the underlying call.
type TaskCallbacker = runtime.TaskCallbacker

// ObjectStore holds the objects of an S3 bucket.
type ObjectStore = runtime.ObjectStore

// MessageSink receives SNS and SQS messages.
type MessageSink = runtime.MessageSink

// Executable is a nested state machine.
type Executable = runtime.Executable

// Initializer is called once before the first execution. An error aborts
// startup.
type Initializer = runtime.Initializer

// Shutdowner is called when the simulator stops, in reverse registration order.
type Shutdowner = runtime.Shutdowner
