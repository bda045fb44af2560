// Package plugin is the surface resource backends are written against.
//
// A backend is a value that reports which catalog entry it fills and
// implements the capability the matching integration calls. Backends import
// this package only, never the parent runtime package.
//
//	import "github.com/BDNK1/sfnsim/runtime/plugin"
//
// # Catalog entries
//
// Every resource implements Resource. Service is one of the Service*
// constants and ResourceName is the name a definition refers to it by: the
// function name of a Lambda ARN, the bucket of an S3 call, the last segment of
// an SNS topic ARN or SQS queue URL, or the connection name of an HTTP
// connection ARN.
//
//	type Echo struct{ Name string }
//
//	func (e *Echo) Service() string      { return plugin.ServiceLambda }
//	func (e *Echo) ResourceName() string { return e.Name }
//
//	func (e *Echo) Invoke(ctx context.Context, action string, input any) (any, error) {
//	    return input, nil
//	}
//
// # Configuration
//
// Backends loaded from a config file declare a Config struct with yaml,
// default and validate tags and pass it to InitializeConfig together with the
// raw values of their section:
//
//	type Config struct {
//	    Addr string        `yaml:"addr" default:"localhost:6379" validate:"required,hostname_port"`
//	    TTL  time.Duration `yaml:"ttl" default:"0s"`
//	}
//
// # Lifecycle
//
// Backends holding connections implement Initializer and Shutdowner. The
// catalog calls Initialize in registration order before the first execution
// and Shutdown in reverse order when the simulator stops.
//
// # Errors
//
// Errors returned by a backend become States.TaskFailed unless they are
// already named. Use NewError to raise an error a Retry or Catch block can
// match by name.
package plugin
