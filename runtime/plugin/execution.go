package plugin

import (
	"context"

	"github.com/BDNK1/sfnsim/runtime"
)

// Execution is the line of execution a resource is called from. Resources
// receive it as their context.Context; ExecutionFrom recovers it when they
// need the execution ID or the context object.
//
//	func (f *Audit) Invoke(ctx context.Context, _ string, input any) (any, error) {
//	    if exec, ok := plugin.ExecutionFrom(ctx); ok {
//	        f.log.Info("called", "execution", exec.ID, "state", exec.Vars.Context.State.Name)
//	    }
//	    return input, nil
//	}
type Execution = runtime.Execution

// ExecutionFrom returns the Execution behind ctx, if ctx is one.
func ExecutionFrom(ctx context.Context) (*Execution, bool) {
	exec, ok := ctx.(*Execution)
	return exec, ok
}
