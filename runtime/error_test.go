package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/BDNK1/sfnsim/runtime/states"
)

func TestAsStateError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantName  string
		wantCause string
	}{
		{"named error passes through", states.NewTaskFailed("boom"), states.TaskFailed, "boom"},
		{"wrapped named error", fmt.Errorf("outer: %w", states.NewFailError("Custom", "why")), "Custom", "why"},
		{"plain error", errors.New("disk full"), states.Runtime, "disk full"},
		{"deadline", context.DeadlineExceeded, states.Timeout, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := asStateError(tt.err)
			if se.Name != tt.wantName {
				t.Errorf("Expected name %s, got %s", tt.wantName, se.Name)
			}
			if tt.wantCause != "" && se.Cause != tt.wantCause {
				t.Errorf("Expected cause %q, got %q", tt.wantCause, se.Cause)
			}
		})
	}
}

func TestAsStateError_KeepsUnderlyingError(t *testing.T) {
	base := errors.New("connection refused")
	se := asStateError(base)
	if !errors.Is(se, base) {
		t.Error("Expected errors.Is to find the underlying error")
	}
}

func TestResourceError(t *testing.T) {
	named := states.NewError("Custom.Error", "from lambda")
	if got := resourceError(named); got != named {
		t.Errorf("Expected named error to pass through, got %v", got)
	}

	err := resourceError(errors.New("timeout talking to backend"))
	se, ok := states.As(err)
	if !ok {
		t.Fatalf("Expected states error, got %T", err)
	}
	if se.Name != states.TaskFailed {
		t.Errorf("Expected %s, got %s", states.TaskFailed, se.Name)
	}
	if se.Cause != "timeout talking to backend" {
		t.Errorf("Expected cause to be the error text, got %q", se.Cause)
	}
}

func TestExecutionError(t *testing.T) {
	inner := states.NewFailError("OrderRejected", "out of stock")
	err := &ExecutionError{ExecutionID: "abc", Err: inner}

	if err.Error() != inner.Error() {
		t.Errorf("Expected message %q, got %q", inner.Error(), err.Error())
	}

	var target *states.Error
	if !errors.As(err, &target) {
		t.Fatal("errors.As should find the states error")
	}
	if target.Name != "OrderRejected" {
		t.Errorf("Expected OrderRejected, got %s", target.Name)
	}

	m := err.ToMap()
	if m["Error"] != "OrderRejected" || m["Cause"] != "out of stock" {
		t.Errorf("Unexpected error output: %v", m)
	}
}
