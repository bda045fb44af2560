package plugin

import (
	"context"
	"testing"

	"github.com/BDNK1/sfnsim/runtime"
)

func TestExecutionFrom(t *testing.T) {
	exec := runtime.NewExecution(context.Background(), "id-1", "run", "machine", runtime.NewContainer())

	got, ok := ExecutionFrom(exec)
	if !ok || got.ID != "id-1" {
		t.Errorf("Expected execution id-1, got %v (%v)", got, ok)
	}
	if _, ok := ExecutionFrom(context.Background()); ok {
		t.Error("Expected a plain context to carry no execution")
	}
}

func TestCatalogWrappers(t *testing.T) {
	objects := runtime.NewMemoryObjects(nil)
	messages := runtime.NewMemoryMessages()

	tests := []struct {
		resource Resource
		service  string
	}{
		{Bucket("docs", objects), ServiceS3},
		{Topic("alerts", messages), ServiceSNS},
		{Queue("jobs", messages), ServiceSQS},
	}

	container := runtime.NewContainer()
	for _, tt := range tests {
		if tt.resource.Service() != tt.service {
			t.Errorf("Expected service %s, got %s", tt.service, tt.resource.Service())
		}
		if err := container.Register(tt.resource); err != nil {
			t.Errorf("Register failed: %v", err)
		}
	}
}

func TestNewError(t *testing.T) {
	err := NewError("Payment.Declined", "card expired")
	if err.Name != "Payment.Declined" || err.Cause != "card expired" {
		t.Errorf("Unexpected error %+v", err)
	}
	if NewTaskFailed("x %d", 1).Cause != "x 1" {
		t.Error("Expected formatted cause")
	}
}
