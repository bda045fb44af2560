package telemetry

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	fallback := slog.New(slog.DiscardHandler)

	p, err := Setup(context.Background(), Config{}, fallback)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if p.Logger != fallback {
		t.Error("Expected the fallback logger when telemetry is disabled")
	}
	if p.TracerProvider != nil || p.MeterProvider != nil {
		t.Error("Expected no providers when telemetry is disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestSetup_Enabled(t *testing.T) {
	// Exporters connect lazily, so no collector is needed to build them.
	p, err := Setup(context.Background(), Config{OTLPEndpoint: "localhost:4317", Insecure: true}, nil)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.Logger == nil {
		t.Fatalf("Expected every provider to be set, got %+v", p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing to a missing collector fails; only the bookkeeping matters here.
	_ = p.Shutdown(ctx)
	if len(p.shutdown) != 0 {
		t.Error("Expected Shutdown to clear the provider list")
	}
}
