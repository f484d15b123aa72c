package services_test

import (
	"context"
	"testing"

	"versescope/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithGeneration(ctx, 42)
	ctx = services.WithPhase(ctx, "analyzing")
	ctx = services.WithRequestID(ctx, "req-123")

	if gen, ok := services.GenerationFromContext(ctx); !ok || gen != 42 {
		t.Fatalf("unexpected generation: %v %v", gen, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "analyzing" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestPhaseBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhase(ctx, "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected no phase value")
	}
	if _, ok := services.GenerationFromContext(ctx); ok {
		t.Fatal("expected no generation value")
	}
}
