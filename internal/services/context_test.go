package services_test

import (
	"context"
	"testing"

	"emgpipe/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBaseName(ctx, "trapezius_trial2")
	ctx = services.WithStep(ctx, "manual-cleaning")
	ctx = services.WithRequestID(ctx, "req-123")

	if base, ok := services.BaseNameFromContext(ctx); !ok || base != "trapezius_trial2" {
		t.Fatalf("unexpected base name: %v %v", base, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "manual-cleaning" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStepBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStep(ctx, "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
