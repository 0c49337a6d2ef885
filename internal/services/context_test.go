package services_test

import (
	"context"
	"testing"

	"transmute/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithFile(ctx, "/videos/a.mkv")
	ctx = services.WithPhase(ctx, "refine")
	ctx = services.WithRunID(ctx, "run-1")

	if v, ok := services.FileFromContext(ctx); !ok || v != "/videos/a.mkv" {
		t.Fatalf("file = %q, %v", v, ok)
	}
	if v, ok := services.PhaseFromContext(ctx); !ok || v != "refine" {
		t.Fatalf("phase = %q, %v", v, ok)
	}
	if v, ok := services.RunIDFromContext(ctx); !ok || v != "run-1" {
		t.Fatalf("run id = %q, %v", v, ok)
	}
}

func TestContextEmptyValuesIgnored(t *testing.T) {
	ctx := context.Background()
	if services.WithFile(ctx, "") != ctx {
		t.Fatal("empty file should not annotate context")
	}
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected absent phase")
	}
}
