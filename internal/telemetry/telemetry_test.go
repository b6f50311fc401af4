package telemetry_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/rahulvdm/auction-engine/internal/telemetry"
)

func TestNewNopProvider(t *testing.T) {
	p := telemetry.NewNopProvider()

	if p.TracerProvider == nil {
		t.Error("TracerProvider is nil")
	}
	if p.MeterProvider == nil {
		t.Error("MeterProvider is nil")
	}
	if p.Logger == nil {
		t.Error("Logger is nil")
	}
}

func TestNopProviderShutdown(t *testing.T) {
	p := telemetry.NewNopProvider()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestLogWithTraceNoSpan(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	got := telemetry.LogWithTrace(context.Background(), logger)
	if got != logger {
		t.Error("expected the original logger when no span is active")
	}
}

func TestLogWithTraceWithSpan(t *testing.T) {
	p := telemetry.NewNopProvider()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tracer := p.TracerProvider.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "operation")
	defer span.End()

	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Fatal("expected a valid span context")
	}

	got := telemetry.LogWithTrace(ctx, logger)
	if got == logger {
		t.Error("expected a derived logger carrying trace attributes")
	}
}

func TestNewBidMetrics(t *testing.T) {
	p := telemetry.NewNopProvider()

	m, err := telemetry.NewBidMetrics(p.MeterProvider)
	if err != nil {
		t.Fatalf("NewBidMetrics: %v", err)
	}

	// Recording must not panic on a nop meter provider.
	ctx := context.Background()
	m.RecordAccepted(ctx, 3000)
	m.RecordRejected(ctx)
	m.RecordSold(ctx)
}

func TestBidMetricsNilSafe(t *testing.T) {
	var m *telemetry.BidMetrics

	ctx := context.Background()
	m.RecordAccepted(ctx, 1000)
	m.RecordRejected(ctx)
	m.RecordSold(ctx)
}
