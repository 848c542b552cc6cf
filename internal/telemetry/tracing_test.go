package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/hyperjump/ragapi/internal/config"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, config.TelemetryConfig{ServiceName: "test"}, "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Enabled() {
		t.Error("tracing should be disabled without an endpoint")
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	_, span := tp.Tracer().Start(ctx, "noop")
	span.End()
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// The gRPC exporter connects lazily, so no collector is needed.
	tp, err := InitTracing(ctx, config.TelemetryConfig{
		OTLPEndpoint: "127.0.0.1:4317",
		ServiceName:  "test",
		Environment:  "test",
		SampleRate:   0.5,
	}, "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tp.Enabled() {
		t.Error("tracing should be enabled with an endpoint")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = tp.Shutdown(shutdownCtx)
}

func TestNewResource(t *testing.T) {
	res, err := newResource(config.TelemetryConfig{ServiceName: "ragapi-test", Environment: "staging"}, "1.2.3")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if got, want := res.SchemaURL(), resource.Default().SchemaURL(); got != want {
		t.Errorf("schema URL = %q, want SDK default %q", got, want)
	}
	want := map[string]string{
		"service.name":           "ragapi-test",
		"service.version":        "1.2.3",
		"deployment.environment": "staging",
	}
	attrs := make(map[string]string)
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("%s = %q, want %q", k, attrs[k], v)
		}
	}
	if attrs["telemetry.sdk.name"] == "" {
		t.Error("SDK default attributes were dropped")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Sampler(tt.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:") || !strings.Contains(desc, tt.want) {
			t.Errorf("Sampler(%v) = %s, want root %s", tt.rate, desc, tt.want)
		}
	}
}
