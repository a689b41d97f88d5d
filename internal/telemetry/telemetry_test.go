package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_exportsToWriter(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := Setup(&buf, "test")
	if err != nil {
		t.Fatal(err)
	}
	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "unit-span")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "unit-span") {
		t.Errorf("span not exported: %s", buf.String())
	}
}

func TestSetup_noWriter(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	shutdown, err := Setup(nil, "test")
	if err != nil {
		t.Fatal(err)
	}
	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "unexported")
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
