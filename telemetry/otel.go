// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// OTelProvider wraps the OpenTelemetry SDK's tracer and meter providers,
// exporting metrics through Prometheus. Grounded on the teacher's
// internal/tracing.OTelProvider.
type OTelProvider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	turns      *Counter
	faults     *Counter
	turnMillis *Histogram
}

// NewOTelProvider builds an OTelProvider for serviceName/version, setting
// the OTel global tracer provider as a side effect (so libraries calling
// otel.Tracer directly also report through it).
func NewOTelProvider(serviceName, version string) (*OTelProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	meter := mp.Meter("github.com/nexusflow/engine")
	turns, err := newCounter(meter, "engine_workflow_turns_total", "workflow turns run")
	if err != nil {
		return nil, err
	}
	faults, err := newCounter(meter, "engine_activity_faults_total", "activity faults recorded")
	if err != nil {
		return nil, err
	}
	turnMillis, err := newHistogram(meter, "engine_turn_duration_milliseconds", "duration of a Run turn")
	if err != nil {
		return nil, err
	}

	return &OTelProvider{tp: tp, mp: mp, turns: turns, faults: faults, turnMillis: turnMillis}, nil
}

// Tracer returns a Tracer for the given instrumentation scope name.
func (p *OTelProvider) Tracer(name string) Tracer {
	return &otelTracer{tracer: p.tp.Tracer(name)}
}

// Counters exposes the pre-registered engine metric instruments for the
// pipeline middleware to record against.
func (p *OTelProvider) Counters() (turns, faults *Counter, turnMillis *Histogram) {
	return p.turns, p.faults, p.turnMillis
}

// Shutdown flushes and releases the tracer and meter providers.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	return p.mp.Shutdown(ctx)
}

// MetricsHandler returns an HTTP handler serving the Prometheus exposition
// format, for the demonstration CLI or a host's own mux.
func (p *OTelProvider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type otelTracer struct {
	tracer trace.Tracer
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, SpanHandle) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttributes(attrs map[string]any) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, toAttribute(k, v))
	}
	s.span.SetAttributes(kvs...)
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func toAttribute(k string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	default:
		return attribute.String(k, fmt.Sprintf("%v", val))
	}
}
