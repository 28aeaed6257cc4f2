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

// Package telemetry provides the tracer/span abstraction the Execution
// Pipeline's outer middleware stage wraps each turn in, plus a concrete
// OpenTelemetry + Prometheus implementation. Grounded on the teacher's
// pkg/observability abstraction and internal/tracing/otel.go wiring.
package telemetry

import "context"

// SpanHandle is the minimal span surface the pipeline middleware needs.
type SpanHandle interface {
	End()
	SetAttributes(attrs map[string]any)
	RecordError(err error)
}

// Tracer starts spans for a named instrumentation scope.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, SpanHandle)
}

// Provider vends Tracers and owns shutdown/flush of the underlying SDK.
type Provider interface {
	Tracer(name string) Tracer
	Shutdown(ctx context.Context) error
}

// noopSpan discards everything; used by NoopProvider and as a safe
// zero-value fallback.
type noopSpan struct{}

func (noopSpan) End()                             {}
func (noopSpan) SetAttributes(map[string]any)     {}
func (noopSpan) RecordError(error)                {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, SpanHandle) {
	return ctx, noopSpan{}
}

// NoopProvider is a Provider that records nothing, used when a host does
// not configure telemetry.
type NoopProvider struct{}

// Tracer returns a Tracer that discards every span.
func (NoopProvider) Tracer(string) Tracer { return noopTracer{} }

// Shutdown is a no-op.
func (NoopProvider) Shutdown(context.Context) error { return nil }
