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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attr is a single metric attribute (label) pair.
type Attr struct {
	Key   string
	Value string
}

// Counter wraps an OTel int64 counter instrument.
type Counter struct {
	inst metric.Int64Counter
}

func newCounter(m metric.Meter, name, description string) (*Counter, error) {
	inst, err := m.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, err
	}
	return &Counter{inst: inst}, nil
}

// Inc increments the counter by one.
func (c *Counter) Inc(ctx context.Context, attrs ...Attr) {
	c.inst.Add(ctx, 1, metric.WithAttributes(toKeyValues(attrs)...))
}

// Histogram wraps an OTel float64 histogram instrument.
type Histogram struct {
	inst metric.Float64Histogram
}

func newHistogram(m metric.Meter, name, description string) (*Histogram, error) {
	inst, err := m.Float64Histogram(name, metric.WithDescription(description))
	if err != nil {
		return nil, err
	}
	return &Histogram{inst: inst}, nil
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(ctx context.Context, value float64, attrs ...Attr) {
	h.inst.Record(ctx, value, metric.WithAttributes(toKeyValues(attrs)...))
}

func toKeyValues(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = attribute.String(a.Key, a.Value)
	}
	return kvs
}
