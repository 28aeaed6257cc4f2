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
	"time"

	"github.com/nexusflow/engine"
)

// Middleware returns an engine.Middleware that wraps each Run turn in a
// span named "engine.turn" and, when provider is an *OTelProvider, records
// turn-count/duration metrics. This is the concern spec.md §4.4 assigns to
// the pipeline's outer stage.
func Middleware(provider Provider) engine.Middleware {
	tracer := provider.Tracer("github.com/nexusflow/engine")
	otelProvider, hasMetrics := provider.(*OTelProvider)

	return func(next engine.Handler) engine.Handler {
		return func(ctx context.Context, w *engine.WEC) error {
			ctx, span := tracer.Start(ctx, "engine.turn")
			start := time.Now()
			incidentsBefore := len(w.Incidents)

			err := next(ctx, w)

			if err != nil {
				span.RecordError(err)
			}
			span.SetAttributes(map[string]any{
				"workflow.instance_id": w.InstanceID,
				"workflow.sub_status":  string(w.SubStatus),
			})
			span.End()

			if hasMetrics {
				turns, faults, turnMillis := otelProvider.Counters()
				turns.Inc(ctx, Attr{Key: "sub_status", Value: string(w.SubStatus)})
				turnMillis.Observe(ctx, float64(time.Since(start).Milliseconds()))
				for i := incidentsBefore; i < len(w.Incidents); i++ {
					faults.Inc(ctx)
				}
			}

			return err
		}
	}
}
