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

package engine

import (
	"context"
	"log/slog"
)

// Handler runs one pipeline turn over a WEC.
type Handler func(ctx context.Context, w *WEC) error

// Middleware wraps a Handler with additional behavior. Middlewares may not
// mutate scheduler ordering (spec.md §4.4); they observe and wrap, they do
// not reach into w.Scheduler directly.
type Middleware func(next Handler) Handler

// ActivityHandler runs one activity's callback.
type ActivityHandler func(ctx context.Context, aec *AEC) error

// ActivityMiddleware wraps an ActivityHandler.
type ActivityMiddleware func(next ActivityHandler) ActivityHandler

// Pipeline composes the outer middleware chain around the scheduler drain
// loop, and the per-activity middleware chain around each activity's
// Execute callback.
type Pipeline struct {
	Registry  *Registry
	Logger    *slog.Logger
	Notifier  *Notifier

	outer      []Middleware
	perActivity []ActivityMiddleware
}

// NewPipeline builds a pipeline against an activity registry.
func NewPipeline(registry *Registry, logger *slog.Logger, notifier *Notifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Registry: registry, Logger: logger, Notifier: notifier}
}

// Use appends an outer middleware, applied around the whole drain loop.
func (p *Pipeline) Use(m Middleware) *Pipeline {
	p.outer = append(p.outer, m)
	return p
}

// UseActivity appends a per-activity middleware, applied around each
// activity's Execute callback.
func (p *Pipeline) UseActivity(m ActivityMiddleware) *Pipeline {
	p.perActivity = append(p.perActivity, m)
	return p
}

// Run executes one turn: runs the composed outer chain wrapping drain.
func (p *Pipeline) Run(ctx context.Context, w *WEC) error {
	h := p.drain
	for i := len(p.outer) - 1; i >= 0; i-- {
		h = p.outer[i](h)
	}
	return h(ctx, w)
}

// drain is the terminal stage of the outer pipeline: while the scheduler
// has work and the context is not cancelled, pop a WorkItem, obtain or
// create its AEC, run the per-activity pipeline, then return to pop again.
func (p *Pipeline) drain(ctx context.Context, w *WEC) error {
	for w.Scheduler.HasAny() {
		select {
		case <-ctx.Done():
			w.SubStatus = SubStatusCancelled
			return nil
		default:
		}

		item, ok := w.Scheduler.Next()
		if !ok {
			break
		}

		aec := p.resolveAEC(w, item)
		if err := p.runActivity(ctx, w, aec); err != nil {
			p.Logger.Error("activity execution error", "instance_id", w.InstanceID, "aec_id", aec.ID, "error", err)
		} else if item.MatchedBookmarkID != "" {
			aec.burnBookmark(item.MatchedBookmarkID)
		}
	}
	return nil
}

// resolveAEC obtains the AEC for a WorkItem: the existing one for a
// resumption, or a freshly created one for a new start (spec.md §4.3 —
// resumptions of an ExistingAEC never create a new AEC).
func (p *Pipeline) resolveAEC(w *WEC, item *WorkItem) *AEC {
	if item.ExistingAEC != nil {
		aec := item.ExistingAEC
		if len(item.Input) > 0 {
			if aec.Input == nil {
				aec.Input = make(map[string]any, len(item.Input))
			}
			for k, v := range item.Input {
				aec.Input[k] = v
			}
		}
		for k, v := range item.Variables {
			_ = aec.SetVariable(k, v)
		}
		return aec
	}
	aec := w.NewAEC(item.Activity, item.Owner, "")
	aec.Tag = item.Tag
	aec.Input = item.Input
	for k, v := range item.Variables {
		_ = aec.SetVariable(k, v)
	}
	return aec
}

// runActivity runs the per-activity middleware chain around the resolved
// implementation's Execute callback, then — once, and only while the AEC
// is still Running after Execute — gives composite activities a chance to
// schedule their children.
//
// ActivityExecuting/ActivityExecuted notifications are emitted here in the
// engine core rather than as middleware, per spec.md §9's resolved Open
// Question: the ordering guarantee in §4.6 is load-bearing for external
// observers and middleware ordering is not contractually fixed.
func (p *Pipeline) runActivity(ctx context.Context, w *WEC, aec *AEC) error {
	if aec.Status == ActivityPending {
		aec.Status = ActivityRunning
		aec.StartedAt = w.now()
	}
	aec.IsExecuting = true

	if p.Notifier != nil {
		p.Notifier.emit(w, Event{Type: ActivityExecuting, InstanceID: w.InstanceID, AECID: aec.ID})
	}

	h := p.invokeActivity
	for i := len(p.perActivity) - 1; i >= 0; i-- {
		h = p.perActivity[i](h)
	}

	err := h(ctx, aec)

	if p.Notifier != nil {
		p.Notifier.emit(w, Event{Type: ActivityExecuted, InstanceID: w.InstanceID, AECID: aec.ID})
	}

	return err
}

// invokeActivity is the terminal stage of the per-activity chain: resolve
// the implementation, run Execute, trap any returned error into an
// Incident via AEC.Fault, then give composites a chance to schedule
// children if the AEC is still live.
func (p *Pipeline) invokeActivity(ctx context.Context, aec *AEC) error {
	impl, err := p.Registry.Resolve(aec.Activity)
	if err != nil {
		aec.Fault(err)
		return err
	}

	if execErr := impl.Execute(ctx, aec); execErr != nil {
		aec.Fault(execErr)
		return execErr
	}

	if aec.Status == ActivityRunning && !aec.ChildrenScheduled {
		if composite, ok := impl.(Composite); ok {
			aec.ChildrenScheduled = true
			if err := composite.ScheduleChildren(aec); err != nil {
				aec.Fault(err)
				return err
			}
		}
	}

	return nil
}
