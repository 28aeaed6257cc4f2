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

	engerrors "github.com/nexusflow/engine/pkg/errors"
)

// IDGenerator mints identifiers for InstanceId, AEC.Id and Bookmark.Id.
type IDGenerator interface {
	NewID() string
}

// StateStore is the persistence boundary the Runner commits to and
// rehydrates from. The engine core only calls this interface; concrete
// adapters live in engine/store.
type StateStore interface {
	Save(ctx context.Context, state *WorkflowState) error
	Load(ctx context.Context, instanceID string) (*WorkflowState, error)
}

// ActivityHandle identifies a target activity for resumption, either by an
// existing AEC's Id directly, or by resolving an activity on the graph by
// NodeId, ActivityId or Name (Tag).
type ActivityHandle struct {
	ActivityInstanceID string
	NodeID             string
	ActivityID         string
	Name               string
}

// RunWorkflowOptions configures one Run call. See spec.md §6.
type RunWorkflowOptions struct {
	WorkflowInstanceID       string
	CorrelationID            string
	Input                    map[string]any
	Variables                map[string]any
	Properties               map[string]any
	BookmarkID               string
	ActivityHandle           *ActivityHandle
	TriggerActivityID        string
	ParentWorkflowInstanceID string

	FaultStrategy *FaultStrategy
}

// RunResult is the Runner's return value for a completed or suspended turn.
type RunResult struct {
	WEC           *WEC
	WorkflowState *WorkflowState
	Graph         *WorkflowGraph
	Result        any
}

// RunnerOption configures a Runner instance (constructor-time, distinct
// from the per-call RunWorkflowOptions above), mirroring the teacher's
// functional-options pattern on pkg/workflow.Executor.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger used by the Runner and the
// pipeline it builds.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithIDGenerator sets the identifier generator used to mint InstanceId,
// AEC.Id and Bookmark.Id when the caller does not supply one.
func WithIDGenerator(g IDGenerator) RunnerOption {
	return func(r *Runner) { r.idgen = g }
}

// WithStateStore sets the persistence adapter the Runner commits to and
// rehydrates from.
func WithStateStore(s StateStore) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithNotifier sets the lifecycle event emitter.
func WithNotifier(n *Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithMiddleware appends an outer pipeline middleware (e.g. telemetry).
func WithMiddleware(m Middleware) RunnerOption {
	return func(r *Runner) { r.middlewares = append(r.middlewares, m) }
}

// WithActivityMiddleware appends a per-activity pipeline middleware.
func WithActivityMiddleware(m ActivityMiddleware) RunnerOption {
	return func(r *Runner) { r.activityMiddlewares = append(r.activityMiddlewares, m) }
}

// WithDefaultFaultStrategy overrides the default "propagate to root" fault
// strategy for workflows run by this Runner when the call does not specify
// one.
func WithDefaultFaultStrategy(s FaultStrategy) RunnerOption {
	return func(r *Runner) { r.defaultFaultStrategy = s }
}

// Runner is the orchestrator: it creates or rehydrates a WEC, seeds the
// scheduler per caller intent, runs the pipeline, emits notifications, and
// commits state. See spec.md §4.7.
type Runner struct {
	Registry *Registry

	logger               *slog.Logger
	idgen                IDGenerator
	store                StateStore
	notifier             *Notifier
	middlewares          []Middleware
	activityMiddlewares  []ActivityMiddleware
	defaultFaultStrategy FaultStrategy
}

// NewRunner constructs a Runner dispatching against registry, applying
// opts in order.
func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		Registry:             registry,
		logger:               slog.Default(),
		notifier:             NewNotifier(),
		defaultFaultStrategy: FaultPropagateToRoot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) newID() string {
	if r.idgen != nil {
		return r.idgen.NewID()
	}
	return ""
}

// Run drives graph to completion or suspension. When state is nil, a fresh
// WEC is created and the root activity scheduled. When state is non-nil,
// the WEC is rehydrated and the seeding decision tree in spec.md §4.7 is
// applied to decide what (if anything) to schedule before the pipeline
// runs.
func (r *Runner) Run(ctx context.Context, graph *WorkflowGraph, state *WorkflowState, options RunWorkflowOptions) (*RunResult, error) {
	var w *WEC
	var err error

	if state == nil {
		instanceID := options.WorkflowInstanceID
		if instanceID == "" {
			instanceID = r.newID()
		}
		w = NewWEC(instanceID, graph, r.newID, nil)
		w.CorrelationID = options.CorrelationID
		w.ParentWorkflowInstanceID = options.ParentWorkflowInstanceID
		if options.Input != nil {
			w.Input = options.Input
		}
		if options.Properties != nil {
			w.Properties = options.Properties
		}
		w.Scheduler.ScheduleActivity(graph.Root, nil, false)
	} else {
		w, err = Apply(state, graph, r.newID, nil)
		if err != nil {
			return nil, err
		}
		if err := r.seed(w, graph, options); err != nil {
			return nil, err
		}
	}

	if options.FaultStrategy != nil {
		w.FaultStrategy = *options.FaultStrategy
	} else {
		w.FaultStrategy = r.defaultFaultStrategy
	}

	r.applyVariables(w, options.Variables)

	pipeline := NewPipeline(r.Registry, r.logger, r.notifier)
	for _, m := range r.middlewares {
		pipeline.Use(m)
	}
	for _, m := range r.activityMiddlewares {
		pipeline.UseActivity(m)
	}

	wasPending := w.SubStatus == SubStatusPending

	r.notifier.emit(w, Event{Type: WorkflowExecuting, InstanceID: w.InstanceID})
	if wasPending {
		w.SubStatus = SubStatusExecuting
		r.notifier.emit(w, Event{Type: WorkflowStarted, InstanceID: w.InstanceID})
	}

	if runErr := pipeline.Run(ctx, w); runErr != nil {
		return nil, runErr
	}

	r.finalizeStatus(w)

	if w.Status == WorkflowFinished {
		r.notifier.emit(w, Event{Type: WorkflowFinished, InstanceID: w.InstanceID})
	}
	r.notifier.emit(w, Event{Type: WorkflowExecuted, InstanceID: w.InstanceID})

	snapshot := Extract(w)
	if r.store != nil {
		if err := r.store.Save(ctx, snapshot); err != nil {
			return nil, err
		}
	}

	return &RunResult{
		WEC:           w,
		WorkflowState: snapshot,
		Graph:         graph,
		Result:        w.Output["result"],
	}, nil
}

// seed implements the priority-ordered seeding decision tree for a
// rehydrated WEC, per spec.md §4.7 step 2.
func (r *Runner) seed(w *WEC, graph *WorkflowGraph, options RunWorkflowOptions) error {
	if options.BookmarkID != "" && options.ActivityHandle != nil {
		return &engerrors.ScheduleRejectedError{Reason: "mutually exclusive seeding options: both BookmarkId and ActivityHandle supplied"}
	}

	if options.BookmarkID != "" {
		return r.seedFromBookmark(w, options.BookmarkID, options.Input)
	}

	if options.ActivityHandle != nil {
		return r.seedFromActivityHandle(w, graph, options.ActivityHandle, options.Input)
	}

	if w.Scheduler.HasAny() {
		return nil
	}

	if w.HasExecutingAEC() {
		for _, aec := range w.ExecutingAECsByStartedAt() {
			w.Scheduler.Schedule(&WorkItem{Activity: aec.Activity, ExistingAEC: aec})
		}
		return nil
	}

	w.Scheduler.ScheduleActivity(graph.Root, nil, false, func(wi *WorkItem) {
		wi.Variables = options.Variables
	})
	return nil
}

func (r *Runner) seedFromBookmark(w *WEC, bookmarkID string, input map[string]any) error {
	for _, b := range w.Bookmarks {
		if b.ID != bookmarkID {
			continue
		}
		aec, ok := w.AEC(b.ActivityInstanceID)
		if !ok {
			return &engerrors.ContextNotFoundError{ActivityInstanceID: b.ActivityInstanceID}
		}
		w.Scheduler.Schedule(&WorkItem{Activity: aec.Activity, ExistingAEC: aec, Input: input, MatchedBookmarkID: b.ID})
		return nil
	}
	return &engerrors.BookmarkNotFoundError{BookmarkID: bookmarkID}
}

func (r *Runner) seedFromActivityHandle(w *WEC, graph *WorkflowGraph, h *ActivityHandle, input map[string]any) error {
	if h.ActivityInstanceID != "" {
		aec, ok := w.AEC(h.ActivityInstanceID)
		if !ok {
			return &engerrors.ContextNotFoundError{ActivityInstanceID: h.ActivityInstanceID}
		}
		w.Scheduler.Schedule(&WorkItem{Activity: aec.Activity, ExistingAEC: aec, Input: input})
		return nil
	}

	var activity *Activity
	var ok bool
	switch {
	case h.NodeID != "":
		activity, ok = graph.ByNodeID(h.NodeID)
	case h.ActivityID != "":
		activity, ok = graph.ByID(h.ActivityID)
	default:
		if tagged := graph.ByTag(h.Name); len(tagged) > 0 {
			activity, ok = tagged[0], true
		}
	}
	if !ok {
		return &engerrors.ActivityNotFoundError{NodeID: h.NodeID, ActivityID: h.ActivityID, Name: h.Name}
	}
	w.Scheduler.ScheduleActivity(activity, nil, false, func(wi *WorkItem) {
		wi.Input = input
	})
	return nil
}

// applyVariables binds options.Variables as dynamic variables on the WEC's
// root register, the parent of the root AEC's register, per
// spec.md §4.7 step 3 and the resolved Open Question in SPEC_FULL.md §9:
// dynamic-only, does not shadow declared blocks lower in the tree.
func (r *Runner) applyVariables(w *WEC, vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	for k, v := range vars {
		_ = w.MemoryRegister.Set(k, v)
	}
}

// finalizeStatus derives the post-pipeline Status/SubStatus: Finished once
// the scheduler is empty and no AEC remains IsExecuting (property 2);
// Faulted takes precedence when set by fault propagation; otherwise the
// workflow is Suspended, awaiting external resumption.
func (r *Runner) finalizeStatus(w *WEC) {
	if w.SubStatus == SubStatusFaulted {
		w.Status = WorkflowRunning
		return
	}
	if w.SubStatus == SubStatusCancelled {
		w.Status = WorkflowRunning
		return
	}
	if !w.Scheduler.HasAny() && !w.HasExecutingAEC() {
		w.Status = WorkflowFinished
		w.SubStatus = SubStatusFinished
		return
	}
	w.Status = WorkflowRunning
	w.SubStatus = SubStatusSuspended
}
