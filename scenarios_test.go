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

package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusflow/engine"
	"github.com/nexusflow/engine/activities"
	"github.com/nexusflow/engine/idgen"
	"github.com/nexusflow/engine/store"
)

// traceWriter is a minimal test-only activity appending its own Id to the
// workflow-scoped "trace" variable and completing synchronously. Scenario
// S1 exercises it to assert scheduler FIFO ordering end to end.
type traceWriter struct{ typeName string }

func (t traceWriter) CanExecute(a *engine.Activity) bool { return a.Type == t.typeName }

func (traceWriter) Execute(_ context.Context, aec *engine.AEC) error {
	existing, _ := aec.GetVariable("trace")
	list, _ := existing.([]string)
	list = append(list, aec.Activity.ID)
	if err := aec.SetVariable("trace", list); err != nil {
		return err
	}
	aec.Complete("done")
	return nil
}

func (traceWriter) DescribeMetadata() string { return "test: appends its Id to the trace variable" }

func newTestRegistry() *engine.Registry {
	r := engine.NewRegistry()
	r.Register("test.trace", traceWriter{typeName: "test.trace"})
	r.Register(activities.TypeSequence, activities.Sequence{})
	r.Register(activities.TypeParallel, activities.Parallel{})
	r.Register(activities.TypeSetVariable, activities.SetVariable{})
	r.Register(activities.TypeWait, activities.Wait{})
	r.Register(activities.TypeThrow, activities.Throw{})
	r.Register(activities.TypeIf, activities.NewIf())
	return r
}

func sequenceGraph(children ...*engine.Activity) *engine.WorkflowGraph {
	return engine.NewWorkflowGraph(&engine.Activity{
		ID:       "root",
		Type:     activities.TypeSequence,
		Children: children,
	})
}

func traceActivity(id string) *engine.Activity {
	return &engine.Activity{ID: id, Type: "test.trace"}
}

// S1: linear sequence — three activities each append their Id to "trace".
func TestScenario_LinearSequence(t *testing.T) {
	graph := sequenceGraph(traceActivity("A"), traceActivity("B"), traceActivity("C"))
	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))

	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"trace": []string{}},
	})
	require.NoError(t, err)

	assert.Equal(t, engine.WorkflowFinished, result.WorkflowState.Status)
	assert.Empty(t, result.WorkflowState.Bookmarks)
	assert.Equal(t, []string{"A", "B", "C"}, result.WorkflowState.Variables["trace"])

	var leaves int
	for _, rec := range result.WorkflowState.ActivityExecutionContexts {
		if rec.ActivityNodeID != "0" {
			leaves++
		}
	}
	assert.Equal(t, 3, leaves)
}

// S2: bookmark suspend/resume.
func TestScenario_BookmarkSuspendResume(t *testing.T) {
	setX := &engine.Activity{ID: "setX", Type: activities.TypeSetVariable, Inputs: map[string]any{"blockId": "x", "value": int64(1)}}
	wait := &engine.Activity{ID: "wait", Type: activities.TypeWait, Inputs: map[string]any{"name": "evt"}}
	setY := &engine.Activity{ID: "setY", Type: activities.TypeSetVariable, Inputs: map[string]any{"blockId": "y", "value": int64(2)}}
	graph := sequenceGraph(setX, wait, setY)

	st := store.NewMemoryStore()
	runner := engine.NewRunner(newTestRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithStateStore(st),
	)

	first, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"x": nil, "y": nil},
	})
	require.NoError(t, err)
	require.Len(t, first.WorkflowState.Bookmarks, 1)
	assert.Equal(t, "evt", first.WorkflowState.Bookmarks[0].Name)
	assert.Equal(t, engine.SubStatusSuspended, first.WorkflowState.SubStatus)
	assert.Equal(t, int64(1), first.WorkflowState.Variables["x"])

	bookmarkID := first.WorkflowState.Bookmarks[0].ID

	second, err := runner.Run(context.Background(), graph, first.WorkflowState, engine.RunWorkflowOptions{
		BookmarkID: bookmarkID,
		Input:      map[string]any{"payload": map[string]any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, second.WorkflowState.Status)
	assert.Equal(t, int64(2), second.WorkflowState.Variables["y"])
	assert.Empty(t, second.WorkflowState.Bookmarks)
}

// S3: fault propagation.
func TestScenario_FaultPropagation(t *testing.T) {
	a := traceActivity("A")
	throw := &engine.Activity{ID: "boom", Type: activities.TypeThrow, Inputs: map[string]any{"message": "boom"}}
	c := traceActivity("C")
	graph := sequenceGraph(a, throw, c)

	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))
	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"trace": []string{}},
	})
	require.NoError(t, err)

	assert.Equal(t, engine.SubStatusFaulted, result.WorkflowState.SubStatus)
	require.Len(t, result.WorkflowState.Incidents, 1)
	assert.Equal(t, "boom", result.WorkflowState.Incidents[0].Message)

	for _, rec := range result.WorkflowState.ActivityExecutionContexts {
		assert.NotEqual(t, "0/2", rec.ActivityNodeID, "activity C must never be created once B faulted")
	}
}

// S4: parallel composite.
func TestScenario_ParallelComposite(t *testing.T) {
	waitA := &engine.Activity{ID: "waitA", Type: activities.TypeWait, Inputs: map[string]any{"name": "a"}}
	waitB := &engine.Activity{ID: "waitB", Type: activities.TypeWait, Inputs: map[string]any{"name": "b"}}
	graph := engine.NewWorkflowGraph(&engine.Activity{
		ID:       "root",
		Type:     activities.TypeParallel,
		Children: []*engine.Activity{waitA, waitB},
	})

	st := store.NewMemoryStore()
	runner := engine.NewRunner(newTestRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithStateStore(st),
	)

	first, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{})
	require.NoError(t, err)
	require.Len(t, first.WorkflowState.Bookmarks, 2)

	var bookmarkA, bookmarkB string
	for _, b := range first.WorkflowState.Bookmarks {
		switch b.Name {
		case "a":
			bookmarkA = b.ID
		case "b":
			bookmarkB = b.ID
		}
	}
	require.NotEmpty(t, bookmarkA)
	require.NotEmpty(t, bookmarkB)

	second, err := runner.Run(context.Background(), graph, first.WorkflowState, engine.RunWorkflowOptions{BookmarkID: bookmarkA})
	require.NoError(t, err)
	assert.Len(t, second.WorkflowState.Bookmarks, 1)
	assert.Equal(t, engine.WorkflowRunning, second.WorkflowState.Status)

	third, err := runner.Run(context.Background(), graph, second.WorkflowState, engine.RunWorkflowOptions{BookmarkID: bookmarkB})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, third.WorkflowState.Status)
	assert.Empty(t, third.WorkflowState.Bookmarks)
}

// S5: interrupted resumption — only the committed WorkflowState of the
// first (suspended) turn is carried over, with no live WEC; it is
// rehydrated and resumed via an explicit BookmarkID. The Runner must
// locate the matching AEC and complete it.
func TestScenario_InterruptedResumption(t *testing.T) {
	wait := &engine.Activity{ID: "wait", Type: activities.TypeWait, Inputs: map[string]any{"name": "evt"}}
	graph := sequenceGraph(wait)

	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))
	first, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{})
	require.NoError(t, err)
	require.Len(t, first.WorkflowState.Bookmarks, 1)

	// Simulate the process restarting: the only artifact that survives is
	// the committed WorkflowState, containing two IsExecuting AECs (the
	// Sequence root and its still-suspended Wait child) and one bookmark.
	rehydrated, err := runner.Run(context.Background(), graph, first.WorkflowState, engine.RunWorkflowOptions{
		BookmarkID: first.WorkflowState.Bookmarks[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, rehydrated.WorkflowState.Status)
}

// S5b: rehydration with no explicit resumption target at all (no
// BookmarkID, no ActivityHandle) — the distinct fallback spec.md §4.7 step
// 2d describes, which reschedules every still-IsExecuting AEC directly
// rather than resolving a bookmark. The root here is the Wait activity
// itself (not wrapped in a Sequence), so exactly one AEC is IsExecuting
// and there is no ambiguity about which one gets reseeded.
func TestScenario_RehydratedWithNoExplicitTarget(t *testing.T) {
	wait := &engine.Activity{ID: "wait", Type: activities.TypeWait, Inputs: map[string]any{"name": "evt"}}
	graph := engine.NewWorkflowGraph(wait)

	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))
	first, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{})
	require.NoError(t, err)
	require.Len(t, first.WorkflowState.Bookmarks, 1)
	require.Equal(t, engine.SubStatusSuspended, first.WorkflowState.SubStatus)
	require.Len(t, first.WorkflowState.ActivityExecutionContexts, 1)
	suspendedNodeID := first.WorkflowState.ActivityExecutionContexts[0].ActivityNodeID

	resumed, err := runner.Run(context.Background(), graph, first.WorkflowState, engine.RunWorkflowOptions{})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, resumed.WorkflowState.Status)
	require.Len(t, resumed.WorkflowState.ActivityExecutionContexts, 1)
	assert.Equal(t, suspendedNodeID, resumed.WorkflowState.ActivityExecutionContexts[0].ActivityNodeID)
	assert.Equal(t, engine.ActivityCompleted, resumed.WorkflowState.ActivityExecutionContexts[0].Status)
}

// S6: round-trip — Extract then Apply must reproduce identical observable
// state on the invariant fields.
func TestScenario_RoundTrip(t *testing.T) {
	setX := &engine.Activity{ID: "setX", Type: activities.TypeSetVariable, Inputs: map[string]any{"blockId": "x", "value": int64(1)}}
	wait := &engine.Activity{ID: "wait", Type: activities.TypeWait, Inputs: map[string]any{"name": "evt"}}
	setY := &engine.Activity{ID: "setY", Type: activities.TypeSetVariable, Inputs: map[string]any{"blockId": "y", "value": int64(2)}}
	graph := sequenceGraph(setX, wait, setY)

	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))
	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"x": nil, "y": nil},
	})
	require.NoError(t, err)

	rehydrated, err := engine.Apply(result.WorkflowState, graph, idgen.NewUUIDGenerator().NewID, nil)
	require.NoError(t, err)

	reExtracted := engine.Extract(rehydrated)

	assert.Equal(t, result.WorkflowState.Status, reExtracted.Status)
	assert.Equal(t, result.WorkflowState.SubStatus, reExtracted.SubStatus)
	assert.ElementsMatch(t, result.WorkflowState.Bookmarks, reExtracted.Bookmarks)
	assert.Equal(t, result.WorkflowState.Variables, reExtracted.Variables)
	assert.Len(t, reExtracted.ActivityExecutionContexts, len(result.WorkflowState.ActivityExecutionContexts))
	assert.Equal(t, len(result.WorkflowState.Scheduler), len(reExtracted.Scheduler))
}

// Property 5: scheduler fairness — with no prepend, activities execute in
// strict FIFO order of scheduling within a turn.
func TestProperty_SchedulerFairness(t *testing.T) {
	graph := sequenceGraph(traceActivity("A"), traceActivity("B"), traceActivity("C"), traceActivity("D"))
	runner := engine.NewRunner(newTestRegistry(), engine.WithIDGenerator(idgen.NewUUIDGenerator()))

	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"trace": []string{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, result.WorkflowState.Variables["trace"])
}

// Property 6: dynamic variables supplied via options.Variables are
// readable within the same turn and persist across turns.
func TestProperty_DynamicVariablesPersist(t *testing.T) {
	graph := sequenceGraph(traceActivity("A"))
	st := store.NewMemoryStore()
	runner := engine.NewRunner(newTestRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithStateStore(st),
	)

	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"seeded": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, "value", result.WorkflowState.Variables["seeded"])
}
