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
	"github.com/nexusflow/engine/idgen"
)

// TestNotificationOrdering asserts the lifecycle ordering documented in
// spec.md §4.6 for a workflow that finishes in a single turn:
// WorkflowExecuting, WorkflowStarted, (ActivityExecuting, ActivityExecuted)
// per activity, WorkflowFinished, WorkflowExecuted.
func TestNotificationOrdering(t *testing.T) {
	graph := sequenceGraph(traceActivity("A"), traceActivity("B"))

	var types []engine.EventType
	notifier := engine.NewNotifier()
	notifier.On(func(e engine.Event) { types = append(types, e.Type) })

	runner := engine.NewRunner(newTestRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithNotifier(notifier),
	)

	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"trace": []string{}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, result.WorkflowState.Status)

	want := []engine.EventType{
		engine.WorkflowExecuting,
		engine.WorkflowStarted,
		engine.ActivityExecuting, engine.ActivityExecuted, // Sequence root
		engine.ActivityExecuting, engine.ActivityExecuted, // A
		engine.ActivityExecuting, engine.ActivityExecuted, // Sequence resumed
		engine.ActivityExecuting, engine.ActivityExecuted, // B
		engine.ActivityExecuting, engine.ActivityExecuted, // Sequence resumed, completes
		engine.WorkflowFinished,
		engine.WorkflowExecuted,
	}
	assert.Equal(t, want, types)
}

// TestNotificationListenerPanicIsContained asserts a panicking listener does
// not abort the run or corrupt engine state, and that the fault becomes part
// of the workflow's incident set (spec.md §4.6).
func TestNotificationListenerPanicIsContained(t *testing.T) {
	graph := sequenceGraph(traceActivity("A"))

	var recovered []any
	notifier := engine.NewNotifier()
	notifier.On(func(engine.Event) { panic("listener exploded") })
	notifier.OnListenerPanic(func(_ engine.Event, r any) { recovered = append(recovered, r) })

	runner := engine.NewRunner(newTestRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithNotifier(notifier),
	)

	result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
		Variables: map[string]any{"trace": []string{}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.WorkflowFinished, result.WorkflowState.Status)
	assert.NotEmpty(t, recovered)

	require.NotEmpty(t, result.WorkflowState.Incidents)
	for _, inc := range result.WorkflowState.Incidents {
		assert.Contains(t, inc.Message, "listener panic")
	}
}
