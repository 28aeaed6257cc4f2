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
	"time"

	engerrors "github.com/nexusflow/engine/pkg/errors"
)

// StateFormatVersion is the current schema version written by Extract.
// Apply rejects any persisted state whose StateFormatVersion is newer than
// this with a StateVersionMismatchError; older versions would go through
// declared migrations (none exist yet, so there is nothing to run).
const StateFormatVersion = 1

// ActivityExecutionContextRecord is the structural, parent-ID-addressed
// record of one AEC within a persisted WorkflowState.
type ActivityExecutionContextRecord struct {
	ID                   string
	ActivityNodeID       string
	ParentID             string
	Status               ActivityStatus
	Properties           map[string]any
	Input                map[string]any
	Output               map[string]any
	LocalVariableValues  map[string]any
	Bookmarks            []*Bookmark
	Tag                  string
	StartedAt            time.Time
	CompletedAt          time.Time
	IsExecuting          bool
	ChildIDs             []string
	ChildrenScheduled    bool
}

// WorkItemRecord is the persisted rendering of a queued WorkItem.
type WorkItemRecord struct {
	ActivityNodeID string
	Tag            string
	Input          map[string]any
	ExistingAECID  string
}

// WorkflowState is the fully structural, serializable snapshot of a WEC,
// minus transient references (AEC.wec back-pointers, the compiled
// WorkflowGraph).
type WorkflowState struct {
	InstanceID               string
	DefinitionID             string
	Version                  string
	TenantID                 string
	CorrelationID            string
	ParentInstanceID         string

	Status    WorkflowStatus
	SubStatus WorkflowSubStatus

	Input      map[string]any
	Output     map[string]any
	Properties map[string]any

	Variables map[string]any // root register snapshot, keyed by BlockId

	ActivityExecutionContexts []ActivityExecutionContextRecord
	Bookmarks                 []*Bookmark
	Incidents                 []Incident
	Scheduler                 []WorkItemRecord
	ExecutionLog              []LogEntry

	StateFormatVersion int
}

// Extract walks the AEC forest and renders w as a serializable
// WorkflowState. See spec.md §4.5.
func Extract(w *WEC) *WorkflowState {
	state := &WorkflowState{
		InstanceID:       w.InstanceID,
		TenantID:         w.TenantID,
		CorrelationID:    w.CorrelationID,
		ParentInstanceID: w.ParentWorkflowInstanceID,
		Status:           w.Status,
		SubStatus:        w.SubStatus,
		Input:            w.Input,
		Output:           w.Output,
		Properties:       w.Properties,
		Variables:        w.MemoryRegister.Snapshot(),
		Bookmarks:        w.Bookmarks,
		Incidents:        w.Incidents,
		ExecutionLog:     w.ExecutionLog,
		StateFormatVersion: StateFormatVersion,
	}

	for _, a := range w.AECs() {
		state.ActivityExecutionContexts = append(state.ActivityExecutionContexts, ActivityExecutionContextRecord{
			ID:                  a.ID,
			ActivityNodeID:      a.Activity.NodeID,
			ParentID:            a.ParentID,
			Status:              a.Status,
			Properties:          a.Properties,
			Input:               a.Input,
			Output:              a.Output,
			LocalVariableValues: a.Register.Snapshot(),
			Bookmarks:           a.Bookmarks,
			Tag:                 a.Tag,
			StartedAt:           a.StartedAt,
			CompletedAt:         a.CompletedAt,
			IsExecuting:         a.IsExecuting,
			ChildIDs:            append([]string(nil), a.ChildIDs...),
			ChildrenScheduled:   a.ChildrenScheduled,
		})
	}

	for _, item := range w.Scheduler.Items() {
		rec := WorkItemRecord{Tag: item.Tag, Input: item.Input}
		if item.Activity != nil {
			rec.ActivityNodeID = item.Activity.NodeID
		}
		if item.ExistingAEC != nil {
			rec.ExistingAECID = item.ExistingAEC.ID
		}
		state.Scheduler = append(state.Scheduler, rec)
	}

	return state
}

// Apply reconstructs an executable WEC from a persisted WorkflowState and
// a resolved WorkflowGraph, wiring parents via ParentId, rebinding
// variables, rebuilding bookmarks and replaying the scheduler queue
// without executing it. See spec.md §4.5.
func Apply(state *WorkflowState, graph *WorkflowGraph, idgen func() string, clock Clock) (*WEC, error) {
	if state.StateFormatVersion > StateFormatVersion {
		return nil, &engerrors.StateVersionMismatchError{
			PersistedVersion: state.StateFormatVersion,
			EngineVersion:    StateFormatVersion,
		}
	}

	w := NewWEC(state.InstanceID, graph, idgen, clock)
	w.TenantID = state.TenantID
	w.CorrelationID = state.CorrelationID
	w.ParentWorkflowInstanceID = state.ParentInstanceID
	w.Status = state.Status
	w.SubStatus = state.SubStatus
	w.Input = state.Input
	w.Output = state.Output
	w.Properties = state.Properties
	w.Incidents = append([]Incident(nil), state.Incidents...)
	w.ExecutionLog = append([]LogEntry(nil), state.ExecutionLog...)
	w.MemoryRegister.Restore(state.Variables)

	// Pass 1: recreate AECs in recorded order, keyed by persisted Id, with
	// a placeholder parent link; registers are children of the owner's
	// register once the owner is known (pass 2), so create with nil owner
	// here and re-parent registers afterward.
	for _, rec := range state.ActivityExecutionContexts {
		activity, ok := graph.ByNodeID(rec.ActivityNodeID)
		if !ok {
			return nil, &engerrors.ActivityNotFoundError{NodeID: rec.ActivityNodeID}
		}
		aec := w.NewAEC(activity, nil, rec.ID)
		aec.ParentID = rec.ParentID
		aec.Status = rec.Status
		aec.Properties = rec.Properties
		aec.Input = rec.Input
		aec.Output = rec.Output
		aec.Register.Restore(rec.LocalVariableValues)
		aec.Bookmarks = rec.Bookmarks
		aec.Tag = rec.Tag
		aec.StartedAt = rec.StartedAt
		aec.CompletedAt = rec.CompletedAt
		aec.IsExecuting = rec.IsExecuting
		aec.ChildIDs = append([]string(nil), rec.ChildIDs...)
		aec.ChildrenScheduled = rec.ChildrenScheduled
	}

	// Pass 2: re-link registers to their parent's register now that every
	// AEC exists, so lexical Get/Set resolves correctly post-rehydration.
	for _, rec := range state.ActivityExecutionContexts {
		if rec.ParentID == "" {
			continue
		}
		aec, _ := w.AEC(rec.ID)
		parent, ok := w.AEC(rec.ParentID)
		if !ok {
			return nil, &engerrors.ContextNotFoundError{ActivityInstanceID: rec.ParentID}
		}
		reparentRegister(aec, parent)
	}

	w.Bookmarks = state.Bookmarks

	for _, rec := range state.Scheduler {
		item := &WorkItemRecord{}
		_ = item
		wi := &WorkItem{Tag: rec.Tag, Input: rec.Input}
		if rec.ExistingAECID != "" {
			aec, ok := w.AEC(rec.ExistingAECID)
			if !ok {
				return nil, &engerrors.ContextNotFoundError{ActivityInstanceID: rec.ExistingAECID}
			}
			wi.ExistingAEC = aec
			wi.Activity = aec.Activity
		} else {
			activity, ok := graph.ByNodeID(rec.ActivityNodeID)
			if !ok {
				return nil, &engerrors.ActivityNotFoundError{NodeID: rec.ActivityNodeID}
			}
			wi.Activity = activity
		}
		w.Scheduler.Schedule(wi)
	}

	return w, nil
}

// reparentRegister rebinds aec's register to be a child of parent's
// register by repointing its parent link, so the locally-declared blocks
// already restored onto it stay in place. Every AEC keeps its own register
// object, which keeps lexical scoping correct without requiring Apply to
// relink registers in strict parent-before-child order.
func reparentRegister(aec, parent *AEC) {
	aec.Register.parent = parent.Register
}
