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
	"fmt"
	"time"
)

// WorkflowStatus is the coarse-grained lifecycle status of a WEC.
type WorkflowStatus string

const (
	WorkflowRunning  WorkflowStatus = "Running"
	WorkflowFinished WorkflowStatus = "Finished"
)

// WorkflowSubStatus refines WorkflowStatus with the detail callers need to
// decide what to do next.
type WorkflowSubStatus string

const (
	SubStatusPending   WorkflowSubStatus = "Pending"
	SubStatusExecuting WorkflowSubStatus = "Executing"
	SubStatusSuspended WorkflowSubStatus = "Suspended"
	SubStatusFinished  WorkflowSubStatus = "Finished"
	SubStatusFaulted   WorkflowSubStatus = "Faulted"
	SubStatusCancelled WorkflowSubStatus = "Cancelled"
)

// FaultStrategy controls how an AEC fault propagates.
type FaultStrategy int

const (
	// FaultPropagateToRoot faults parent AECs up to the root, ending the
	// workflow as Faulted. This is the default per spec.md §7.
	FaultPropagateToRoot FaultStrategy = iota
	// FaultContain keeps the workflow running; the fault is recorded as an
	// Incident but does not fault any ancestor AEC.
	FaultContain
)

// Incident is a recorded fault attached to the WEC.
type Incident struct {
	ActivityID string
	AECID      string
	Message    string
	OccurredAt time.Time
}

// LogEntry is one append-only journal record of a state transition.
type LogEntry struct {
	At      time.Time
	Kind    string
	AECID   string
	Detail  string
}

// Clock abstracts time so tests can control CreatedAt/StartedAt ordering
// deterministically; defaults to time.Now.
type Clock func() time.Time

// WEC is the runtime state for one in-flight workflow instance: the AEC
// tree (held as a flat table keyed by Id, per DESIGN.md), the scheduler
// queue, bookmarks, incidents and workflow status.
type WEC struct {
	InstanceID               string
	CorrelationID             string
	ParentWorkflowInstanceID  string
	TenantID                  string

	Status    WorkflowStatus
	SubStatus WorkflowSubStatus

	Input      map[string]any
	Output     map[string]any
	Properties map[string]any

	Bookmarks []*Bookmark
	Incidents []Incident

	Scheduler      *Scheduler
	MemoryRegister *MemoryRegister
	ExecutionLog   []LogEntry

	Graph *WorkflowGraph

	FaultStrategy FaultStrategy

	aecs map[string]*AEC

	idgen func() string
	clock Clock
	seq   int
}

// NewWEC constructs a fresh WEC for a workflow graph. idgen mints AEC and
// bookmark Ids; clock defaults to time.Now when nil.
func NewWEC(instanceID string, graph *WorkflowGraph, idgen func() string, clock Clock) *WEC {
	if clock == nil {
		clock = time.Now
	}
	drivers := NewDriverRegistry()
	w := &WEC{
		InstanceID:     instanceID,
		Status:         WorkflowRunning,
		SubStatus:      SubStatusPending,
		Input:          make(map[string]any),
		Output:         make(map[string]any),
		Properties:     make(map[string]any),
		Scheduler:      NewScheduler(),
		MemoryRegister: NewRootRegister(instanceID, drivers),
		Graph:          graph,
		FaultStrategy:  FaultPropagateToRoot,
		aecs:           make(map[string]*AEC),
		idgen:          idgen,
		clock:          clock,
	}
	return w
}

func (w *WEC) now() time.Time { return w.clock() }

func (w *WEC) nextBookmarkID() string {
	if w.idgen != nil {
		return w.idgen()
	}
	w.seq++
	return fmt.Sprintf("bm-%d", w.seq)
}

func (w *WEC) nextAECID() string {
	if w.idgen != nil {
		return w.idgen()
	}
	w.seq++
	return fmt.Sprintf("aec-%d", w.seq)
}

func (w *WEC) journal(kind, aecID, detail string) {
	w.ExecutionLog = append(w.ExecutionLog, LogEntry{At: w.now(), Kind: kind, AECID: aecID, Detail: detail})
}

// AEC looks up a live AEC by Id.
func (w *WEC) AEC(id string) (*AEC, bool) {
	if id == "" {
		return nil, false
	}
	a, ok := w.aecs[id]
	return a, ok
}

// AECs returns every live AEC, in no particular order.
func (w *WEC) AECs() []*AEC {
	out := make([]*AEC, 0, len(w.aecs))
	for _, a := range w.aecs {
		out = append(out, a)
	}
	return out
}

// NewAEC creates and registers a new AEC for activity under owner (nil for
// the root AEC), with an explicit Id (used by the State Applicator to
// preserve persisted Ids) or, if id is empty, a freshly minted one.
func (w *WEC) NewAEC(activity *Activity, owner *AEC, id string) *AEC {
	if id == "" {
		id = w.nextAECID()
	}
	reg := w.MemoryRegister
	parentID := ""
	if owner != nil {
		reg = owner.Register.CreateChild()
		parentID = owner.ID
	} else {
		reg = w.MemoryRegister.CreateChild()
	}
	a := &AEC{
		ID:       id,
		Activity: activity,
		ParentID: parentID,
		wec:      w,
		Status:   ActivityPending,
		Register: reg,
	}
	w.aecs[id] = a
	if owner != nil {
		owner.ChildIDs = append(owner.ChildIDs, id)
	}
	return a
}

// RemoveAEC drops an AEC from the live table. Eligible for compaction once
// it has no bookmarks and no pending children, per spec.md §4.2.
func (w *WEC) RemoveAEC(id string) {
	delete(w.aecs, id)
}

// Compact removes completed/faulted/cancelled AECs with no bookmarks and
// no live children, as permitted (not required) by spec.md §4.2.
func (w *WEC) Compact() {
	for id, a := range w.aecs {
		if a.IsExecuting {
			continue
		}
		if a.Status == ActivityPending || a.Status == ActivityRunning {
			continue
		}
		if len(a.Bookmarks) > 0 {
			continue
		}
		if len(a.Children()) > 0 {
			continue
		}
		delete(w.aecs, id)
	}
}

// onChildCompleted handles a child AEC's completion by scheduling its
// parent as a re-entrant ExistingAEC resumption (spec.md §3's "AEC may
// become Running again via explicit resumption ... for composite
// activities", and §5 suspension point (b): "schedules children and
// returns without completing — it resumes when children complete").
// The parent's Composite.Execute inspects which children are done and
// either completes itself or waits for more; ScheduleChildren is not
// re-invoked here, since that capability only seeds the initial children.
func (w *WEC) onChildCompleted(parent *AEC, child *AEC, outcome string) {
	_ = child
	_ = outcome
	if parent.Status != ActivityRunning {
		return
	}
	w.Scheduler.Schedule(&WorkItem{Activity: parent.Activity, ExistingAEC: parent})
}

// onChildFaulted propagates a fault toward the root per w.FaultStrategy.
func (w *WEC) onChildFaulted(faulted *AEC, err error) {
	if w.FaultStrategy == FaultContain {
		return
	}
	for p := faulted.Parent(); p != nil; p = p.Parent() {
		p.Status = ActivityFaulted
		p.CompletedAt = w.now()
		p.IsExecuting = false
		w.journal("ActivityFaulted", p.ID, "propagated: "+err.Error())
	}
	w.SubStatus = SubStatusFaulted
}

// HasExecutingAEC reports whether any AEC in the forest is still
// IsExecuting, used by property 2 and the Runner's interrupted-run
// seeding path (§4.7 step 2d).
func (w *WEC) HasExecutingAEC() bool {
	for _, a := range w.aecs {
		if a.IsExecuting {
			return true
		}
	}
	return false
}

// ExecutingAECsByStartedAt returns every IsExecuting AEC sorted ascending
// by StartedAt, for the Runner's interrupted-run resumption order.
func (w *WEC) ExecutingAECsByStartedAt() []*AEC {
	var out []*AEC
	for _, a := range w.aecs {
		if a.IsExecuting {
			out = append(out, a)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.Before(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
