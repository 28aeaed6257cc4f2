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

import "time"

// ActivityStatus is the lifecycle state of an Activity Execution Context.
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "Pending"
	ActivityRunning   ActivityStatus = "Running"
	ActivityCompleted ActivityStatus = "Completed"
	ActivityFaulted   ActivityStatus = "Faulted"
	ActivityCancelled ActivityStatus = "Cancelled"
)

// AEC is the runtime state for one in-flight activity execution. The AEC
// forest is represented as a flat table on the owning WEC keyed by Id, with
// parent references by Id rather than in-memory back-pointers, so the
// forest has no ownership cycles and serializes trivially (see DESIGN.md).
type AEC struct {
	ID       string
	Activity *Activity
	ParentID string // empty for the root AEC
	wec      *WEC   // back-reference to the owning WEC, not persisted

	Status ActivityStatus

	Properties map[string]any
	Input      map[string]any
	Output     map[string]any

	Register *MemoryRegister

	Bookmarks []*Bookmark
	Tag       string

	StartedAt   time.Time
	CompletedAt time.Time

	// IsExecuting is true while the activity owns uncompleted work: it has
	// not completed/faulted/cancelled, or it has unsatisfied bookmarks with
	// AutoBurn=false, or it has pending children.
	IsExecuting bool

	ChildIDs []string

	// ChildrenScheduled marks whether the engine has already invoked this
	// AEC's Composite.ScheduleChildren once; re-entrant resumption (a
	// child completing) must not schedule the initial children again.
	ChildrenScheduled bool
}

// InstanceID returns the workflow instance ID of the owning WEC, for
// correlation in logs and traces emitted by pipeline middleware.
func (a *AEC) InstanceID() string {
	return a.wec.InstanceID
}

// Parent returns this AEC's parent, or nil for the root AEC.
func (a *AEC) Parent() *AEC {
	if a.ParentID == "" {
		return nil
	}
	p, _ := a.wec.AEC(a.ParentID)
	return p
}

// Children returns the live child AECs, in creation order.
func (a *AEC) Children() []*AEC {
	out := make([]*AEC, 0, len(a.ChildIDs))
	for _, id := range a.ChildIDs {
		if c, ok := a.wec.AEC(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// SetOutput writes a named output value.
func (a *AEC) SetOutput(name string, value any) {
	if a.Output == nil {
		a.Output = make(map[string]any)
	}
	a.Output[name] = value
}

// GetVariable resolves a variable by BlockId through this AEC's register,
// walking toward the root register on a local miss.
func (a *AEC) GetVariable(blockID string) (any, bool) {
	return a.Register.Get(blockID)
}

// SetVariable writes a variable by BlockId through this AEC's register.
func (a *AEC) SetVariable(blockID string, value any) error {
	return a.Register.Set(blockID, value)
}

// CreateBookmark registers a new bookmark owned by this AEC and appends it
// to the owning WEC's bookmark set.
func (a *AEC) CreateBookmark(name string, payload any, opts BookmarkOptions) *Bookmark {
	b := &Bookmark{
		ID:                 a.wec.nextBookmarkID(),
		ActivityNodeID:     a.Activity.NodeID,
		ActivityInstanceID: a.ID,
		Name:               name,
		Hash:               HashBookmark(name, payload),
		Payload:            payload,
		CallbackMethodName: opts.CallbackMethodName,
		AutoBurn:           opts.AutoBurn,
		AutoComplete:       opts.AutoComplete,
		CreatedAt: a.wec.now(),
	}
	a.Bookmarks = append(a.Bookmarks, b)
	a.wec.Bookmarks = append(a.wec.Bookmarks, b)
	a.IsExecuting = true
	return b
}

// burnBookmark removes a bookmark from both this AEC and the WEC's
// bookmark set. Called by the pipeline once the resumed activity's Execute
// call has observed and consumed the matched bookmark, never before — the
// activity's own first-entry-vs-resumed check relies on the bookmark still
// being present on the resuming call (see activities.Wait).
func (a *AEC) burnBookmark(id string) {
	a.Bookmarks = removeBookmark(a.Bookmarks, id)
	a.wec.Bookmarks = removeBookmark(a.wec.Bookmarks, id)
}

func removeBookmark(list []*Bookmark, id string) []*Bookmark {
	out := list[:0]
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// ScheduleChild enqueues a fresh start of a child activity under this AEC.
// Composite activities call this from ScheduleChildren; prepend gives the
// child stack-like precedence over sibling work scheduled earlier by
// ancestors at the same depth.
func (a *AEC) ScheduleChild(activity *Activity, prepend bool) {
	a.wec.Scheduler.ScheduleActivity(activity, a, prepend)
	a.IsExecuting = true
}

// Complete marks the AEC Completed, journals the transition with outcome,
// reschedules a still-Running parent, and drops IsExecuting unless
// unsatisfied bookmarks with AutoBurn=false retain it.
func (a *AEC) Complete(outcome string) {
	a.Status = ActivityCompleted
	a.CompletedAt = a.wec.now()
	a.wec.journal("ActivityCompleted", a.ID, outcome)

	retained := false
	for _, b := range a.Bookmarks {
		if !b.AutoBurn {
			retained = true
			break
		}
	}
	a.IsExecuting = retained

	if parent, ok := a.wec.AEC(a.ParentID); ok {
		a.wec.onChildCompleted(parent, a, outcome)
	}
}

// Fault marks the AEC Faulted, records an Incident on the owning WEC, and
// propagates toward the root per the configured fault strategy.
func (a *AEC) Fault(err error) {
	a.Status = ActivityFaulted
	a.CompletedAt = a.wec.now()
	a.IsExecuting = false
	inc := Incident{
		ActivityID:   a.Activity.ID,
		AECID:        a.ID,
		Message:      err.Error(),
		OccurredAt:   a.wec.now(),
	}
	a.wec.Incidents = append(a.wec.Incidents, inc)
	a.wec.journal("ActivityFaulted", a.ID, err.Error())
	a.wec.onChildFaulted(a, err)
}

// Cancel marks the AEC Cancelled without further scheduling.
func (a *AEC) Cancel() {
	a.Status = ActivityCancelled
	a.CompletedAt = a.wec.now()
	a.IsExecuting = false
	a.wec.journal("ActivityCancelled", a.ID, "")
}
