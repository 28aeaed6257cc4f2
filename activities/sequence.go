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

// Package activities ships the engine's built-in, generic activity
// vocabulary: Sequence, Parallel, SetVariable, Wait, Throw and If. These
// are ordinary activities against engine.Executable/engine.Composite, with
// no special engine privilege, so the scenarios in spec.md §8 and the
// round-trip/persistence tests run without an external activity library.
package activities

import (
	"context"

	"github.com/nexusflow/engine"
)

// TypeSequence is the registered type name for the Sequence activity.
const TypeSequence = "engine.sequence"

// Sequence runs its children in declaration order, scheduling the next
// child only once the previous one has completed.
type Sequence struct{}

// CanExecute always accepts nodes of type TypeSequence.
func (Sequence) CanExecute(a *engine.Activity) bool { return a.Type == TypeSequence }

// Execute is a no-op on first entry; on re-entrant resumption (a child
// completed) it either advances to the next pending child or completes
// itself once every child has run.
func (Sequence) Execute(_ context.Context, aec *engine.AEC) error {
	if !aec.ChildrenScheduled {
		return nil
	}
	next := nextPendingChild(aec)
	if next == nil {
		aec.Complete("done")
		return nil
	}
	aec.ScheduleChild(next, false)
	return nil
}

// ScheduleChildren schedules only the first child; Execute schedules each
// subsequent one as its predecessor completes.
func (Sequence) ScheduleChildren(aec *engine.AEC) error {
	if len(aec.Activity.Children) == 0 {
		aec.Complete("done")
		return nil
	}
	aec.ScheduleChild(aec.Activity.Children[0], false)
	return nil
}

// DescribeMetadata describes this implementation for diagnostics.
func (Sequence) DescribeMetadata() string {
	return "Sequence: runs children in order, completes once all have run"
}

// nextPendingChild returns the first child activity of aec.Activity that
// does not yet have a live AEC under aec, or nil if every child has been
// started.
func nextPendingChild(aec *engine.AEC) *engine.Activity {
	started := make(map[string]bool, len(aec.ChildIDs))
	for _, child := range aec.Children() {
		started[child.Activity.ID] = true
	}
	for _, child := range aec.Activity.Children {
		if !started[child.ID] {
			return child
		}
	}
	return nil
}

// allChildrenDone reports whether every live child AEC under aec has
// reached a terminal status.
func allChildrenDone(aec *engine.AEC) bool {
	for _, child := range aec.Children() {
		switch child.Status {
		case engine.ActivityCompleted, engine.ActivityFaulted, engine.ActivityCancelled:
		default:
			return false
		}
	}
	return true
}
