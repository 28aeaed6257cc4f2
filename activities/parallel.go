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

package activities

import (
	"context"

	"github.com/nexusflow/engine"
)

// TypeParallel is the registered type name for the Parallel (fork/join)
// activity.
const TypeParallel = "engine.parallel"

// Parallel schedules every child at once with prepend=true (so the forked
// children run before any sibling work queued earlier at the same depth —
// spec.md §4.3's stack-like composite semantics) and completes once every
// child has reached a terminal status.
type Parallel struct{}

// CanExecute always accepts nodes of type TypeParallel.
func (Parallel) CanExecute(a *engine.Activity) bool { return a.Type == TypeParallel }

// Execute is a no-op on first entry; on re-entrant resumption it checks
// whether every forked child is done and, if so, completes.
func (Parallel) Execute(_ context.Context, aec *engine.AEC) error {
	if !aec.ChildrenScheduled {
		return nil
	}
	if allChildrenDone(aec) {
		aec.Complete("done")
	}
	return nil
}

// ScheduleChildren forks every child at once, each with prepend=true.
func (Parallel) ScheduleChildren(aec *engine.AEC) error {
	if len(aec.Activity.Children) == 0 {
		aec.Complete("done")
		return nil
	}
	for _, child := range aec.Activity.Children {
		aec.ScheduleChild(child, true)
	}
	return nil
}

// DescribeMetadata describes this implementation for diagnostics.
func (Parallel) DescribeMetadata() string {
	return "Parallel: forks all children at once, joins once every child is done"
}
