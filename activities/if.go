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
	"fmt"

	"github.com/nexusflow/engine"
	"github.com/nexusflow/engine/expression"
)

// TypeIf is the registered type name for the If activity.
const TypeIf = "engine.if"

// If evaluates Activity.Inputs["condition"] against the AEC's accessible
// variables and schedules either the child tagged "then" or the child
// tagged "else" (either of which may be absent).
type If struct {
	Evaluator *expression.Evaluator
}

// NewIf returns an If activity implementation with its own expression
// cache.
func NewIf() *If {
	return &If{Evaluator: expression.New()}
}

// CanExecute requires a condition input.
func (i *If) CanExecute(a *engine.Activity) bool {
	_, ok := a.Inputs["condition"].(string)
	return a.Type == TypeIf && ok
}

// Execute is a no-op on first entry (scheduling happens in
// ScheduleChildren); on re-entrant resumption it completes once its
// chosen branch has finished.
func (i *If) Execute(_ context.Context, aec *engine.AEC) error {
	if !aec.ChildrenScheduled {
		return nil
	}
	if allChildrenDone(aec) {
		aec.Complete("done")
	}
	return nil
}

// ScheduleChildren evaluates the condition and schedules the matching
// branch, tagged "then"/"else" on the activity definition.
func (i *If) ScheduleChildren(aec *engine.AEC) error {
	condition, _ := aec.Activity.Inputs["condition"].(string)
	vars := accessibleVariables(aec)

	ok, err := i.Evaluator.Evaluate(condition, vars)
	if err != nil {
		return fmt.Errorf("activities: If condition: %w", err)
	}

	branch := branchByTag(aec.Activity, "else")
	if ok {
		branch = branchByTag(aec.Activity, "then")
	}
	if branch == nil {
		aec.Complete("done")
		return nil
	}
	aec.ScheduleChild(branch, false)
	return nil
}

// DescribeMetadata describes this implementation for diagnostics.
func (i *If) DescribeMetadata() string {
	return "If: evaluates a boolean expression and schedules the matching branch"
}

func branchByTag(a *engine.Activity, tag string) *engine.Activity {
	for _, c := range a.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// accessibleVariables renders the root-to-node lexical chain of aec's
// register as a flat map, per SPEC_FULL.md §4.9, then overlays aec's own
// declared inputs so a condition can also reference its activity's
// immediate parameters.
func accessibleVariables(aec *engine.AEC) map[string]any {
	vars := aec.Register.Accessible()
	for k, v := range aec.Input {
		vars[k] = v
	}
	return vars
}
