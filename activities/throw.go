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
	"errors"

	"github.com/nexusflow/engine"
)

// TypeThrow is the registered type name for the Throw activity.
const TypeThrow = "engine.throw"

// Throw faults synchronously with a supplied message, exercising the
// ActivityFault incident path (spec.md §7).
type Throw struct{}

// CanExecute always accepts nodes of type TypeThrow.
func (Throw) CanExecute(a *engine.Activity) bool { return a.Type == TypeThrow }

// Execute returns an error built from Activity.Inputs["message"], which
// the pipeline traps into aec.Fault.
func (Throw) Execute(_ context.Context, aec *engine.AEC) error {
	message, _ := aec.Activity.Inputs["message"].(string)
	if message == "" {
		message = "throw"
	}
	return errors.New(message)
}

// DescribeMetadata describes this implementation for diagnostics.
func (Throw) DescribeMetadata() string {
	return "Throw: faults synchronously with a supplied message"
}
