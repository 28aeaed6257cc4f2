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
)

// TypeSetVariable is the registered type name for the SetVariable activity.
const TypeSetVariable = "engine.setVariable"

// SetVariable writes a literal value from Activity.Inputs["value"] into
// the variable named by Activity.Inputs["blockId"] and completes
// synchronously.
type SetVariable struct{}

// CanExecute requires a non-empty blockId input.
func (SetVariable) CanExecute(a *engine.Activity) bool {
	blockID, _ := a.Inputs["blockId"].(string)
	return a.Type == TypeSetVariable && blockID != ""
}

// Execute sets the variable and completes.
func (SetVariable) Execute(_ context.Context, aec *engine.AEC) error {
	blockID, _ := aec.Activity.Inputs["blockId"].(string)
	if blockID == "" {
		return fmt.Errorf("activities: SetVariable requires a non-empty blockId input")
	}
	value := aec.Activity.Inputs["value"]
	if err := aec.SetVariable(blockID, value); err != nil {
		return err
	}
	aec.SetOutput("blockId", blockID)
	aec.Complete("done")
	return nil
}

// DescribeMetadata describes this implementation for diagnostics.
func (SetVariable) DescribeMetadata() string {
	return "SetVariable: writes a literal value into a named variable"
}
