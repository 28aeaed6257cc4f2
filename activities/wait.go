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

// TypeWait is the registered type name for the Wait activity.
const TypeWait = "engine.wait"

// Wait creates a named bookmark on first entry and suspends. On
// resumption (the engine schedules its AEC as an ExistingAEC work item
// once a bookmark has been matched by the Runner), the bookmark is still
// present on aec.Bookmarks for this call — the pipeline only burns it
// after Execute returns — so Wait writes the resumption payload to its
// output and completes.
type Wait struct{}

// CanExecute requires a non-empty bookmark name.
func (Wait) CanExecute(a *engine.Activity) bool {
	name, _ := a.Inputs["name"].(string)
	return a.Type == TypeWait && name != ""
}

// Execute creates the bookmark on first entry; on the resumed call it
// completes with the bookmark payload.
func (Wait) Execute(_ context.Context, aec *engine.AEC) error {
	name, _ := aec.Activity.Inputs["name"].(string)
	if name == "" {
		return fmt.Errorf("activities: Wait requires a non-empty name input")
	}

	if len(aec.Bookmarks) == 0 {
		aec.CreateBookmark(name, nil, engine.BookmarkOptions{AutoBurn: true})
		return nil
	}

	aec.SetOutput("payload", aec.Input["payload"])
	aec.Complete("resumed")
	return nil
}

// DescribeMetadata describes this implementation for diagnostics.
func (Wait) DescribeMetadata() string {
	return "Wait: suspends on a named bookmark until externally resumed"
}
