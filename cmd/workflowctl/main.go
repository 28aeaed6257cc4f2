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

// Command workflowctl is a thin demonstration CLI exercising the engine
// end-to-end: load a YAML activity tree, run it against a SQLite-backed
// state store, and print the resulting status. It is not a production
// host — spec.md §1 treats hosting as an external concern.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexusflow/engine/internal/log"
	engerrors "github.com/nexusflow/engine/pkg/errors"
)

func main() {
	logger := log.New(log.FromEnv())

	root := &cobra.Command{
		Use:   "workflowctl",
		Short: "Drive the workflow execution engine from a YAML activity tree",
	}
	root.AddCommand(newRunCommand(logger))
	root.AddCommand(newResumeCommand(logger))
	root.AddCommand(newMetricsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(reportAndExitCode(err))
	}
}

// reportAndExitCode prints err to stderr, favoring a UserVisibleError's
// plain-language message and suggestion over its raw Error() string, and
// picks an exit code an operator's retry loop can branch on: 2 when the
// error classifies itself as retryable, 1 otherwise.
func reportAndExitCode(err error) int {
	uv, _ := err.(engerrors.UserVisibleError)
	if uv != nil && uv.IsUserVisible() {
		fmt.Fprintln(os.Stderr, uv.UserMessage())
		if s := uv.Suggestion(); s != "" {
			fmt.Fprintln(os.Stderr, "suggestion:", s)
		}
	} else {
		fmt.Fprintln(os.Stderr, err)
	}

	if c, ok := err.(engerrors.ErrorClassifier); ok && c.IsRetryable() {
		return 2
	}
	return 1
}
