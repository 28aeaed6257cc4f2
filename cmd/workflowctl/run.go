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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nexusflow/engine"
	"github.com/nexusflow/engine/activities"
	"github.com/nexusflow/engine/idgen"
	"github.com/nexusflow/engine/internal/log"
	"github.com/nexusflow/engine/store"
	"github.com/nexusflow/engine/telemetry"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func defaultRegistry() *engine.Registry {
	r := engine.NewRegistry()
	r.Register(activities.TypeSequence, activities.Sequence{})
	r.Register(activities.TypeParallel, activities.Parallel{})
	r.Register(activities.TypeSetVariable, activities.SetVariable{})
	r.Register(activities.TypeWait, activities.Wait{})
	r.Register(activities.TypeThrow, activities.Throw{})
	r.Register(activities.TypeIf, activities.NewIf())
	return r
}

// activityLogMiddleware adapts an ActivityLogger into an
// engine.ActivityMiddleware, logging every activity invocation's start,
// duration and outcome (spec.md §4.4's per-activity stage).
func activityLogMiddleware(al *log.ActivityLogger) engine.ActivityMiddleware {
	return func(next engine.ActivityHandler) engine.ActivityHandler {
		return func(ctx context.Context, aec *engine.AEC) error {
			start := &log.ActivityStart{
				InstanceID:   aec.InstanceID(),
				AECID:        aec.ID,
				NodeID:       aec.Activity.NodeID,
				ActivityType: aec.Activity.Type,
			}
			return al.Wrap(start, func() error {
				return next(ctx, aec)
			})
		}
	}
}

// buildRunner assembles a Runner wired with structured logging and, when
// tracing can be initialized, OpenTelemetry/Prometheus instrumentation
// around each pipeline turn. Falls back to telemetry.NoopProvider if the
// OTel SDK cannot be started (e.g. no collector configured).
func buildRunner(logger *slog.Logger, st engine.StateStore) (*engine.Runner, func(context.Context) error) {
	provider, err := telemetry.NewOTelProvider("workflowctl", "dev")
	shutdown := func(context.Context) error { return nil }
	var tp telemetry.Provider = telemetry.NoopProvider{}
	if err == nil {
		tp = provider
		shutdown = provider.Shutdown
	}

	al := log.NewActivityLogger(logger)

	runner := engine.NewRunner(defaultRegistry(),
		engine.WithIDGenerator(idgen.NewUUIDGenerator()),
		engine.WithStateStore(st),
		engine.WithLogger(logger),
		engine.WithMiddleware(telemetry.Middleware(tp)),
		engine.WithActivityMiddleware(activityLogMiddleware(al)),
	)
	return runner, shutdown
}

func newRunCommand(logger *slog.Logger) *cobra.Command {
	var (
		dbPath      string
		instanceID  string
		correlation string
	)

	cmd := &cobra.Command{
		Use:   "run <graph.yaml>",
		Short: "Start a fresh run of a workflow graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, name, err := loadGraph(args[0])
			if err != nil {
				return err
			}

			st, err := store.OpenSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runner, shutdown := buildRunner(logger, st)
			defer shutdown(context.Background())

			result, err := runner.Run(context.Background(), graph, nil, engine.RunWorkflowOptions{
				WorkflowInstanceID: instanceID,
				CorrelationID:      correlation,
			})
			if err != nil {
				return err
			}

			printResult(name, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "workflowctl.db", "path to the SQLite state store")
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "workflow instance id (generated if empty)")
	cmd.Flags().StringVar(&correlation, "correlation-id", "", "correlation id to attach")
	return cmd
}

func newResumeCommand(logger *slog.Logger) *cobra.Command {
	var (
		dbPath     string
		bookmarkID string
	)

	cmd := &cobra.Command{
		Use:   "resume <graph.yaml> <instance-id>",
		Short: "Resume a suspended workflow instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, name, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			instanceID := args[1]

			st, err := store.OpenSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			state, err := st.Load(context.Background(), instanceID)
			if err != nil {
				return err
			}

			runner, shutdown := buildRunner(logger, st)
			defer shutdown(context.Background())

			result, err := runner.Run(context.Background(), graph, state, engine.RunWorkflowOptions{
				BookmarkID: bookmarkID,
			})
			if err != nil {
				return err
			}

			printResult(name, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "workflowctl.db", "path to the SQLite state store")
	cmd.Flags().StringVar(&bookmarkID, "bookmark-id", "", "bookmark to resume from")
	return cmd
}

// newMetricsCommand starts a short-lived HTTP server exposing the engine's
// Prometheus metrics, for operators wiring workflowctl into a scrape
// pipeline without standing up a full host process.
func newMetricsCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics for engine runs recorded by this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := telemetry.NewOTelProvider("workflowctl", "dev")
			if err != nil {
				return err
			}
			defer provider.Shutdown(context.Background())

			mux := http.NewServeMux()
			mux.Handle("/metrics", provider.MetricsHandler())
			fmt.Println(labelStyle.Render("serving metrics on "), addr+"/metrics")
			return http.ListenAndServe(addr, mux)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for the metrics endpoint")
	return cmd
}

func printResult(name string, result *engine.RunResult) {
	fmt.Println(labelStyle.Render("workflow: ") + name)
	fmt.Println(labelStyle.Render("instance: ") + result.WorkflowState.InstanceID)
	fmt.Println(labelStyle.Render("status:   ") + statusStyle.Render(string(result.WorkflowState.Status)+"/"+string(result.WorkflowState.SubStatus)))
	fmt.Println(labelStyle.Render("bookmarks:"), len(result.WorkflowState.Bookmarks))
	fmt.Println(labelStyle.Render("incidents:"), len(result.WorkflowState.Incidents))
}
