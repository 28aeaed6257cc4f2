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

package log

import (
	"log/slog"
	"time"
)

// ActivityStart describes one activity invocation for logging purposes.
type ActivityStart struct {
	// InstanceID is the owning workflow instance.
	InstanceID string

	// AECID is the activity execution context's identifier.
	AECID string

	// NodeID is the activity's position in the graph, e.g. "0/1".
	NodeID string

	// ActivityType names the registered activity implementation.
	ActivityType string
}

// ActivityResult describes the outcome of one activity invocation.
type ActivityResult struct {
	// Success indicates the activity completed without faulting.
	Success bool

	// Error is the fault message, if any.
	Error string

	// DurationMs is how long Execute took to return.
	DurationMs int64
}

// LogActivityStart logs an activity about to execute.
func LogActivityStart(logger *slog.Logger, a *ActivityStart) {
	logger.Info("activity executing",
		EventKey, "activity_executing",
		RunIDKey, a.InstanceID,
		StepIDKey, a.AECID,
		"node_id", a.NodeID,
		"activity_type", a.ActivityType,
	)
}

// LogActivityEnd logs an activity's completion.
func LogActivityEnd(logger *slog.Logger, a *ActivityStart, resp *ActivityResult) {
	attrs := []any{
		EventKey, "activity_executed",
		RunIDKey, a.InstanceID,
		StepIDKey, a.AECID,
		"node_id", a.NodeID,
		"activity_type", a.ActivityType,
		DurationKey, resp.DurationMs,
		"success", resp.Success,
	}
	if resp.Error != "" {
		attrs = append(attrs, "error", resp.Error)
	}

	level := slog.LevelInfo
	message := "activity executed"
	if !resp.Success {
		level = slog.LevelWarn
		message = "activity faulted"
	}
	logger.Log(nil, level, message, attrs...)
}

// ActivityLogger times and logs a single activity invocation. It is
// adapted from the host's generic RPC request/response logger into the
// per-activity shape the Execution Pipeline's activity middleware chain
// needs (spec.md §4.4's per-activity stage).
type ActivityLogger struct {
	logger *slog.Logger
}

// NewActivityLogger builds an ActivityLogger writing through logger.
func NewActivityLogger(logger *slog.Logger) *ActivityLogger {
	return &ActivityLogger{logger: logger}
}

// Wrap times handler, logging its start and outcome under a.
func (l *ActivityLogger) Wrap(a *ActivityStart, handler func() error) error {
	start := time.Now()
	LogActivityStart(l.logger, a)

	err := handler()

	resp := &ActivityResult{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	LogActivityEnd(l.logger, a, resp)

	return err
}
