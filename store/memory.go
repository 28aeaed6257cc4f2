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

// Package store ships reference engine.StateStore adapters: an in-process
// MemoryStore for tests and the demonstration CLI, and a SQLiteStore
// backed by modernc.org/sqlite for a real persisted round-trip.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/nexusflow/engine"
	engerrors "github.com/nexusflow/engine/pkg/errors"
)

// MemoryStore is a mutex-guarded in-process engine.StateStore, grounded on
// the teacher's pkg/workflow.MemoryStore: copy-on-write semantics so a
// caller mutating a returned *engine.WorkflowState cannot corrupt stored
// state. Load copies the state's top-level maps and slices; values nested
// inside them (such as *Bookmark entries and each AEC record's own maps)
// are shared with the stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*engine.WorkflowState
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*engine.WorkflowState)}
}

// Save persists (or overwrites) state keyed by its InstanceId.
func (s *MemoryStore) Save(_ context.Context, state *engine.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[state.InstanceID] = &cp
	return nil
}

// Load retrieves a persisted state by InstanceId.
func (s *MemoryStore) Load(_ context.Context, instanceID string) (*engine.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[instanceID]
	if !ok {
		return nil, &engerrors.NotFoundError{Resource: "workflow instance", ID: instanceID}
	}
	cp := *state
	cp.Input = maps.Clone(state.Input)
	cp.Output = maps.Clone(state.Output)
	cp.Properties = maps.Clone(state.Properties)
	cp.Variables = maps.Clone(state.Variables)
	cp.ActivityExecutionContexts = slices.Clone(state.ActivityExecutionContexts)
	cp.Bookmarks = slices.Clone(state.Bookmarks)
	cp.Incidents = slices.Clone(state.Incidents)
	cp.Scheduler = slices.Clone(state.Scheduler)
	cp.ExecutionLog = slices.Clone(state.ExecutionLog)
	return &cp, nil
}

// Delete removes a persisted state.
func (s *MemoryStore) Delete(_ context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, instanceID)
	return nil
}

// List returns every persisted instance ID, for diagnostics and the demo
// CLI.
func (s *MemoryStore) List(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}
