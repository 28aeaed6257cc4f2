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

// Package engine implements the workflow execution engine: the scheduler,
// state machine, pipeline, persistence boundary and variable system that
// drive a workflow graph to completion or suspension.
package engine

import (
	"context"
	"fmt"
)

// Activity is a definition-time node in a workflow graph. Activities are
// immutable during execution; all mutable state lives on the Activity
// Execution Context the engine creates for each run.
type Activity struct {
	// ID is a stable identifier, unique within the graph.
	ID string

	// Type is the registered TypeName used to dispatch to an
	// Executable implementation.
	Type string

	// NodeID is the path-from-root address of this activity within the
	// graph (e.g. "0/1/0"). Assigned when the graph is built.
	NodeID string

	// Tag is an optional author-supplied label, not required to be unique.
	Tag string

	// Inputs and Outputs declare the activity's ports. The engine does not
	// interpret their contents; activity implementations do.
	Inputs  map[string]any
	Outputs map[string]any

	// Children are child activities in declaration order. Composite
	// activities (Sequence, Parallel, If, ...) schedule some or all of
	// these via ScheduleChildren.
	Children []*Activity
}

// Executable is the capability set every activity implementation must
// satisfy for the engine to interoperate with it. Dispatch is by Activity.Type
// looked up in a Registry, never by Go type assertion or inheritance.
type Executable interface {
	// CanExecute reports whether this implementation is able to run the
	// given activity (e.g. arity or input shape checks beyond Type routing).
	CanExecute(a *Activity) bool

	// Execute runs the activity against its AEC. Implementations complete,
	// fault, or suspend the AEC using the AEC's own operations. A non-nil
	// returned error is treated as a fault too: the pipeline passes it to
	// AEC.Fault, which records it as an Incident.
	Execute(ctx context.Context, aec *AEC) error

	// DescribeMetadata returns a human-readable description, used for
	// diagnostics and the demonstration CLI.
	DescribeMetadata() string
}

// Composite is the extra capability composite activities implement, called
// by the engine once the activity's Execute has run, so composites decide
// which children to schedule and in what order.
type Composite interface {
	Executable

	// ScheduleChildren is invoked by the engine immediately after Execute
	// returns without the AEC having completed or faulted, giving the
	// activity a chance to enqueue its children.
	ScheduleChildren(aec *AEC) error
}

// Registry resolves an Activity.Type to its Executable implementation.
type Registry struct {
	entries map[string]Executable
}

// NewRegistry returns an empty activity type registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Executable)}
}

// Register binds a TypeName to an Executable implementation. Registering
// the same type twice replaces the previous binding.
func (r *Registry) Register(typeName string, impl Executable) {
	r.entries[typeName] = impl
}

// Resolve looks up the Executable bound to an activity's Type.
func (r *Registry) Resolve(a *Activity) (Executable, error) {
	impl, ok := r.entries[a.Type]
	if !ok {
		return nil, fmt.Errorf("engine: no activity implementation registered for type %q", a.Type)
	}
	if !impl.CanExecute(a) {
		return nil, fmt.Errorf("engine: activity implementation for type %q refused node %q", a.Type, a.ID)
	}
	return impl, nil
}

// WorkflowGraph is the materialized form of a workflow: the root activity
// plus indices allowing lookup by Id, NodeId, Type and Tag.
type WorkflowGraph struct {
	Root *Activity

	byID   map[string]*Activity
	byNode map[string]*Activity
	byType map[string][]*Activity
	byTag  map[string][]*Activity
}

// NewWorkflowGraph builds a WorkflowGraph from a root activity, assigning
// NodeIDs by depth-first traversal and building the lookup indices.
func NewWorkflowGraph(root *Activity) *WorkflowGraph {
	g := &WorkflowGraph{
		Root:   root,
		byID:   make(map[string]*Activity),
		byNode: make(map[string]*Activity),
		byType: make(map[string][]*Activity),
		byTag:  make(map[string][]*Activity),
	}
	if root != nil {
		g.index(root, "0")
	}
	return g
}

func (g *WorkflowGraph) index(a *Activity, nodeID string) {
	a.NodeID = nodeID
	g.byID[a.ID] = a
	g.byNode[nodeID] = a
	g.byType[a.Type] = append(g.byType[a.Type], a)
	if a.Tag != "" {
		g.byTag[a.Tag] = append(g.byTag[a.Tag], a)
	}
	for i, child := range a.Children {
		g.index(child, fmt.Sprintf("%s/%d", nodeID, i))
	}
}

// ByID looks up an activity by its stable Id.
func (g *WorkflowGraph) ByID(id string) (*Activity, bool) {
	a, ok := g.byID[id]
	return a, ok
}

// ByNodeID looks up an activity by its root-path address.
func (g *WorkflowGraph) ByNodeID(nodeID string) (*Activity, bool) {
	a, ok := g.byNode[nodeID]
	return a, ok
}

// ByType returns every activity in the graph with the given Type, in
// traversal order.
func (g *WorkflowGraph) ByType(typeName string) []*Activity {
	return g.byType[typeName]
}

// ByTag returns every activity in the graph carrying the given Tag.
func (g *WorkflowGraph) ByTag(tag string) []*Activity {
	return g.byTag[tag]
}
