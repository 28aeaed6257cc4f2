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

package engine

import "sync"

// BlockKind distinguishes a register entry declared by the workflow
// definition from one created at runtime by dynamic variable writes.
type BlockKind int

const (
	// BlockDeclared identifies a variable declared on the workflow
	// definition ahead of time.
	BlockDeclared BlockKind = iota
	// BlockDynamic identifies a variable created at runtime, e.g. via
	// RunWorkflowOptions.Variables or an activity's Set on an undeclared
	// block.
	BlockDynamic
)

// StorageDriver resolves a variable's value against an external key-value
// store keyed by (workflowInstanceId, blockId). The engine core does not
// implement drivers; it only looks them up in a DriverRegistry by name.
type StorageDriver interface {
	Get(workflowInstanceID, blockID string) (any, bool, error)
	Set(workflowInstanceID, blockID string, value any) error
}

// DriverRegistry resolves named storage drivers for storage-backed
// variables.
type DriverRegistry struct {
	mu      sync.RWMutex
	drivers map[string]StorageDriver
}

// NewDriverRegistry returns an empty storage driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]StorageDriver)}
}

// Register binds a driver name to an implementation.
func (r *DriverRegistry) Register(name string, d StorageDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = d
}

// Resolve looks up a driver by name.
func (r *DriverRegistry) Resolve(name string) (StorageDriver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

// MemoryBlock holds the current value and metadata for one variable
// binding within a MemoryRegister.
type MemoryBlock struct {
	BlockID    string
	Kind       BlockKind
	Value      any
	DriverName string // non-empty if this block delegates to a StorageDriver
}

// MemoryRegister is a lexically-scoped key-value register backing
// variables and parameters. Each AEC owns one; Get walks toward the root
// register on miss, Set binds in the nearest register that already
// declares the block, falling back to the caller's register for unknown
// (dynamic) blocks.
type MemoryRegister struct {
	mu       sync.RWMutex
	parent   *MemoryRegister
	blocks   map[string]*MemoryBlock
	drivers  *DriverRegistry
	instance string // workflow instance ID, used for storage-driven blocks
}

// NewRootRegister creates the root register for a workflow instance.
func NewRootRegister(instanceID string, drivers *DriverRegistry) *MemoryRegister {
	if drivers == nil {
		drivers = NewDriverRegistry()
	}
	return &MemoryRegister{
		blocks:   make(map[string]*MemoryBlock),
		drivers:  drivers,
		instance: instanceID,
	}
}

// CreateChild returns a new register whose parent is r, used when an AEC
// is created under an owner AEC.
func (r *MemoryRegister) CreateChild() *MemoryRegister {
	return &MemoryRegister{
		parent:   r,
		blocks:   make(map[string]*MemoryBlock),
		drivers:  r.drivers,
		instance: r.instance,
	}
}

// Declare registers a block identity in this register with the given
// kind, without assigning a value (the zero value is the block's current
// value until Set is called).
func (r *MemoryRegister) Declare(blockID string, kind BlockKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.blocks[blockID]; exists {
		return
	}
	r.blocks[blockID] = &MemoryBlock{BlockID: blockID, Kind: kind}
}

// DeclareDriven registers a block that delegates Get/Set to a named
// storage driver.
func (r *MemoryRegister) DeclareDriven(blockID, driverName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[blockID] = &MemoryBlock{BlockID: blockID, Kind: BlockDeclared, DriverName: driverName}
}

// findLocal returns the block defined directly on r, if any.
func (r *MemoryRegister) findLocal(blockID string) (*MemoryBlock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[blockID]
	return b, ok
}

// findOwning walks from r toward the root looking for the register that
// declares blockID, returning nil if none does.
func (r *MemoryRegister) findOwning(blockID string) *MemoryRegister {
	for reg := r; reg != nil; reg = reg.parent {
		if _, ok := reg.findLocal(blockID); ok {
			return reg
		}
	}
	return nil
}

// Get resolves blockID's value, recursing toward the root register on a
// local miss. The second return is false if no register in the lexical
// chain declares the block.
func (r *MemoryRegister) Get(blockID string) (any, bool) {
	owner := r.findOwning(blockID)
	if owner == nil {
		return nil, false
	}
	b, _ := owner.findLocal(blockID)
	if b.DriverName != "" {
		driver, ok := owner.drivers.Resolve(b.DriverName)
		if !ok {
			return nil, false
		}
		v, found, err := driver.Get(owner.instance, blockID)
		if err != nil || !found {
			return nil, false
		}
		return v, true
	}
	owner.mu.RLock()
	defer owner.mu.RUnlock()
	return b.Value, true
}

// Set writes blockID's value. It binds in the nearest register in the
// lexical chain that already declares the block; if none declares it,
// the binding is created on r itself as a dynamic variable.
func (r *MemoryRegister) Set(blockID string, value any) error {
	owner := r.findOwning(blockID)
	if owner == nil {
		r.mu.Lock()
		r.blocks[blockID] = &MemoryBlock{BlockID: blockID, Kind: BlockDynamic, Value: value}
		r.mu.Unlock()
		return nil
	}
	b, _ := owner.findLocal(blockID)
	if b.DriverName != "" {
		driver, ok := owner.drivers.Resolve(b.DriverName)
		if !ok {
			return nil
		}
		return driver.Set(owner.instance, blockID, value)
	}
	owner.mu.Lock()
	b.Value = value
	owner.mu.Unlock()
	return nil
}

// Accessible returns a flattened view of every variable visible from r —
// the root-to-node lexical chain expression evaluation resolves guard
// conditions against — collecting each distinct BlockId once and
// resolving its value through Get, so a nearer declaration correctly
// shadows a same-named one further toward the root and storage-driven
// blocks dereference the same way activity code sees them.
func (r *MemoryRegister) Accessible() map[string]any {
	seen := make(map[string]struct{})
	out := make(map[string]any)
	for reg := r; reg != nil; reg = reg.parent {
		reg.mu.RLock()
		ids := make([]string, 0, len(reg.blocks))
		for id := range reg.blocks {
			ids = append(ids, id)
		}
		reg.mu.RUnlock()
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if v, ok := r.Get(id); ok {
				out[id] = v
			}
		}
	}
	return out
}

// Snapshot returns the locally-declared blocks' values, keyed by BlockID,
// used by the State Extractor. Storage-driven blocks are omitted since
// their values live externally.
func (r *MemoryRegister) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.blocks))
	for id, b := range r.blocks {
		if b.DriverName != "" {
			continue
		}
		out[id] = b.Value
	}
	return out
}

// Restore rebinds blocks from a previously extracted snapshot, used by the
// State Applicator. Restored blocks are marked BlockDynamic since the
// applicator does not have access to the original declaration metadata;
// a later Declare of the same BlockID leaves the restored block, and its
// BlockDynamic kind, unchanged.
func (r *MemoryRegister) Restore(values map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range values {
		if b, ok := r.blocks[id]; ok {
			b.Value = v
			continue
		}
		r.blocks[id] = &MemoryBlock{BlockID: id, Kind: BlockDynamic, Value: v}
	}
}
