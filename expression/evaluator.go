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

// Package expression evaluates boolean guard expressions for the If
// built-in activity, against a read-only view of the current AEC's
// accessible variables.
package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and caches expr-lang programs by source text. Reused
// from the teacher's pkg/workflow/expression.Evaluator, narrowed to the
// engine's boolean-guard use case.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// New returns an Evaluator with an empty compilation cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses a cached compile of) expression and runs it
// against vars. The result must be a bool; any other result type is
// returned as an error. An empty expression always
// evaluates true, matching the teacher's "no condition means always run"
// convention.
func (e *Evaluator) Evaluate(expression string, vars map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := e.compile(expression)
	if err != nil {
		return false, fmt.Errorf("expression: compile %q: %w", expression, err)
	}

	out, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("expression: evaluate %q: %w", expression, err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression: %q did not evaluate to a bool (got %T)", expression, out)
	}
	return b, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if p, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = program
	e.mu.Unlock()
	return program, nil
}

// ClearCache discards all compiled programs.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*vm.Program)
}

// CacheSize returns the number of compiled programs currently cached.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
