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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nexusflow/engine"
)

// graphDocument is the YAML schema for a demonstration activity-tree file,
// mirroring the shape of the teacher's Definition YAML loading
// (pkg/workflow.Definition) narrowed to the engine's activity tree.
type graphDocument struct {
	Name string      `yaml:"name"`
	Root activityDoc `yaml:"root"`
}

type activityDoc struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Tag      string         `yaml:"tag"`
	Inputs   map[string]any `yaml:"inputs"`
	Children []activityDoc  `yaml:"children"`
}

func (d activityDoc) toActivity() *engine.Activity {
	a := &engine.Activity{
		ID:     d.ID,
		Type:   d.Type,
		Tag:    d.Tag,
		Inputs: d.Inputs,
	}
	for _, c := range d.Children {
		a.Children = append(a.Children, c.toActivity())
	}
	return a
}

// loadGraph reads a YAML activity-tree file and builds an *engine.WorkflowGraph.
func loadGraph(path string) (*engine.WorkflowGraph, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("workflowctl: read %s: %w", path, err)
	}

	var doc graphDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("workflowctl: parse %s: %w", path, err)
	}

	return engine.NewWorkflowGraph(doc.Root.toActivity()), doc.Name, nil
}
