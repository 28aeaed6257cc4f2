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

package idgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexusflow/engine/idgen"
)

func TestUUIDGeneratorProducesUniqueIDs(t *testing.T) {
	g := idgen.NewUUIDGenerator()

	a := g.NewID()
	b := g.NewID()

	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
