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

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexusflow/engine"
)

func TestHashBookmarkIsDeterministic(t *testing.T) {
	a := engine.HashBookmark("evt", map[string]any{"orderId": "123"})
	b := engine.HashBookmark("evt", map[string]any{"orderId": "123"})
	assert.Equal(t, a, b)
}

func TestHashBookmarkDistinguishesNameAndPayload(t *testing.T) {
	base := engine.HashBookmark("evt", "payload")
	differentName := engine.HashBookmark("other", "payload")
	differentPayload := engine.HashBookmark("evt", "different")

	assert.NotEqual(t, base, differentName)
	assert.NotEqual(t, base, differentPayload)
}

func TestHashBookmarkHandlesNilPayload(t *testing.T) {
	assert.NotPanics(t, func() {
		engine.HashBookmark("evt", nil)
	})
}
