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

// Package idgen provides identifier generators the Runner calls to mint
// InstanceId, AEC.Id and Bookmark.Id when a caller does not supply one.
// The engine core never generates ids itself (spec.md §1 treats identifier
// generation as an external collaborator); this package ships the default
// implementation hosts can inject via engine.WithIDGenerator.
package idgen

import "github.com/google/uuid"

// UUIDGenerator mints random (version 4) UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator returns the default identifier generator.
func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

// NewID returns a freshly generated UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
