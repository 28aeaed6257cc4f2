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

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Bookmark identifies a future resumption point created by a suspended
// activity.
type Bookmark struct {
	ID                 string
	ActivityNodeID     string
	ActivityInstanceID string // AEC.Id owning this bookmark
	Name               string
	Hash               string
	Payload            any
	CallbackMethodName string
	AutoBurn           bool
	AutoComplete       bool
	CreatedAt          time.Time
}

// BookmarkOptions configures CreateBookmark.
type BookmarkOptions struct {
	CallbackMethodName string
	AutoBurn           bool
	AutoComplete       bool
}

// HashBookmark computes the deterministic fingerprint of (name, payload)
// used for external lookup of bookmarks by name+payload rather than by Id.
// A plain sha256 over the name and a stable fmt rendering of the payload is
// sufficient here: the fingerprint only needs to be deterministic and
// collision-resistant for engine-internal indexing, not cryptographically
// binding, so no external hashing library is warranted (see DESIGN.md).
func HashBookmark(name string, payload any) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%#v", payload)
	return hex.EncodeToString(h.Sum(nil))
}
