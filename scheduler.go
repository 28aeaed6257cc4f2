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

// WorkItem carries the intent to start a new AEC for Activity under Owner,
// or to resume an existing AEC when ExistingAEC is set.
type WorkItem struct {
	Activity    *Activity
	Owner       *AEC
	Tag         string
	Variables   map[string]any
	ExistingAEC *AEC
	Input       map[string]any

	// MatchedBookmarkID is set when this item resumes a bookmark match. The
	// pipeline burns it only after the activity's Execute call observes and
	// consumes it — burning it earlier would make a resumed Wait see an
	// empty bookmark list and mistake itself for a fresh start.
	MatchedBookmarkID string
}

// Scheduler is a FIFO ordered queue of WorkItems. Schedule appends to the
// back; ScheduleFront (used for prepend=true composite children) inserts
// at the front so those children run before any sibling work already
// queued by an ancestor at the same depth.
type Scheduler struct {
	items []*WorkItem
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule appends item to the back of the queue.
func (s *Scheduler) Schedule(item *WorkItem) {
	s.items = append(s.items, item)
}

// ScheduleFront inserts item at the front of the queue (prepend=true).
func (s *Scheduler) ScheduleFront(item *WorkItem) {
	s.items = append([]*WorkItem{item}, s.items...)
}

// ScheduleActivity enqueues a fresh start of activity under owner,
// honoring the prepend option composites use for stack-like descent.
func (s *Scheduler) ScheduleActivity(activity *Activity, owner *AEC, prepend bool, opts ...func(*WorkItem)) {
	item := &WorkItem{Activity: activity, Owner: owner}
	for _, opt := range opts {
		opt(item)
	}
	if prepend {
		s.ScheduleFront(item)
	} else {
		s.Schedule(item)
	}
}

// Next pops the item at the front of the queue, or returns false if empty.
func (s *Scheduler) Next() (*WorkItem, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, true
}

// HasAny reports whether the queue has pending items.
func (s *Scheduler) HasAny() bool {
	return len(s.items) > 0
}

// Len returns the number of pending items.
func (s *Scheduler) Len() int {
	return len(s.items)
}

// Unschedule removes every item for which filter returns true, returning
// the count removed.
func (s *Scheduler) Unschedule(filter func(*WorkItem) bool) int {
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if filter(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed
}

// Items returns the queue contents in FIFO order, for the State Extractor.
// Callers must not mutate the returned slice.
func (s *Scheduler) Items() []*WorkItem {
	return s.items
}
