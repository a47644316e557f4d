// Copyright 2026 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tablestore is the process-local TableStore: a
// map from entity name to the in-memory tabular artifact the Normalizer
// produces for one run. Entries are write-once and readable only after
// their entity completes; reading an in-progress entity returns the
// util.ErrNotReady sentinel rather than blocking. There is no parent
// pointer anywhere here, only this flat map plus the graph package's
// separate adjacency lists.
package tablestore

import (
	"sync"

	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

type entryState int

const (
	statePending entryState = iota
	stateDone
	stateFailed
	stateSkipped
	stateCancelled
)

type entry struct {
	state entryState
	table *table.Table
	err   error
}

// Store is safe for concurrent use: readers (Linker, preview, validation)
// and the single writer per entity (the Normalizer's worker) all go
// through the same mutex-guarded map, with per-entity state tracked
// explicitly so a read of an unfinished entity can distinguish "never
// started", "in progress", and "failed" instead of just "absent".
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	// order records insertion order, which is the topological order the
	// run actually used.
	order []string
}

// New creates an empty store with one pending slot per name in names, so
// Get can distinguish "pending" from "never declared" (an
// InternalInvariantBroken condition — the graph promises every entity has
// a slot).
func New(names []string) *Store {
	s := &Store{entries: make(map[string]*entry, len(names))}
	for _, n := range names {
		s.entries[n] = &entry{state: statePending}
	}
	return s
}

// Get returns the completed table for name, util.ErrNotReady if it hasn't
// finished yet, the recorded failure if it failed/was skipped/cancelled,
// or an InternalInvariantBroken if name was never declared.
func (s *Store) Get(name string) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, util.NewInternalInvariantBroken(name, "read of entity with no table-store slot", nil)
	}
	switch e.state {
	case stateDone:
		return e.table, nil
	case stateFailed, stateSkipped, stateCancelled:
		return nil, e.err
	default:
		return nil, util.ErrNotReady
	}
}

// Put records the completed table for name. Panics (an
// InternalInvariantBroken in spirit) if called twice for the same name:
// entries are write-once by design.
func (s *Store) Put(name string, t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[name]
	if e.state != statePending {
		panic("tablestore: entity " + name + " written more than once")
	}
	e.state = stateDone
	e.table = t
	s.order = append(s.order, name)
}

// Fail records a terminal non-success state (failed, skipped, or
// cancelled) for name, with the error a subsequent Get should return.
func (s *Store) Fail(name string, state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[name]
	switch state {
	case "failed":
		e.state = stateFailed
	case "skipped":
		e.state = stateSkipped
	case "cancelled":
		e.state = stateCancelled
	}
	e.err = err
}

// Order returns the entity names in the order they completed.
func (s *Store) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns a copy of every completed table, keyed by entity name.
func (s *Store) Snapshot() map[string]*table.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*table.Table, len(s.entries))
	for name, e := range s.entries {
		if e.state == stateDone {
			out[name] = e.table
		}
	}
	return out
}
