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

// Package identity is the Identity Manager: assigns the dense
// per-entity system_id sequence and builds the business-key indexes the
// Linker joins against.
package identity

import (
	"fmt"

	"github.com/humlab-sead/shapeshifter/internal/table"
)

// AssignSystemID stamps column with 1..N in row order. Called once, after
// the pre-link transforms finalize an entity's row set and before any FK
// is linked, so the sequence is dense and local to this run.
func AssignSystemID(t *table.Table, column string) {
	t.AddColumn(column)
	for i, r := range t.Rows {
		r[column] = i + 1
	}
}

// KeyIndex maps a business-key tuple to every row index sharing it, built
// over a table's Keys columns (or any other column tuple, e.g. an FK's
// local_keys/remote_keys).
type KeyIndex struct {
	byKey map[string][]int
}

// BuildKeyIndex scans t and groups row indices by the tuple of values in
// cols, using the NUL byte as a field separator (never legally present in
// a business-key value) to avoid tuple collisions across differently
// shaped keys.
func BuildKeyIndex(t *table.Table, cols []string) *KeyIndex {
	idx := &KeyIndex{byKey: make(map[string][]int, len(t.Rows))}
	for i, r := range t.Rows {
		k := KeyOf(r, cols)
		idx.byKey[k] = append(idx.byKey[k], i)
	}
	return idx
}

// KeyOf renders the business-key tuple for one row over cols.
func KeyOf(r table.Row, cols []string) string {
	key := ""
	for _, c := range cols {
		key += fmt.Sprintf("%v\x00", r[c])
	}
	return key
}

// HasNull reports whether any of cols is null/absent in r — used for the
// Linker's null-key policy check.
func HasNull(r table.Row, cols []string) bool {
	for _, c := range cols {
		if r[c] == nil {
			return true
		}
	}
	return false
}

// Lookup returns the row indices matching key, or nil if none.
func (idx *KeyIndex) Lookup(key string) []int {
	return idx.byKey[key]
}

// Duplicated reports whether any key maps to more than one row — the
// uniqueness check behind require_unique_left/require_unique_right.
func (idx *KeyIndex) Duplicated() bool {
	for _, rows := range idx.byKey {
		if len(rows) > 1 {
			return true
		}
	}
	return false
}
