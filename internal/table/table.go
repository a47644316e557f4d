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

// Package table is the minimal tabular abstraction the loader, transform,
// identity, and linker packages all operate against: a table carries a
// declared column order plus an optional inferred Kind per column, and
// every row is a plain map keyed by column name so
// filter/interpolation/join code never has to track positional column
// indices by hand.
package table

import (
	"fmt"
)

// Kind is the inferred element type of a column, used by the Validation
// Engine's type-compatibility checks and by sinks that need to pick a
// concrete SQL/cell type.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Row is one record, keyed by column name. A column absent from a given row
// (rather than present with a nil value) is treated identically to a null
// value everywhere in this package.
type Row map[string]any

// Clone returns a shallow copy of the row (element values are not deep
// copied, matching the rest of the engine's copy-on-write row semantics).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of named columns and the rows that populate them.
// Column order is significant for sink dispatch and is preserved
// across every Transform Kernel operation unless the operation explicitly
// changes it (projection, unnest).
type Table struct {
	Columns []string
	Kinds   map[string]Kind
	Rows    []Row
}

// New creates an empty table with the given column order.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Kinds: make(map[string]Kind)}
}

// HasColumn reports whether name is a declared column of the table.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a new column to the declared order if it is not already
// present; it is idempotent so callers don't need to check HasColumn first.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// RemoveColumn drops a column from the declared order and from every row.
func (t *Table) RemoveColumn(name string) {
	out := t.Columns[:0:0]
	for _, c := range t.Columns {
		if c != name {
			out = append(out, c)
		}
	}
	t.Columns = out
	delete(t.Kinds, name)
	for _, r := range t.Rows {
		delete(r, name)
	}
}

// RenameColumn renames a column in place, in both the declared order and
// every row, preserving the column's position and inferred Kind. A no-op if
// oldName is not present; if newName already exists it is silently
// overwritten, matching the Linker's use where the target name is always
// the entity's own public_id column.
func (t *Table) RenameColumn(oldName, newName string) {
	if oldName == newName || !t.HasColumn(oldName) {
		return
	}
	for i, c := range t.Columns {
		if c == oldName {
			t.Columns[i] = newName
			break
		}
	}
	if k, ok := t.Kinds[oldName]; ok {
		t.Kinds[newName] = k
		delete(t.Kinds, oldName)
	}
	for _, r := range t.Rows {
		if v, ok := r[oldName]; ok {
			r[newName] = v
			delete(r, oldName)
		}
	}
}

// Clone returns a deep-enough copy: new Columns/Rows slices, new Row maps,
// so downstream mutation (e.g. the Linker rewriting an FK column) never
// aliases a parent's stored table, which is read-only once its entity
// completes.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	kinds := make(map[string]Kind, len(t.Kinds))
	for k, v := range t.Kinds {
		kinds[k] = v
	}
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	return &Table{Columns: cols, Kinds: kinds, Rows: rows}
}

// Project returns a new table containing only the requested columns, in the
// requested order. A requested column absent from the table is a
// COLUMN_NOT_FOUND error unless it is listed in optional.
func Project(t *Table, columns []string, optional map[string]bool) (*Table, error) {
	out := New(nil)
	for _, c := range columns {
		if !t.HasColumn(c) {
			if optional[c] {
				continue
			}
			return nil, fmt.Errorf("COLUMN_NOT_FOUND: column %q not present on table", c)
		}
		out.AddColumn(c)
		if k, ok := t.Kinds[c]; ok {
			out.Kinds[c] = k
		}
	}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(out.Columns))
		for _, c := range out.Columns {
			nr[c] = r[c]
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// InferKinds scans every row and records the narrowest consistent Kind per
// column (KindUnknown if the table has no rows, or if a column mixes
// incompatible non-null types).
func (t *Table) InferKinds() {
	for _, c := range t.Columns {
		kind := KindUnknown
		seen := false
		consistent := true
		for _, r := range t.Rows {
			v, ok := r[c]
			if !ok || v == nil {
				continue
			}
			k := kindOf(v)
			if !seen {
				kind, seen = k, true
				continue
			}
			if kind != k {
				consistent = false
				break
			}
		}
		if seen && consistent {
			t.Kinds[c] = kind
		} else {
			t.Kinds[c] = KindUnknown
		}
	}
}

func kindOf(v any) Kind {
	switch v.(type) {
	case string:
		return KindString
	case int, int32, int64:
		return KindInt
	case float32, float64:
		return KindFloat
	case bool:
		return KindBool
	default:
		return KindUnknown
	}
}
