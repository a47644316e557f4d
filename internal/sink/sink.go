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

// Package sink dispatches a Normalizer Result to an output target:
// workbook, single CSV, CSV bundle, CSV folder, or SQL database. The
// engine itself only ever hands back a Result; this package is the
// surrounding code that sends it somewhere, built against the
// TableStore/Table types the engine already exposes rather than reaching
// back into them.
package sink

import (
	"context"
	"sort"

	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/table"
)

// Target selects one of the five dispatch targets.
type Target string

const (
	TargetWorkbook  Target = "workbook"
	TargetSingleCSV Target = "single_csv"
	TargetCSVBundle Target = "csv_bundle"
	TargetCSVFolder Target = "csv_folder"
	TargetSQL       Target = "sql_database"
)

// Options are the dispatch-time knobs: a column-rename mapping
// (apply_translations — the engine never renames a column itself) and
// drop_fk_columns.
type Options struct {
	Translations  map[string]string // entity.column -> renamed column
	DropFKColumns bool
}

// entityTables returns every materialized table in the result, in the
// order the Normalizer actually produced them (insertion order records
// the topological order used), with the drop_fk_columns and
// apply_translations options already applied to a cloned copy so the
// original Result is left untouched for any other caller.
func entityTables(result *normalizer.Result, opts Options) ([]string, map[string]*table.Table) {
	names := result.TableStore.Order()
	if names == nil {
		names = sortedKeys(result.TableStore.Snapshot())
	}
	out := make(map[string]*table.Table, len(names))
	for _, name := range names {
		t, err := result.TableStore.Get(name)
		if err != nil {
			continue
		}
		out[name] = prepareTable(name, t, opts)
	}
	return names, out
}

func prepareTable(entity string, t *table.Table, opts Options) *table.Table {
	clone := t.Clone()
	if opts.DropFKColumns {
		for _, col := range fkColumns(entity, clone) {
			clone.RemoveColumn(col)
		}
	}
	for _, col := range append([]string{}, clone.Columns...) {
		if renamed, ok := opts.Translations[entity+"."+col]; ok && renamed != col {
			clone.RenameColumn(col, renamed)
		}
	}
	return clone
}

// fkColumns has no way to consult the project from here (this package
// only sees materialized tables), so drop_fk_columns is approximated by
// convention: any column other than the entity's own system_id ending in
// `_id` is treated as a parent public_id column, matching the naming
// convention that public_id columns end in `_id`.
func fkColumns(entity string, t *table.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if c == "system_id" {
			continue
		}
		if len(c) > 3 && c[len(c)-3:] == "_id" {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(m map[string]*table.Table) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatcher is implemented by every concrete sink writer.
type Dispatcher interface {
	Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error
}
