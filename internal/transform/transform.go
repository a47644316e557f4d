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

// Package transform holds the pure row-shape operations over an
// in-memory table, applied by the Normalizer in two passes straddling the
// Linker. Every operation here is a
// plain function from table(s) to table plus error — none of them touch a
// data source or the table store directly except where a filter or append
// needs to read an already-materialized sibling entity.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// Kernel carries the one collaborator (the Loader) append's SQL variant
// needs; every other operation is a free function below.
type Kernel struct {
	loader *loader.Loader
}

func NewKernel(l *loader.Loader) *Kernel {
	return &Kernel{loader: l}
}

// PreResult is everything PreLink hands back to the Normalizer: the
// transformed table plus the extra_columns templates that pass 1 couldn't
// resolve, carried forward to PostLink.
type PreResult struct {
	Table    *table.Table
	Deferred map[string]string
}

// PreLink runs projection, append, drop-empty/duplicates, filters, and
// pass-1 extra_columns — everything the Normalizer applies before
// assigning system_id and invoking the Linker.
func (k *Kernel) PreLink(ctx context.Context, e *project.Entity, t *table.Table, store *tablestore.Store) (*PreResult, error) {
	t, err := ProjectColumns(t, e)
	if err != nil {
		return nil, err
	}
	t, err = k.applyAppends(ctx, e, t)
	if err != nil {
		return nil, err
	}
	t = applyDropEmptyRows(t, e)
	t, err = applyDropDuplicates(t, e)
	if err != nil {
		return nil, err
	}
	t, err = applyFilters(e, t, store)
	if err != nil {
		return nil, err
	}
	t, deferred := applyExtraColumnsPass1(e, t)
	return &PreResult{Table: t, Deferred: deferred}, nil
}

// PostLink resolves deferred extra_columns (now that the Linker has added
// parent columns) then applies unnest.
func (k *Kernel) PostLink(e *project.Entity, t *table.Table, deferred map[string]string) (*table.Table, error) {
	t, err := applyExtraColumnsPass2(e, t, deferred)
	if err != nil {
		return nil, err
	}
	if e.Unnest != nil {
		t, err = applyUnnest(e, t)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ProjectColumns keeps declared columns plus every column a later step
// will still need to consume (keys, FK local_keys, filter columns), so
// projection never strips something the Linker or a filter reads.
func ProjectColumns(t *table.Table, e *project.Entity) (*table.Table, error) {
	if len(e.Columns) == 0 {
		return t.Clone(), nil
	}
	required := append([]string{}, e.Columns...)
	seen := make(map[string]bool, len(required))
	for _, c := range required {
		seen[c] = true
	}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			required = append(required, c)
		}
	}
	for _, k := range e.Keys {
		add(k)
	}
	for _, fk := range e.ForeignKeys {
		for _, c := range fk.LocalKeys {
			add(c)
		}
	}
	for _, f := range e.Filters {
		add(f.Column)
	}
	return table.Project(t, required, nil)
}

func (k *Kernel) applyAppends(ctx context.Context, e *project.Entity, t *table.Table) (*table.Table, error) {
	if len(e.Append) == 0 {
		return t, nil
	}
	out := t.Clone()
	for i, a := range e.Append {
		switch a.Type {
		case project.AppendFixed:
			for _, row := range a.Values {
				if len(row) != len(out.Columns) {
					return nil, util.NewConfigurationError(e.Name, fmt.Sprintf("append[%d].values", i),
						"appended fixed row width does not match table column count", nil)
				}
				r := make(table.Row, len(out.Columns))
				for i, c := range out.Columns {
					r[c] = row[i]
				}
				out.Rows = append(out.Rows, r)
			}
		case project.AppendSQL:
			appended, err := k.loader.QueryRaw(ctx, a.DataSource, a.Query)
			if err != nil {
				return nil, err
			}
			for _, r := range appended.Rows {
				nr := make(table.Row, len(out.Columns))
				for _, c := range out.Columns {
					nr[c] = r[c] // missing columns fill as nil
				}
				out.Rows = append(out.Rows, nr)
			}
		default:
			return nil, util.NewConfigurationError(e.Name, fmt.Sprintf("append[%d].type", i),
				fmt.Sprintf("unknown append type %q", a.Type), nil)
		}
	}
	return out, nil
}

func applyDropEmptyRows(t *table.Table, e *project.Entity) *table.Table {
	if e.DropEmptyRows == nil {
		return t
	}
	cols := dropColumnList(e.DropEmptyRows, t.Columns)
	out := t.Clone()
	out.Rows = out.Rows[:0]
	for _, r := range t.Rows {
		empty := true
		for _, c := range cols {
			if v, ok := r[c]; ok && v != nil && v != "" {
				empty = false
				break
			}
		}
		if !empty {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func applyDropDuplicates(t *table.Table, e *project.Entity) (*table.Table, error) {
	if e.DropDuplicates == nil {
		return t, nil
	}
	cols := dropColumnList(e.DropDuplicates, e.Keys)
	if len(cols) == 0 {
		cols = e.Keys
	}
	if len(cols) == 0 {
		return nil, util.NewConfigurationError(e.Name, "drop_duplicates", "drop_duplicates requires keys or an explicit column list", nil)
	}
	out := t.Clone()
	out.Rows = out.Rows[:0]
	if e.DropDuplicatesKeep == "last" {
		lastIdx := make(map[string]int, len(t.Rows))
		for i, r := range t.Rows {
			lastIdx[dedupeKey(r, cols)] = i
		}
		for i, r := range t.Rows {
			if lastIdx[dedupeKey(r, cols)] == i {
				out.Rows = append(out.Rows, r)
			}
		}
		return out, nil
	}
	seen := make(map[string]bool, len(t.Rows))
	for _, r := range t.Rows {
		k := dedupeKey(r, cols)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// dropColumnList resolves the `true | []string` union shape of
// drop_duplicates/drop_empty_rows: true means "use fallback", an explicit
// list overrides it.
func dropColumnList(v any, fallback []string) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, x := range val {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case bool:
		if val {
			return fallback
		}
		return nil
	default:
		return fallback
	}
}

func dedupeKey(r table.Row, cols []string) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "%v\x1f", r[c])
	}
	return b.String()
}

func applyFilters(e *project.Entity, t *table.Table, store *tablestore.Store) (*table.Table, error) {
	out := t
	for i, f := range e.Filters {
		switch f.Type {
		case project.FilterExistsIn:
			filtered, err := applyExistsIn(e.Name, i, f, out, store)
			if err != nil {
				return nil, err
			}
			out = filtered
		default:
			return nil, util.NewConfigurationError(e.Name, fmt.Sprintf("filters[%d].type", i),
				fmt.Sprintf("unknown filter type %q", f.Type), nil)
		}
	}
	return out, nil
}

func applyExistsIn(entityName string, idx int, f *project.Filter, t *table.Table, store *tablestore.Store) (*table.Table, error) {
	remote, err := store.Get(f.Entity)
	if err != nil {
		return nil, util.NewConfigurationError(entityName, fmt.Sprintf("filters[%d].entity", idx),
			fmt.Sprintf("exists_in filter references entity %q not yet available", f.Entity), err)
	}
	allowed := make(map[string]bool, len(remote.Rows))
	for _, r := range remote.Rows {
		allowed[fmt.Sprintf("%v", r[f.RemoteColumn])] = true
	}
	out := t.Clone()
	out.Rows = out.Rows[:0]
	for _, r := range t.Rows {
		if allowed[fmt.Sprintf("%v", r[f.Column])] {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// applyExtraColumnsPass1 evaluates every extra_columns template whose
// references are all already satisfiable (constants, literal column
// copies, interpolated strings over existing columns); anything else is
// deferred to pass 2.
func applyExtraColumnsPass1(e *project.Entity, t *table.Table) (*table.Table, map[string]string) {
	if len(e.ExtraColumns) == 0 {
		return t, nil
	}
	out := t.Clone()
	deferred := make(map[string]string)
	for _, name := range sortedKeys(e.ExtraColumns) {
		tmpl := e.ExtraColumns[name]
		if refs, ok := templateRefs(tmpl); ok && allColumnsPresent(out, refs) {
			evaluateColumn(out, name, tmpl)
		} else {
			deferred[name] = tmpl
		}
	}
	return out, deferred
}

// applyExtraColumnsPass2 resolves every deferred template now that FK
// linking may have added parent columns; a template still unresolvable is
// a hard error.
func applyExtraColumnsPass2(e *project.Entity, t *table.Table, deferred map[string]string) (*table.Table, error) {
	if len(deferred) == 0 {
		return t, nil
	}
	out := t.Clone()
	for _, name := range sortedKeys(deferred) {
		tmpl := deferred[name]
		refs, _ := templateRefs(tmpl)
		if !allColumnsPresent(out, refs) {
			return nil, util.NewConfigurationError(e.Name, "extra_columns."+name,
				fmt.Sprintf("computed column %q references a column that never appears: %q", name, tmpl), nil)
		}
		evaluateColumn(out, name, tmpl)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// templateRefs extracts the {col} references from an interpolation
// template. "{{" and "}}" are literal braces and never count as a
// reference.
func templateRefs(tmpl string) ([]string, bool) {
	var refs []string
	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '{' {
			if i+1 < len(runes) && runes[i+1] == '{' {
				i++
				continue
			}
			j := i + 1
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j >= len(runes) {
				return nil, false
			}
			refs = append(refs, string(runes[i+1:j]))
			i = j
		}
	}
	return refs, true
}

func allColumnsPresent(t *table.Table, refs []string) bool {
	for _, r := range refs {
		if !t.HasColumn(r) {
			return false
		}
	}
	return true
}

// evaluateColumn renders tmpl against every row of t and writes the
// result into column name. {{ and }} render as literal braces; null
// values render as the empty string.
func evaluateColumn(t *table.Table, name, tmpl string) {
	t.AddColumn(name)
	for _, r := range t.Rows {
		r[name] = renderTemplate(tmpl, r)
	}
}

func renderTemplate(tmpl string, r table.Row) string {
	var b strings.Builder
	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '{':
			if i+1 < len(runes) && runes[i+1] == '{' {
				b.WriteRune('{')
				i++
				continue
			}
			j := i + 1
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j >= len(runes) {
				b.WriteString(string(runes[i:]))
				i = len(runes)
				break
			}
			col := string(runes[i+1 : j])
			b.WriteString(stringify(r[col]))
			i = j
		case '}':
			if i+1 < len(runes) && runes[i+1] == '}' {
				b.WriteRune('}')
				i++
				continue
			}
			b.WriteRune('}')
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// applyUnnest melts value_vars into two columns, promoting any key column
// found among value_vars back into id_vars first.
func applyUnnest(e *project.Entity, t *table.Table) (*table.Table, error) {
	u := e.Unnest
	idVars := append([]string{}, u.IDVars...)
	idSet := make(map[string]bool, len(idVars))
	for _, c := range idVars {
		idSet[c] = true
	}
	for _, k := range e.Keys {
		if containsString(u.ValueVars, k) && !idSet[k] {
			idVars = append(idVars, k)
			idSet[k] = true
		}
	}
	for _, c := range idVars {
		if !t.HasColumn(c) {
			return nil, util.NewConfigurationError(e.Name, "unnest.id_vars", fmt.Sprintf("id_vars column %q not present", c), nil)
		}
	}
	for _, c := range u.ValueVars {
		if !t.HasColumn(c) {
			return nil, util.NewConfigurationError(e.Name, "unnest.value_vars", fmt.Sprintf("value_vars column %q not present", c), nil)
		}
	}

	out := table.New(append(append([]string{}, idVars...), u.VarName, u.ValueName))
	for _, r := range t.Rows {
		for _, vv := range u.ValueVars {
			nr := make(table.Row, len(out.Columns))
			for _, c := range idVars {
				nr[c] = r[c]
			}
			nr[u.VarName] = vv
			nr[u.ValueName] = r[vv]
			out.Rows = append(out.Rows, nr)
		}
	}
	out.InferKinds()
	return out, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
