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

// Package loader materializes one entity's source rows from its declared
// origin: a SQL query, a flat file, inline fixed values, or another
// entity's output.
package loader

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// Loader holds one opened sources.Source per named DataSource, dialed
// once at run start and reused across every entity that references it.
type Loader struct {
	proj   *project.Project
	opened map[string]sources.Source
}

// Open dials every data source declared in proj. A connection failure for
// any one of them aborts the whole Open call — a run can't proceed if a
// declared source is unreachable.
func Open(ctx context.Context, proj *project.Project, tracer trace.Tracer) (*Loader, error) {
	l := &Loader{proj: proj, opened: make(map[string]sources.Source, len(proj.DataSources))}
	for name, ds := range proj.DataSources {
		src, err := sources.Open(ctx, name, ds, tracer)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.opened[name] = src
	}
	return l, nil
}

// Close releases every opened source's underlying connection/pool.
func (l *Loader) Close() error {
	var first error
	for _, src := range l.opened {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Load materializes e's source rows, dispatching on the entity kind.
func (l *Loader) Load(ctx context.Context, e *project.Entity, store *tablestore.Store) (*table.Table, error) {
	switch e.Kind {
	case project.KindSQL:
		return l.loadSQL(ctx, e)
	case project.KindCSV:
		return l.loadCSV(ctx, e)
	case project.KindXLSX:
		return l.loadXLSX(ctx, e)
	case project.KindFixed:
		return loadFixed(e)
	case project.KindDerived:
		return l.loadDerived(e, store)
	default:
		return nil, util.NewInternalInvariantBroken(e.Name, fmt.Sprintf("unknown entity kind %q reached the loader", e.Kind), nil)
	}
}

// QueryRaw runs query against a named data source directly, used by the
// Transform Kernel's `append: {type: sql}` directive, which
// names a data source rather than an entity.
func (l *Loader) QueryRaw(ctx context.Context, dataSourceName, query string) (*table.Table, error) {
	src, ok := l.opened[dataSourceName]
	if !ok {
		return nil, util.NewConfigurationError("", "data_source", fmt.Sprintf("data source %q not opened", dataSourceName), nil)
	}
	return src.Query(ctx, query)
}

func (l *Loader) source(e *project.Entity) (sources.Source, error) {
	src, ok := l.opened[e.DataSource]
	if !ok {
		return nil, util.NewConfigurationError(e.Name, "data_source", fmt.Sprintf("data source %q not opened", e.DataSource), nil)
	}
	return src, nil
}

func (l *Loader) loadSQL(ctx context.Context, e *project.Entity) (*table.Table, error) {
	src, err := l.source(e)
	if err != nil {
		return nil, err
	}
	query := e.Query
	if query == "" {
		query = "SELECT * FROM " + e.Table
	}
	return src.Query(ctx, query)
}

func (l *Loader) loadCSV(ctx context.Context, e *project.Entity) (*table.Table, error) {
	src, err := l.source(e)
	if err != nil {
		return nil, err
	}
	if e.Options == nil {
		return nil, util.NewConfigurationError(e.Name, "options", "csv entity requires options", nil)
	}
	sep := e.Options.Separator
	if sep == "" {
		sep = ","
	}
	hasHeader := true
	if e.Options.HasHeader != nil {
		hasHeader = *e.Options.HasHeader
	}
	descriptor := fmt.Sprintf("%s|%s|%s|%s", e.Options.Filename, sep, e.Options.Encoding, strconv.FormatBool(hasHeader))
	return src.Query(ctx, descriptor)
}

func (l *Loader) loadXLSX(ctx context.Context, e *project.Entity) (*table.Table, error) {
	src, err := l.source(e)
	if err != nil {
		return nil, err
	}
	if e.Options == nil {
		return nil, util.NewConfigurationError(e.Name, "options", "xlsx entity requires options", nil)
	}
	hasHeader := true
	if e.Options.HasHeader != nil {
		hasHeader = *e.Options.HasHeader
	}
	descriptor := fmt.Sprintf("%s|%s|%s", e.Options.Filename, e.Options.Sheet, strconv.FormatBool(hasHeader))
	return src.Query(ctx, descriptor)
}

func loadFixed(e *project.Entity) (*table.Table, error) {
	if len(e.Columns) == 0 && len(e.Values) > 0 {
		return nil, util.NewConfigurationError(e.Name, "columns", "fixed entity requires columns to name its inline values", nil)
	}
	t := table.New(e.Columns)
	for _, row := range e.Values {
		if len(row) != len(e.Columns) {
			return nil, util.NewConfigurationError(e.Name, "values",
				fmt.Sprintf("fixed row has %d values, entity declares %d columns", len(row), len(e.Columns)), nil)
		}
		r := make(table.Row, len(e.Columns))
		for i, c := range e.Columns {
			r[c] = row[i]
		}
		t.Rows = append(t.Rows, r)
	}
	t.InferKinds()
	return t, nil
}

// loadDerived returns a copy of the source entity's materialized output.
// A read here that comes back NotReady means the graph's topological
// guarantee was violated — an invariant break, not an ordinary load error.
func (l *Loader) loadDerived(e *project.Entity, store *tablestore.Store) (*table.Table, error) {
	src, err := store.Get(e.Source)
	if err != nil {
		if err == util.ErrNotReady {
			return nil, util.NewInternalInvariantBroken(e.Name,
				fmt.Sprintf("derived source %q was not ready when scheduled", e.Source), err)
		}
		return nil, err
	}
	return src.Clone(), nil
}
