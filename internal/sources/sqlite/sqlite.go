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

// Package sqlite implements the sql-sqlite and sql-access source drivers
// over modernc.org/sqlite (a pure-Go driver, avoiding a cgo dependency
// the rest of this module otherwise doesn't need). sql-access has no Go
// driver and is mapped onto the same connection-pool constructor: both
// are a local embedded relational file reached by a DSN string as far as
// the Loader is concerned.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func init() {
	for _, kind := range []project.SourceDriver{project.DriverSQLSQLite, project.DriverSQLAccess} {
		if !sources.Register(kind, newSource) {
			panic(fmt.Sprintf("data source driver %q already registered", kind))
		}
	}
}

type Source struct {
	name   string
	kind   project.SourceDriver
	db     *sql.DB
	tracer trace.Tracer
}

var _ sources.Source = (*Source)(nil)

func newSource(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (sources.Source, error) {
	kind := project.SourceDriver(ds.Driver)
	ctx, span := sources.InitConnectionSpan(ctx, tracer, string(kind), name)
	defer span.End()

	path := ds.Parameters["path"]
	if path == "" {
		path = ds.Parameters["file"]
	}
	if path == "" {
		return nil, util.NewConfigurationError(name, "parameters", "sqlite/access data source requires a path parameter", nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, util.NewResourceError(name, "unable to open sqlite file", false, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one connection avoids lock contention.

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, util.NewResourceError(name, "unable to open sqlite database file", false, err)
	}
	return &Source{name: name, kind: kind, db: db, tracer: tracer}, nil
}

func (s *Source) Kind() string { return string(s.kind) }

// Query relies on ScanSQLRows's raw-value + JSON-sniff scan: the sqlite
// driver doesn't expose ColumnTypes, so that is the only way to recover
// anything richer than a string per cell.
func (s *Source) Query(ctx context.Context, query string) (*table.Table, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, query)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, util.NewResourceError(s.name, "sqlite query failed", false, err)
	}
	defer rows.Close()

	t, err := sources.ScanSQLRows(rows)
	if err != nil {
		return nil, util.NewResourceError(s.name, "error reading sqlite result set", false, err)
	}
	return t, nil
}

func (s *Source) IntrospectSchema(ctx context.Context, tableOrQuery string) (*sources.Schema, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, tableOrQuery)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableOrQuery)))
	if err != nil {
		return nil, util.NewResourceError(s.name, "unable to introspect sqlite schema", false, err)
	}
	defer rows.Close()

	schema := &sources.Schema{ForeignKeys: map[string]string{}}
	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, sources.Column{
			Name:     name,
			Kind:     sqliteTypeToKind(declType),
			Nullable: notNull == 0,
		})
		if pk != 0 {
			schema.PrimaryKeys = append(schema.PrimaryKeys, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func sqliteTypeToKind(declType string) table.Kind {
	switch declType {
	case "INTEGER", "INT":
		return table.KindInt
	case "REAL", "FLOAT", "DOUBLE", "NUMERIC":
		return table.KindFloat
	case "BOOLEAN":
		return table.KindBool
	case "DATE", "DATETIME":
		return table.KindTime
	default:
		return table.KindString
	}
}

func (s *Source) Close() error {
	return s.db.Close()
}
