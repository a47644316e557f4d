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

// Package mysql implements the sql-mysql source driver over
// go-sql-driver/mysql, for harmonization entities resident in MySQL
// alongside Postgres ones.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

const poolSize = 4

func init() {
	if !sources.Register(project.DriverSQLMySQL, newSource) {
		panic(fmt.Sprintf("data source driver %q already registered", project.DriverSQLMySQL))
	}
}

type Source struct {
	name   string
	db     *sql.DB
	tracer trace.Tracer
}

var _ sources.Source = (*Source)(nil)

func newSource(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, string(project.DriverSQLMySQL), name)
	defer span.End()

	host, user, dbname := ds.Parameters["host"], ds.Parameters["user"], ds.Parameters["database"]
	if host == "" || user == "" || dbname == "" {
		return nil, util.NewConfigurationError(name, "parameters", "mysql data source requires host, user, database parameters", nil)
	}
	port := ds.Parameters["port"]
	if port == "" {
		port = "3306"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, ds.Parameters["password"], host, port, dbname)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, util.NewResourceError(name, "unable to open mysql connection", true, err)
	}
	db.SetMaxOpenConns(poolSize)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, util.NewResourceError(name, "unable to connect to mysql", true, err)
	}
	return &Source{name: name, db: db, tracer: tracer}, nil
}

func (s *Source) Kind() string { return string(project.DriverSQLMySQL) }

func (s *Source) Query(ctx context.Context, query string) (*table.Table, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, query)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, util.NewResourceError(s.name, "mysql query failed", isTransientMySQLError(err), err)
	}
	defer rows.Close()

	t, err := sources.ScanSQLRows(rows)
	if err != nil {
		return nil, util.NewResourceError(s.name, "error reading mysql result set", false, err)
	}
	return t, nil
}

func isTransientMySQLError(err error) bool {
	return err == sql.ErrConnDone || err == context.DeadlineExceeded
}

func (s *Source) IntrospectSchema(ctx context.Context, tableOrQuery string) (*sources.Schema, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, tableOrQuery)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ? AND table_schema = DATABASE()
		ORDER BY ordinal_position`, tableOrQuery)
	if err != nil {
		return nil, util.NewResourceError(s.name, "unable to introspect mysql schema", true, err)
	}
	defer rows.Close()

	schema := &sources.Schema{ForeignKeys: map[string]string{}}
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, sources.Column{
			Name:     name,
			Kind:     mysqlTypeToKind(dataType),
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

func mysqlTypeToKind(dataType string) table.Kind {
	switch dataType {
	case "int", "bigint", "smallint", "tinyint", "mediumint":
		return table.KindInt
	case "double", "float", "decimal":
		return table.KindFloat
	case "tinyint(1)", "bool", "boolean":
		return table.KindBool
	case "datetime", "timestamp", "date":
		return table.KindTime
	default:
		return table.KindString
	}
}

func (s *Source) Close() error {
	return s.db.Close()
}
