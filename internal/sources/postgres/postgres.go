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

// Package postgres implements the sql-postgres source driver over
// jackc/pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

const poolSize = 4 // bounded connection pool, 4 per data source

func init() {
	if !sources.Register(project.DriverSQLPostgres, newSource) {
		panic(fmt.Sprintf("data source driver %q already registered", project.DriverSQLPostgres))
	}
}

// Source wraps a bounded pgx connection pool.
type Source struct {
	name   string
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ sources.Source = (*Source)(nil)

func newSource(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (sources.Source, error) {
	ctx, span := sources.InitConnectionSpan(ctx, tracer, string(project.DriverSQLPostgres), name)
	defer span.End()

	dsn, err := buildDSN(ds.Parameters)
	if err != nil {
		return nil, util.NewConfigurationError(name, "parameters", "invalid postgres data source parameters", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, util.NewConfigurationError(name, "parameters", "invalid postgres DSN", err)
	}
	cfg.MaxConns = poolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, util.NewResourceError(name, "unable to create postgres connection pool", true, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, util.NewResourceError(name, "unable to connect to postgres", true, err)
	}
	return &Source{name: name, pool: pool, tracer: tracer}, nil
}

func buildDSN(params map[string]string) (string, error) {
	host, user, dbname := params["host"], params["user"], params["database"]
	if host == "" || user == "" || dbname == "" {
		return "", fmt.Errorf("postgres data source requires host, user, database parameters")
	}
	port := params["port"]
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s", host, port, user, dbname)
	if pw, ok := params["password"]; ok {
		dsn += fmt.Sprintf(" password=%s", pw)
	}
	if ssl, ok := params["sslmode"]; ok {
		dsn += fmt.Sprintf(" sslmode=%s", ssl)
	}
	return dsn, nil
}

func (s *Source) Kind() string { return string(project.DriverSQLPostgres) }

// Query executes query and retries once with backoff on a transient
// connection failure. Syntax and constraint errors recur identically, so
// they are marked permanent and never retried.
func (s *Source) Query(ctx context.Context, query string) (*table.Table, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, query)
	defer span.End()

	op := func() (*table.Table, error) {
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return nil, classifyPgError(s.name, err)
		}
		defer rows.Close()
		t, scanErr := scanPgxRows(rows)
		if scanErr != nil {
			return nil, util.NewResourceError(s.name, "error reading postgres result set", false, scanErr)
		}
		return t, nil
	}

	t, err := backoff.Retry(ctx, op, backoff.WithMaxTries(2), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func classifyPgError(name string, err error) error {
	transient := isTransientPgError(err)
	rerr := util.NewResourceError(name, "postgres query failed", transient, err)
	if !transient {
		return backoff.Permanent(rerr)
	}
	return rerr
}

func isTransientPgError(err error) bool {
	// Connection-level failures (closed pool member, dial timeout, reset)
	// are worth one retry; a syntax or constraint error recurs identically
	// so retrying it wastes the backoff budget for no benefit.
	switch err {
	case context.DeadlineExceeded, context.Canceled:
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// the server answered and rejected the statement itself
		return false
	}
	return true
}

func scanPgxRows(rows pgx.Rows) (*table.Table, error) {
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = string(f.Name)
	}
	t := table.New(cols)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.InferKinds()
	return t, nil
}

// IntrospectSchema queries the information_schema catalog for column
// metadata, since pgx's result set alone can't report nullability or
// declared (not inferred) types.
func (s *Source) IntrospectSchema(ctx context.Context, tableOrQuery string) (*sources.Schema, error) {
	ctx, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, tableOrQuery)
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`, tableOrQuery)
	if err != nil {
		return nil, util.NewResourceError(s.name, "unable to introspect postgres schema", true, err)
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
			Kind:     pgTypeToKind(dataType),
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

func pgTypeToKind(dataType string) table.Kind {
	switch dataType {
	case "integer", "bigint", "smallint":
		return table.KindInt
	case "double precision", "real", "numeric":
		return table.KindFloat
	case "boolean":
		return table.KindBool
	case "timestamp without time zone", "timestamp with time zone", "date":
		return table.KindTime
	default:
		return table.KindString
	}
}

func (s *Source) Close() error {
	s.pool.Close()
	return nil
}
