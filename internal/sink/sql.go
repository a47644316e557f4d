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

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/table"
)

// Dialect picks the placeholder and type-mapping convention for SQLWriter,
// mirroring the three SQL drivers the Data Source Registry already
// opens connections through (internal/sources/{postgres,mysql,sqlite}).
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// SQLWriter is the SQL database target: one table per entity, column
// names unchanged, system_id as integer, FK columns carrying the parent's
// public_id name. db is a connection already opened by the caller (the
// core's own Data Source Registry only reads; this sink writes through a
// plain database/sql handle the CLI harness opens for the destination).
type SQLWriter struct {
	DB      *sql.DB
	Dialect Dialect
}

var _ Dispatcher = (*SQLWriter)(nil)

func (w *SQLWriter) Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error {
	names, tables := entityTables(result, opts)
	for _, name := range names {
		t := tables[name]
		if err := w.writeTable(ctx, name, t); err != nil {
			return fmt.Errorf("sink: writing table %q: %w", name, err)
		}
	}
	return nil
}

func (w *SQLWriter) writeTable(ctx context.Context, name string, t *table.Table) error {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	quoted := w.quoteIdent(name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, w.createTableSQL(name, t)); err != nil {
		return err
	}

	if len(t.Columns) > 0 && len(t.Rows) > 0 {
		insertSQL := w.insertSQL(name, t.Columns)
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range t.Rows {
			args := make([]any, len(t.Columns))
			for i, c := range t.Columns {
				args[i] = r[c]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (w *SQLWriter) createTableSQL(name string, t *table.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", w.quoteIdent(name))
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", w.quoteIdent(c), w.sqlType(t.Kinds[c]))
	}
	b.WriteString(")")
	return b.String()
}

func (w *SQLWriter) insertSQL(name string, columns []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (", w.quoteIdent(name))
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(w.quoteIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(w.placeholder(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

func (w *SQLWriter) placeholder(n int) string {
	switch w.Dialect {
	case DialectPostgres:
		return "$" + strconv.Itoa(n)
	default:
		return "?"
	}
}

func (w *SQLWriter) quoteIdent(name string) string {
	switch w.Dialect {
	case DialectMySQL:
		return "`" + name + "`"
	default:
		return `"` + name + `"`
	}
}

func (w *SQLWriter) sqlType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE PRECISION"
	case table.KindBool:
		return "BOOLEAN"
	case table.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}
