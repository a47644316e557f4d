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

package sources

import (
	"database/sql"
	"encoding/json"

	"github.com/humlab-sead/shapeshifter/internal/table"
)

// ScanSQLRows drains a database/sql result set into a Table. Column values
// are scanned into `any` via the classic double-indirection trick (a
// []any of pointers into a parallel []any of raw values) because
// database/sql drivers that don't expose ColumnTypes — sqlite chief among
// them — leave no other way to get a driver-appropriate Go type per cell.
// String cells that happen to parse as JSON containers are unmarshaled,
// since the driver returns JSON1 extension columns as plain TEXT.
func ScanSQLRows(rows *sql.Rows) (*table.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.New(cols)

	rawValues := make([]any, len(cols))
	values := make([]any, len(cols))
	for i := range rawValues {
		values[i] = &rawValues[i]
	}

	for rows.Next() {
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		row := make(table.Row, len(cols))
		for i, name := range cols {
			val := rawValues[i]
			if val == nil {
				row[name] = nil
				continue
			}
			if raw, ok := val.([]byte); ok {
				val = string(raw)
			}
			if s, ok := val.(string); ok && looksLikeJSONContainer(s) {
				var decoded any
				if json.Unmarshal([]byte(s), &decoded) == nil {
					val = decoded
				}
			}
			row[name] = val
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.InferKinds()
	return t, nil
}

// looksLikeJSONContainer guards against every bare numeric-looking string
// ("123", "4.5") being silently reinterpreted as a JSON number: only
// strings that look like an object or array are worth decoding, since a
// plain numeric string is almost always meant to stay a string (e.g. a
// zero-padded code).
func looksLikeJSONContainer(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
