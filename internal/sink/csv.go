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
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/table"
)

// CSVFolderWriter is the CSV folder target: one {entity}.csv file per
// entity in a directory, built with stdlib encoding/csv — the same
// library choice internal/sources/csvfile makes on the read side.
type CSVFolderWriter struct {
	Dir string
}

var _ Dispatcher = (*CSVFolderWriter)(nil)

func (w *CSVFolderWriter) Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("sink: creating csv folder: %w", err)
	}
	names, tables := entityTables(result, opts)
	for _, name := range names {
		f, err := os.Create(filepath.Join(w.Dir, name+".csv"))
		if err != nil {
			return fmt.Errorf("sink: creating %s.csv: %w", name, err)
		}
		err = writeCSV(f, tables[name])
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// CSVBundleWriter is the CSV bundle target: the same one-file-per-entity
// layout as CSVFolderWriter, packed into a single zip archive instead of a
// directory.
type CSVBundleWriter struct {
	Path string
}

var _ Dispatcher = (*CSVBundleWriter)(nil)

func (w *CSVBundleWriter) Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("sink: creating csv bundle: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	names, tables := entityTables(result, opts)
	for _, name := range names {
		entry, err := zw.Create(name + ".csv")
		if err != nil {
			return err
		}
		if err := writeCSV(entry, tables[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// SingleCSVWriter is the single-CSV target: one file whose rows carry an
// (entity_name, ...) prefix, used rarely — every entity's
// columns are unioned (in first-seen order) so every row has the same
// shape regardless of which entity it came from.
type SingleCSVWriter struct {
	Path string
}

var _ Dispatcher = (*SingleCSVWriter)(nil)

func (w *SingleCSVWriter) Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("sink: creating single csv: %w", err)
	}
	defer f.Close()

	names, tables := entityTables(result, opts)
	union := unionColumns(names, tables)

	cw := csv.NewWriter(f)
	header := append([]string{"entity_name"}, union...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, name := range names {
		t := tables[name]
		for _, r := range t.Rows {
			rec := make([]string, 0, len(union)+1)
			rec = append(rec, name)
			for _, c := range union {
				rec = append(rec, cellString(r[c]))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func unionColumns(names []string, tables map[string]*table.Table) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range names {
		for _, c := range tables[name].Columns {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			rec[i] = cellString(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
