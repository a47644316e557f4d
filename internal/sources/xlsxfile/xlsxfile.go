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

// Package xlsxfile implements the excel-file Data Source Registry driver
// over github.com/xuri/excelize/v2.
package xlsxfile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func init() {
	if !sources.Register(project.DriverExcelFile, newSource) {
		panic(fmt.Sprintf("data source driver %q already registered", project.DriverExcelFile))
	}
}

type Source struct {
	name   string
	dir    string
	tracer trace.Tracer
}

var _ sources.Source = (*Source)(nil)

func newSource(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (sources.Source, error) {
	_, span := sources.InitConnectionSpan(ctx, tracer, string(project.DriverExcelFile), name)
	defer span.End()
	return &Source{name: name, dir: ds.Parameters["base_dir"], tracer: tracer}, nil
}

func (s *Source) Kind() string { return string(project.DriverExcelFile) }

// Query reads one declared sheet. query carries "path|sheet|has_header",
// mirroring csvfile's encoded-descriptor convention.
func (s *Source) Query(ctx context.Context, query string) (*table.Table, error) {
	_, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, query)
	defer span.End()

	path, sheet, hasHeader, err := parseFileQuery(query)
	if err != nil {
		return nil, util.NewConfigurationError(s.name, "options", "invalid xlsx query descriptor", err)
	}
	if s.dir != "" && !strings.HasPrefix(path, "/") {
		path = s.dir + "/" + path
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, util.NewResourceError(s.name, fmt.Sprintf("unable to open xlsx file %q", path), false, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, util.NewResourceError(s.name, fmt.Sprintf("unable to read sheet %q", sheet), false, err)
	}
	if len(rows) == 0 {
		return table.New(nil), nil
	}

	var cols []string
	start := 0
	width := len(rows[0])
	if hasHeader {
		cols = padRow(rows[0], width)
		start = 1
	} else {
		cols = make([]string, width)
		for i := range cols {
			cols[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	t := table.New(cols)
	for _, rec := range rows[start:] {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) && rec[i] != "" {
				row[c] = rec[i]
			} else {
				row[c] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	t.InferKinds()
	return t, nil
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	for i, v := range out {
		if v == "" {
			out[i] = "column_" + strconv.Itoa(i+1)
		}
	}
	return out
}

func parseFileQuery(query string) (path, sheet string, hasHeader bool, err error) {
	parts := strings.Split(query, "|")
	if len(parts) != 3 {
		return "", "", false, fmt.Errorf("expected 3 pipe-separated fields, got %d", len(parts))
	}
	return parts[0], parts[1], parts[2] != "false", nil
}

func (s *Source) IntrospectSchema(ctx context.Context, tableOrQuery string) (*sources.Schema, error) {
	t, err := s.Query(ctx, tableOrQuery)
	if err != nil {
		return nil, err
	}
	schema := &sources.Schema{ForeignKeys: map[string]string{}}
	for _, c := range t.Columns {
		schema.Columns = append(schema.Columns, sources.Column{Name: c, Kind: t.Kinds[c], Nullable: true})
	}
	return schema, nil
}

func (s *Source) Close() error { return nil }
