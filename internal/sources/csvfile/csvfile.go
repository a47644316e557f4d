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

// Package csvfile implements the csv-file source driver: stdlib
// encoding/csv plus golang.org/x/text/encoding for entities whose files
// are not UTF-8.
package csvfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"encoding/csv"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func init() {
	if !sources.Register(project.DriverCSVFile, newSource) {
		panic(fmt.Sprintf("data source driver %q already registered", project.DriverCSVFile))
	}
}

type Source struct {
	name   string
	dir    string
	tracer trace.Tracer
}

var _ sources.Source = (*Source)(nil)

func newSource(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (sources.Source, error) {
	_, span := sources.InitConnectionSpan(ctx, tracer, string(project.DriverCSVFile), name)
	defer span.End()
	return &Source{name: name, dir: ds.Parameters["base_dir"], tracer: tracer}, nil
}

func (s *Source) Kind() string { return string(project.DriverCSVFile) }

// Query reads one CSV file. query carries the encoded options as
// "path|separator|encoding|has_header" (the Loader builds this from the
// entity's FileOptions; see internal/loader).
func (s *Source) Query(ctx context.Context, query string) (*table.Table, error) {
	_, span := sources.InitQuerySpan(ctx, s.tracer, s.Kind(), s.name, query)
	defer span.End()

	opts, err := parseFileQuery(query)
	if err != nil {
		return nil, util.NewConfigurationError(s.name, "options", "invalid csv query descriptor", err)
	}

	path := opts.filename
	if s.dir != "" && !isAbs(path) {
		path = s.dir + "/" + path
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, util.NewResourceError(s.name, fmt.Sprintf("unable to open csv file %q", path), false, err)
	}
	defer f.Close()

	reader, err := decodingReader(f, opts.encoding)
	if err != nil {
		return nil, util.NewConfigurationError(s.name, "options.encoding", "unsupported csv encoding", err)
	}

	cr := csv.NewReader(reader)
	cr.Comma = opts.separator
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, util.NewResourceError(s.name, fmt.Sprintf("error parsing csv file %q", path), false, err)
	}
	if len(records) == 0 {
		return table.New(nil), nil
	}

	var cols []string
	start := 0
	if opts.hasHeader {
		cols = records[0]
		start = 1
	} else {
		cols = make([]string, len(records[0]))
		for i := range cols {
			cols[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	t := table.New(cols)
	for _, rec := range records[start:] {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
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

type fileQuery struct {
	filename  string
	separator rune
	encoding  string
	hasHeader bool
}

func parseFileQuery(query string) (fileQuery, error) {
	parts := strings.Split(query, "|")
	if len(parts) != 4 {
		return fileQuery{}, fmt.Errorf("expected 4 pipe-separated fields, got %d", len(parts))
	}
	sep := ','
	if parts[1] != "" {
		r, _ := utf8.DecodeRuneInString(parts[1])
		sep = r
	}
	return fileQuery{
		filename:  parts[0],
		separator: sep,
		encoding:  parts[2],
		hasHeader: parts[3] != "false",
	}, nil
}

func decodingReader(r io.Reader, enc string) (io.Reader, error) {
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "utf-16":
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

func isAbs(path string) bool {
	return strings.HasPrefix(path, "/")
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
