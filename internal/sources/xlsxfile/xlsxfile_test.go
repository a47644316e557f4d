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

package xlsxfile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/trace/noop"
)

func writeWorkbook(t *testing.T, dir, name, sheet string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	if sheet != "Sheet1" {
		idx, err := f.NewSheet(sheet)
		require.NoError(t, err)
		f.SetActiveSheet(idx)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestQueryReadsNamedSheetWithHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "book.xlsx", "sites", [][]string{
		{"site_name", "region"},
		{"north", "arctic"},
		{"south", "temperate"},
	})

	src := &Source{name: "ds", tracer: noop.NewTracerProvider().Tracer("test")}
	tbl, err := src.Query(context.Background(), path+"|sites|true")
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "north", tbl.Rows[0]["site_name"])
}

func TestQueryDefaultsToFirstSheetWhenNoneNamed(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "book.xlsx", "onlysheet", [][]string{
		{"a"}, {"1"},
	})

	src := &Source{name: "ds", tracer: noop.NewTracerProvider().Tracer("test")}
	tbl, err := src.Query(context.Background(), path+"||true")
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
}

func TestQuerySynthesizesColumnNamesWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "book.xlsx", "sites", [][]string{
		{"north", "arctic"},
	})

	src := &Source{name: "ds", tracer: noop.NewTracerProvider().Tracer("test")}
	tbl, err := src.Query(context.Background(), path+"|sites|false")
	require.NoError(t, err)
	require.True(t, tbl.HasColumn("column_1"))
	assert.Equal(t, "north", tbl.Rows[0]["column_1"])
}

func TestQueryResolvesRelativePathAgainstBaseDir(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, "book.xlsx", "sites", [][]string{{"a"}, {"1"}})

	src := &Source{name: "ds", dir: dir, tracer: noop.NewTracerProvider().Tracer("test")}
	tbl, err := src.Query(context.Background(), "book.xlsx|sites|true")
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)
}

func TestQueryMissingFileReturnsResourceError(t *testing.T) {
	src := &Source{name: "ds", tracer: noop.NewTracerProvider().Tracer("test")}
	_, err := src.Query(context.Background(), "/no/such/book.xlsx|sheet1|true")
	require.Error(t, err)
}

func TestQueryMalformedDescriptorReturnsConfigurationError(t *testing.T) {
	src := &Source{name: "ds", tracer: noop.NewTracerProvider().Tracer("test")}
	_, err := src.Query(context.Background(), "only|two")
	require.Error(t, err)
}

func TestPadRowFillsBlankHeaderCellsWithSyntheticNames(t *testing.T) {
	out := padRow([]string{"a", ""}, 3)
	assert.Equal(t, []string{"a", "column_2", "column_3"}, out)
}
