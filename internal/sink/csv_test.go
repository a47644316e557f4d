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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
)

// testResult builds a two-entity result the way the Normalizer would have
// left it: location first, then site carrying location's public_id column.
func testResult() *normalizer.Result {
	store := tablestore.New([]string{"location", "site"})

	location := table.New([]string{"location_name", "system_id"})
	location.Rows = append(location.Rows,
		table.Row{"location_name": "Norway", "system_id": 1},
		table.Row{"location_name": "Sweden", "system_id": 2},
	)
	store.Put("location", location)

	site := table.New([]string{"site_name", "location_id", "system_id"})
	site.Rows = append(site.Rows,
		table.Row{"site_name": "A", "location_id": 1, "system_id": 1},
		table.Row{"site_name": "B", "location_id": 2, "system_id": 2},
	)
	store.Put("site", site)

	return &normalizer.Result{TableStore: store}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVFolderWriter(t *testing.T) {
	dir := t.TempDir()
	w := &CSVFolderWriter{Dir: filepath.Join(dir, "out")}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), Options{}))

	site := readCSVFile(t, filepath.Join(dir, "out", "site.csv"))
	require.Len(t, site, 3)
	assert.Equal(t, []string{"site_name", "location_id", "system_id"}, site[0])
	assert.Equal(t, []string{"A", "1", "1"}, site[1])
	assert.Equal(t, []string{"B", "2", "2"}, site[2])

	location := readCSVFile(t, filepath.Join(dir, "out", "location.csv"))
	require.Len(t, location, 3)
	assert.Equal(t, []string{"location_name", "system_id"}, location[0])
}

func TestCSVFolderWriterDropFKColumns(t *testing.T) {
	dir := t.TempDir()
	w := &CSVFolderWriter{Dir: dir}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), Options{DropFKColumns: true}))

	site := readCSVFile(t, filepath.Join(dir, "site.csv"))
	assert.Equal(t, []string{"site_name", "system_id"}, site[0])
}

func TestCSVFolderWriterTranslations(t *testing.T) {
	dir := t.TempDir()
	w := &CSVFolderWriter{Dir: dir}
	opts := Options{Translations: map[string]string{"site.site_name": "name"}}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), opts))

	site := readCSVFile(t, filepath.Join(dir, "site.csv"))
	assert.Equal(t, []string{"name", "location_id", "system_id"}, site[0])
}

func TestCSVBundleWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	w := &CSVBundleWriter{Path: path}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), Options{}))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"location.csv", "site.csv"}, names)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	recs, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"site_name", "location_id", "system_id"}, recs[0])
}

func TestSingleCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	w := &SingleCSVWriter{Path: path}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), Options{}))

	recs := readCSVFile(t, path)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"entity_name", "location_name", "system_id", "site_name", "location_id"}, recs[0])
	assert.Equal(t, "location", recs[1][0])
	assert.Equal(t, "site", recs[3][0])
	// A location row has no site_name; the union column renders empty.
	assert.Equal(t, "", recs[1][3])
}
