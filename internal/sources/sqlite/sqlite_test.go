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

package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE tbl_sites (
		site_id INTEGER PRIMARY KEY,
		site_name TEXT NOT NULL,
		latitude REAL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tbl_sites (site_id, site_name, latitude) VALUES
		(1, 'Ajvide', 57.4),
		(2, 'Birka', NULL)`)
	require.NoError(t, err)
	return path
}

func openSource(t *testing.T, driver project.SourceDriver, path string) sources.Source {
	t.Helper()
	src, err := sources.Open(context.Background(), "testdb",
		&project.DataSource{Driver: driver, Parameters: map[string]string{"path": path}},
		noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestQuery(t *testing.T) {
	src := openSource(t, project.DriverSQLSQLite, seedDatabase(t))

	got, err := src.Query(context.Background(), "SELECT * FROM tbl_sites ORDER BY site_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"site_id", "site_name", "latitude"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.EqualValues(t, 1, got.Rows[0]["site_id"])
	assert.Equal(t, "Ajvide", got.Rows[0]["site_name"])
	assert.Nil(t, got.Rows[1]["latitude"])
}

func TestQueryBadSQL(t *testing.T) {
	src := openSource(t, project.DriverSQLSQLite, seedDatabase(t))

	_, err := src.Query(context.Background(), "SELECT * FROM no_such_table")
	require.Error(t, err)
	var re *util.ResourceError
	assert.ErrorAs(t, err, &re)
}

func TestIntrospectSchema(t *testing.T) {
	src := openSource(t, project.DriverSQLSQLite, seedDatabase(t))

	schema, err := src.IntrospectSchema(context.Background(), "tbl_sites")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)
	assert.Equal(t, "site_id", schema.Columns[0].Name)
	assert.False(t, schema.Columns[1].Nullable)
	assert.True(t, schema.Columns[2].Nullable)
	assert.Equal(t, []string{"site_id"}, schema.PrimaryKeys)
}

func TestAccessDriverSharesImplementation(t *testing.T) {
	src := openSource(t, project.DriverSQLAccess, seedDatabase(t))
	assert.Equal(t, string(project.DriverSQLAccess), src.Kind())

	got, err := src.Query(context.Background(), "SELECT site_name FROM tbl_sites ORDER BY site_id")
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Birka", got.Rows[1]["site_name"])
}

func TestMissingPathParameter(t *testing.T) {
	_, err := sources.Open(context.Background(), "bad",
		&project.DataSource{Driver: project.DriverSQLSQLite, Parameters: map[string]string{}},
		noop.NewTracerProvider().Tracer("test"))
	require.Error(t, err)
	var cfg *util.ConfigurationError
	assert.ErrorAs(t, err, &cfg)
}
