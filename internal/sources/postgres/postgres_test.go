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

package postgres

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/sources"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func TestBuildDSN(t *testing.T) {
	tcs := []struct {
		desc   string
		params map[string]string
		want   string
		err    bool
	}{
		{
			desc:   "minimal",
			params: map[string]string{"host": "db", "user": "u", "database": "d"},
			want:   "host=db port=5432 user=u dbname=d",
		},
		{
			desc: "all parameters",
			params: map[string]string{
				"host": "db", "port": "5433", "user": "u", "database": "d",
				"password": "pw", "sslmode": "disable",
			},
			want: "host=db port=5433 user=u dbname=d password=pw sslmode=disable",
		},
		{
			desc:   "missing database",
			params: map[string]string{"host": "db", "user": "u"},
			err:    true,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := buildDSN(tc.params)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// setupPostgres starts a disposable Postgres container and returns the
// connection parameters in the shape a project's data_sources block carries
// them.
func setupPostgres(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("shifter"),
		tcpostgres.WithPassword("testpass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	pw, _ := u.User.Password()
	return map[string]string{
		"host":     u.Hostname(),
		"port":     u.Port(),
		"user":     u.User.Username(),
		"password": pw,
		"database": "testdb",
		"sslmode":  "disable",
	}
}

func TestQueryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	params := setupPostgres(t)

	src, err := sources.Open(ctx, "pg",
		&project.DataSource{Driver: project.DriverSQLPostgres, Parameters: params},
		noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	_, err = src.Query(ctx, `CREATE TABLE tbl_sites (site_id INT PRIMARY KEY, site_name TEXT NOT NULL, latitude DOUBLE PRECISION)`)
	require.NoError(t, err)
	_, err = src.Query(ctx, `INSERT INTO tbl_sites VALUES (1, 'Ajvide', 57.4), (2, 'Birka', NULL)`)
	require.NoError(t, err)

	got, err := src.Query(ctx, "SELECT site_id, site_name, latitude FROM tbl_sites ORDER BY site_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"site_id", "site_name", "latitude"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.EqualValues(t, 1, got.Rows[0]["site_id"])
	assert.Equal(t, "Ajvide", got.Rows[0]["site_name"])
	assert.Nil(t, got.Rows[1]["latitude"])

	t.Run("bad sql is not retried into success", func(t *testing.T) {
		_, err := src.Query(ctx, "SELECT * FROM no_such_table")
		require.Error(t, err)
		var re *util.ResourceError
		assert.ErrorAs(t, err, &re)
	})

	t.Run("introspect schema", func(t *testing.T) {
		schema, err := src.IntrospectSchema(ctx, "tbl_sites")
		require.NoError(t, err)
		require.Len(t, schema.Columns, 3)
		assert.Equal(t, "site_id", schema.Columns[0].Name)
		assert.False(t, schema.Columns[1].Nullable)
		assert.True(t, schema.Columns[2].Nullable)
	})
}

func TestOpenUnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	_, err := sources.Open(ctx, "pg",
		&project.DataSource{Driver: project.DriverSQLPostgres, Parameters: map[string]string{
			"host": "127.0.0.1", "port": "1", "user": "u", "database": "d",
			"sslmode": "disable",
		}},
		noop.NewTracerProvider().Tracer("test"))
	require.Error(t, err)
	var re *util.ResourceError
	assert.ErrorAs(t, err, &re)
}
