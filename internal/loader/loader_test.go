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

package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

func openEmpty(t *testing.T) *Loader {
	t.Helper()
	proj := &project.Project{Name: "test", Entities: map[string]*project.Entity{}}
	l, err := Open(context.Background(), proj, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLoadFixed(t *testing.T) {
	l := openEmpty(t)
	e := &project.Entity{
		Name:    "location",
		Kind:    project.KindFixed,
		Columns: []string{"location_name", "country_code"},
		Values: [][]any{
			{"Norway", "NO"},
			{"Sweden", "SE"},
		},
	}

	got, err := l.Load(context.Background(), e, tablestore.New(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"location_name", "country_code"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Norway", got.Rows[0]["location_name"])
	assert.Equal(t, "SE", got.Rows[1]["country_code"])
}

func TestLoadFixedRowWidthMismatch(t *testing.T) {
	l := openEmpty(t)
	e := &project.Entity{
		Name:    "location",
		Kind:    project.KindFixed,
		Columns: []string{"location_name", "country_code"},
		Values:  [][]any{{"Norway"}},
	}

	_, err := l.Load(context.Background(), e, tablestore.New(nil))
	require.Error(t, err)
	var cfg *util.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}

func TestLoadDerivedClones(t *testing.T) {
	l := openEmpty(t)
	store := tablestore.New([]string{"base"})
	src := table.New([]string{"name"})
	src.Rows = append(src.Rows, table.Row{"name": "x"})
	store.Put("base", src)

	e := &project.Entity{Name: "copy", Kind: project.KindDerived, Source: "base"}
	got, err := l.Load(context.Background(), e, store)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)

	// The derived copy must not alias the parent's stored rows.
	got.Rows[0]["name"] = "mutated"
	assert.Equal(t, "x", src.Rows[0]["name"])
}

func TestLoadDerivedNotReadyIsInvariantBreak(t *testing.T) {
	l := openEmpty(t)
	store := tablestore.New([]string{"base"})

	e := &project.Entity{Name: "copy", Kind: project.KindDerived, Source: "base"}
	_, err := l.Load(context.Background(), e, store)
	require.Error(t, err)
	var inv *util.InternalInvariantBroken
	assert.True(t, errors.As(err, &inv))
}

func TestQueryRawUnknownSource(t *testing.T) {
	l := openEmpty(t)
	_, err := l.QueryRaw(context.Background(), "nope", "SELECT 1")
	require.Error(t, err)
	var cfg *util.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}

func TestLoadSQLUnknownSource(t *testing.T) {
	l := openEmpty(t)
	e := &project.Entity{Name: "s", Kind: project.KindSQL, DataSource: "missing", Table: "tbl"}
	_, err := l.Load(context.Background(), e, tablestore.New(nil))
	require.Error(t, err)
	var cfg *util.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}
