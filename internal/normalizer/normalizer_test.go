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

package normalizer

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/log"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

func testLogger(t *testing.T) log.Logger {
	t.Helper()
	l, err := log.NewLogger("standard", "error", io.Discard, io.Discard)
	require.NoError(t, err)
	return l
}

func openLoader(t *testing.T, proj *project.Project) *loader.Loader {
	t.Helper()
	ld, err := loader.Open(context.Background(), proj, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	t.Cleanup(func() { ld.Close() })
	return ld
}

// linkedFixedProject builds two fixed entities, site and sample, with
// sample holding a many_to_one FK to site — the smallest scenario that
// exercises the Loader, system_id assignment, and Linker end to end.
func linkedFixedProject() *project.Project {
	site := &project.Entity{
		Kind:     project.KindFixed,
		Columns:  []string{"site_name"},
		Keys:     []string{"site_name"},
		PublicID: "site_id",
		Values: [][]any{
			{"north"},
			{"south"},
		},
	}
	sample := &project.Entity{
		Kind:     project.KindFixed,
		Columns:  []string{"sample_name", "site_name"},
		Keys:     []string{"sample_name"},
		PublicID: "sample_id",
		Values: [][]any{
			{"samp-1", "north"},
			{"samp-2", "south"},
		},
		ForeignKeys: []*project.ForeignKey{
			{
				Entity:     "site",
				LocalKeys:  []string{"site_name"},
				RemoteKeys: []string{"site_name"},
				How:        project.HowInner,
				Constraints: &project.ForeignKeyConstraints{
					Cardinality: project.CardinalityManyToOne,
				},
			},
		},
	}
	p := &project.Project{
		Name: "p",
		Entities: map[string]*project.Entity{
			"site":   site,
			"sample": sample,
		},
	}
	p.Normalize()
	return p
}

func TestNormalizeLinkedFixedEntitiesEndToEnd(t *testing.T) {
	p := linkedFixedProject()
	ld := openLoader(t, p)
	logger := testLogger(t)
	tracer := noop.NewTracerProvider().Tracer("test")

	opts := ResolveOptions(p, Options{})
	result, err := Normalize(context.Background(), p, ld, opts, logger, tracer)
	require.NoError(t, err)

	siteTable, err := result.TableStore.Get("site")
	require.NoError(t, err)
	assert.Len(t, siteTable.Rows, 2)
	assert.True(t, siteTable.HasColumn("system_id"))

	sampleTable, err := result.TableStore.Get("sample")
	require.NoError(t, err)
	require.Len(t, sampleTable.Rows, 2)
	assert.True(t, sampleTable.HasColumn("site_id"))
	assert.False(t, sampleTable.HasColumn("site_name"), "FK local key should be rewritten away")

	assert.Equal(t, StateDone, result.PerEntityStats["site"].State)
	assert.Equal(t, StateDone, result.PerEntityStats["sample"].State)
}

func TestNormalizeRefusesOnCycle(t *testing.T) {
	a := &project.Entity{
		Kind: project.KindFixed,
		ForeignKeys: []*project.ForeignKey{
			{Entity: "b", LocalKeys: []string{"x"}, RemoteKeys: []string{"y"}, How: project.HowInner,
				Constraints: &project.ForeignKeyConstraints{Cardinality: project.CardinalityManyToOne}},
		},
	}
	b := &project.Entity{
		Kind: project.KindFixed,
		ForeignKeys: []*project.ForeignKey{
			{Entity: "a", LocalKeys: []string{"y"}, RemoteKeys: []string{"x"}, How: project.HowInner,
				Constraints: &project.ForeignKeyConstraints{Cardinality: project.CardinalityManyToOne}},
		},
	}
	p := &project.Project{Name: "p", Entities: map[string]*project.Entity{"a": a, "b": b}}
	p.Normalize()

	ld := openLoader(t, p)
	_, err := Normalize(context.Background(), p, ld, Options{}, testLogger(t), noop.NewTracerProvider().Tracer("test"))
	require.Error(t, err)
	assert.Equal(t, "CYCLE_DETECTED", err.(interface{ Code() string }).Code())
}

func TestNormalizeStopOnErrorSkipsDescendants(t *testing.T) {
	p := linkedFixedProject()
	// force sample's FK link to fail: duplicate local keys under
	// require_unique_left.
	p.Entities["sample"].Values = [][]any{
		{"samp-1", "north"},
		{"samp-2", "north"},
	}
	p.Entities["sample"].ForeignKeys[0].Constraints.RequireUniqueLeft = true

	ld := openLoader(t, p)
	opts := ResolveOptions(p, Options{StopOnError: false})
	result, err := Normalize(context.Background(), p, ld, opts, testLogger(t), noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err, "stop_on_error=false should let the run complete despite one entity failing")

	assert.Equal(t, StateDone, result.PerEntityStats["site"].State)
	assert.Equal(t, StateFailed, result.PerEntityStats["sample"].State)
	require.Error(t, result.PerEntityStats["sample"].Err)
}

func TestNormalizeDeterministicAcrossWorkerWidths(t *testing.T) {
	for _, width := range []int{1, 4, 8} {
		p := linkedFixedProject()
		ld := openLoader(t, p)
		opts := ResolveOptions(p, Options{WorkerPoolWidth: width})
		result, err := Normalize(context.Background(), p, ld, opts, testLogger(t), noop.NewTracerProvider().Tracer("test"))
		require.NoError(t, err)

		sampleTable, err := result.TableStore.Get("sample")
		require.NoError(t, err)
		assert.Len(t, sampleTable.Rows, 2, "worker width %d should not change row count", width)
	}
}

func TestNormalizeCancellationBeforeRunReturnsNoPartialResult(t *testing.T) {
	p := linkedFixedProject()
	ld := openLoader(t, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Normalize(ctx, p, ld, Options{}, testLogger(t), noop.NewTracerProvider().Tracer("test"))
	require.Error(t, err)
	assert.Nil(t, result)
}
