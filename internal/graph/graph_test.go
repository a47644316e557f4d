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

package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humlab-sead/shapeshifter/internal/project"
)

func entity(kind project.EntityKind) *project.Entity {
	return &project.Entity{Kind: kind}
}

func fkEntity(parent string) *project.Entity {
	return &project.Entity{
		Kind: project.KindCSV,
		ForeignKeys: []*project.ForeignKey{
			{Entity: parent, LocalKeys: []string{"x_id"}, RemoteKeys: []string{"system_id"}, How: project.HowInner},
		},
	}
}

func newProject(entities map[string]*project.Entity) *project.Project {
	p := &project.Project{Name: "t", Entities: entities}
	p.Normalize()
	return p
}

func TestBuildTopoOrderAndDepths(t *testing.T) {
	entities := map[string]*project.Entity{
		"site":    entity(project.KindCSV),
		"sample":  fkEntity("site"),
		"analysis": fkEntity("sample"),
	}
	p := newProject(entities)

	g, issues := Build(p)
	require.Empty(t, issues)
	require.Empty(t, g.Cycles)
	require.Equal(t, []string{"site", "sample", "analysis"}, g.TopoOrder)

	assert.Equal(t, 0, g.Nodes["site"].Depth)
	assert.Equal(t, 1, g.Nodes["sample"].Depth)
	assert.Equal(t, 2, g.Nodes["analysis"].Depth)
}

func TestBuildMissingParentRecordsIssueAndOmitsEdge(t *testing.T) {
	entities := map[string]*project.Entity{
		"sample": fkEntity("nonexistent"),
	}
	p := newProject(entities)

	g, issues := Build(p)
	require.Len(t, issues, 1)
	assert.Equal(t, "MISSING_PARENT", issues[0].Code)
	assert.Empty(t, g.Edges)
	assert.Contains(t, g.Nodes, "sample")
}

func TestDetectCyclesCanonicalizesAndDedupes(t *testing.T) {
	entities := map[string]*project.Entity{
		"a": fkEntity("b"),
		"b": fkEntity("c"),
		"c": fkEntity("a"),
	}
	p := newProject(entities)

	g, _ := Build(p)
	require.Len(t, g.Cycles, 1)
	assert.Equal(t, []string{"a", "b", "c"}, g.Cycles[0])
	assert.Nil(t, g.TopoOrder)
}

func TestDetectCyclesSelfLoop(t *testing.T) {
	entities := map[string]*project.Entity{
		"a": fkEntity("a"),
	}
	p := newProject(entities)

	g, _ := Build(p)
	require.Len(t, g.Cycles, 1)
	assert.Equal(t, []string{"a"}, g.Cycles[0])
}

func TestTopoSortDeterministicTieBreak(t *testing.T) {
	entities := map[string]*project.Entity{
		"zeta": entity(project.KindCSV),
		"alpha": entity(project.KindCSV),
		"beta":  entity(project.KindCSV),
	}
	p := newProject(entities)

	g, issues := Build(p)
	require.Empty(t, issues)
	require.Equal(t, []string{"alpha", "beta", "zeta"}, g.TopoOrder)
}

func TestOrphans(t *testing.T) {
	entities := map[string]*project.Entity{
		"isolated": entity(project.KindCSV),
		"root":     entity(project.KindCSV),
		"child":    fkEntity("root"),
	}
	p := newProject(entities)

	g, _ := Build(p)
	assert.Equal(t, []string{"isolated"}, g.Orphans())
}

func TestDependsOnUnionsDerivedAndExplicitDepends(t *testing.T) {
	entities := map[string]*project.Entity{
		"base": entity(project.KindCSV),
		"derived": {
			Kind:      project.KindDerived,
			Source:    "base",
			DependsOn: []string{"base"},
		},
	}
	p := newProject(entities)

	g, issues := Build(p)
	require.Empty(t, issues)
	// "base" appears via both Source and DependsOn under different labels;
	// dependsOn dedups by name plus label, so it is kept once per label.
	assert.Contains(t, g.Nodes["derived"].DependsOn, "base")
}

func TestDeepDependencyChainWarning(t *testing.T) {
	entities := map[string]*project.Entity{
		"e0": entity(project.KindCSV),
	}
	prev := "e0"
	for i := 1; i <= 6; i++ {
		name := fmt.Sprintf("e%d", i)
		entities[name] = fkEntity(prev)
		prev = name
	}
	p := newProject(entities)

	_, issues := Build(p)
	var found bool
	for _, is := range issues {
		if is.Code == "DEEP_DEPENDENCY_CHAIN" {
			found = true
		}
	}
	assert.True(t, found, "expected a deep dependency chain warning")
}

func TestSourceSubgraphSQLEntity(t *testing.T) {
	entities := map[string]*project.Entity{
		"sample": {
			Kind:       project.KindSQL,
			DataSource: "db1",
			Table:      "samples",
		},
	}
	p := newProject(entities)
	p.DataSources = map[string]*project.DataSource{"db1": {Driver: project.DriverSQLPostgres}}

	g, _ := Build(p)
	require.NotEmpty(t, g.SourceEdges)
	assert.Contains(t, g.SourceNodes, "data_source:db1")
	assert.Contains(t, g.SourceNodes, "table:samples")
}

func TestSourceSubgraphXLSXEntityFileAndSheet(t *testing.T) {
	entities := map[string]*project.Entity{
		"sample": {
			Kind:    project.KindXLSX,
			Options: &project.FileOptions{Filename: "book.xlsx", Sheet: "Sheet1"},
		},
	}
	p := newProject(entities)

	g, _ := Build(p)
	assert.Contains(t, g.SourceNodes, "file:book.xlsx")
	assert.Contains(t, g.SourceNodes, "sheet:book.xlsx#Sheet1")
}
