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
	"sort"

	"github.com/humlab-sead/shapeshifter/internal/graph/sqlparse"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

// buildSourceSubgraph extracts source-level lineage: for each
// entity, its physical origin (data source, table/file, sheet), with
// supplementary nodes tagged by a distinct NodeKind. A sql entity's
// free-text query is run through sqlparse.ExtractTables when no bare
// Table name is declared.
//
// For Excel entities the lineage is the two-edge chain entity→file,
// file→sheet; a third edge from sheet back to the entity would make the
// source subgraph cyclic for every Excel entity, so it is not emitted.
func buildSourceSubgraph(proj *project.Project, g *Graph) {
	names := make([]string, 0, len(proj.Entities))
	for name := range proj.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := proj.Entities[name]
		switch e.Kind {
		case project.KindSQL:
			buildSQLLineage(g, name, e)
		case project.KindCSV:
			buildFileLineage(g, name, e, false)
		case project.KindXLSX:
			buildFileLineage(g, name, e, true)
		}
	}
}

func buildSQLLineage(g *Graph, name string, e *project.Entity) {
	tables := []string{e.Table}
	if e.Table == "" {
		tables = sqlparse.ExtractTables(e.Query)
	}
	if e.DataSource != "" {
		dsNode := sourceNodeName(NodeDataSource, e.DataSource)
		g.addSourceNode(dsNode, NodeDataSource)
		for _, t := range tables {
			if t == "" {
				continue
			}
			tNode := sourceNodeName(NodeTable, t)
			g.addSourceNode(tNode, NodeTable)
			g.SourceEdges = append(g.SourceEdges, Edge{Child: name, Parent: tNode, Label: "contains"})
			g.SourceEdges = append(g.SourceEdges, Edge{Child: tNode, Parent: dsNode, Label: "contains"})
		}
	}
}

func buildFileLineage(g *Graph, name string, e *project.Entity, excel bool) {
	if e.Options == nil || e.Options.Filename == "" {
		return
	}
	fileNode := sourceNodeName(NodeFile, e.Options.Filename)
	g.addSourceNode(fileNode, NodeFile)
	g.SourceEdges = append(g.SourceEdges, Edge{Child: name, Parent: fileNode, Label: "contains"})
	if excel && e.Options.Sheet != "" {
		sheetNode := sourceNodeName(NodeSheet, e.Options.Filename+"#"+e.Options.Sheet)
		g.addSourceNode(sheetNode, NodeSheet)
		g.SourceEdges = append(g.SourceEdges, Edge{Child: fileNode, Parent: sheetNode, Label: "contains"})
	}
}

func sourceNodeName(kind NodeKind, name string) string {
	return string(kind) + ":" + name
}

func (g *Graph) addSourceNode(key string, kind NodeKind) {
	if _, ok := g.SourceNodes[key]; ok {
		return
	}
	g.SourceNodes[key] = &Node{Name: key, Kind: kind}
}
