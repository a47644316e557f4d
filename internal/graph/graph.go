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

// Package graph is the Dependency Graph Service: builds the
// entity-level DAG from foreign keys, `source`, `depends_on`, and frozen
// materialized lineage, runs cycle detection and Kahn's-algorithm
// topological sort, computes node depths, and extracts a supplementary
// source-level subgraph (data sources, tables, files, sheets) for lineage
// display. Nodes never hold parent pointers: Graph keeps a flat Nodes map
// plus a separate childrenOf adjacency index built alongside the
// topological sort.
package graph

import (
	"sort"
	"strconv"

	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

// NodeKind distinguishes an entity node from the supplementary
// source-level lineage nodes.
type NodeKind string

const (
	NodeEntity     NodeKind = "entity"
	NodeDataSource NodeKind = "data_source"
	NodeTable      NodeKind = "table"
	NodeFile       NodeKind = "file"
	NodeSheet      NodeKind = "sheet"
)

// Node is one vertex of the entity graph.
type Node struct {
	Name      string
	Kind      NodeKind
	Depth     int
	DependsOn []string
}

// Edge is a directed child→parent dependency with a descriptive label
// (e.g. a "derived_from (frozen)" suffix for lineage recovered from a
// frozen fixed entity).
type Edge struct {
	Child string
	Parent string
	Label  string
}

// Graph is the Dependency Graph Service's output.
type Graph struct {
	Nodes     map[string]*Node
	Edges     []Edge
	Cycles    [][]string
	TopoOrder []string // nil if cycles exist

	SourceNodes map[string]*Node
	SourceEdges []Edge

	// childrenOf is the reverse-of-DependsOn adjacency index used by the
	// topological sort; kept private so nothing outside this package is
	// tempted to hold a back-pointer in a Node.
	childrenOf map[string][]string
}

// Build constructs the full Graph from proj. It never fails: a missing FK
// parent or an undefined depends_on target is recorded as a
// MISSING_PARENT issue, the node is still emitted, and the dangling edge
// is simply omitted.
func Build(proj *project.Project) (*Graph, []issue.Issue) {
	g := &Graph{
		Nodes:       make(map[string]*Node, len(proj.Entities)),
		SourceNodes: make(map[string]*Node),
		childrenOf:  make(map[string][]string, len(proj.Entities)),
	}
	var issues []issue.Issue

	names := make([]string, 0, len(proj.Entities))
	for name := range proj.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g.Nodes[name] = &Node{Name: name, Kind: NodeEntity}
	}

	for _, name := range names {
		e := proj.Entities[name]
		deps := dependsOn(e)
		for _, d := range deps {
			if _, ok := proj.Entities[d.name]; !ok {
				issues = append(issues, issue.Issue{
					Severity: issue.SeverityError,
					Entity:   name,
					Field:    d.field,
					Code:     issue.CodeMissingParent,
					Category: issue.CategoryStructural,
					Priority: issue.PriorityHigh,
					Message:  "references undefined entity " + d.name,
				})
				continue
			}
			g.Nodes[name].DependsOn = append(g.Nodes[name].DependsOn, d.name)
			g.Edges = append(g.Edges, Edge{Child: name, Parent: d.name, Label: d.label})
			g.childrenOf[d.name] = append(g.childrenOf[d.name], name)
		}
	}

	g.Cycles = detectCycles(g.Nodes)
	if len(g.Cycles) == 0 {
		g.TopoOrder = topoSort(g.Nodes, g.childrenOf)
		computeDepths(g)
	} else {
		for _, n := range g.Nodes {
			if len(n.DependsOn) == 0 {
				n.Depth = 0
			} else {
				n.Depth = 1
			}
		}
	}

	buildSourceSubgraph(proj, g)

	for _, n := range g.Nodes {
		if n.Depth > 5 {
			issues = append(issues, issue.Issue{
				Severity: issue.SeverityWarning,
				Entity:   n.Name,
				Code:     issue.CodeDeepDependencyChain,
				Category: issue.CategoryStructural,
				Priority: issue.PriorityLow,
				Message:  "entity sits at dependency depth > 5",
			})
		}
	}

	return g, issues
}

type dep struct {
	name  string
	field string
	label string
}

// dependsOn unions every dependency an entity declares: FK targets, the
// derived `source`, explicit depends_on, and frozen materialized lineage.
func dependsOn(e *project.Entity) []dep {
	var out []dep
	seen := map[string]bool{}
	add := func(name, field, label string) {
		key := name + "\x00" + label
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, dep{name: name, field: field, label: label})
	}
	for i, fk := range e.ForeignKeys {
		add(fk.Entity, fieldName(i), "references")
	}
	if e.Kind == project.KindDerived {
		add(e.Source, "source", "derived_from")
	}
	for _, d := range e.DependsOn {
		add(d, "depends_on", "depends_on")
	}
	if e.Materialized != nil {
		for _, s := range e.Materialized.SourceState {
			add(s, "materialized.source_state", "derived_from (frozen)")
		}
	}
	return out
}

func fieldName(i int) string {
	return "foreign_keys[" + strconv.Itoa(i) + "].entity"
}

// computeDepths walks the topological order (parents are guaranteed to
// precede children in it) assigning depth(e) = 0 for roots, else
// 1 + max(depth(p)) over its dependencies.
func computeDepths(g *Graph) {
	depth := make(map[string]int, len(g.TopoOrder))
	for _, name := range g.TopoOrder {
		n := g.Nodes[name]
		if len(n.DependsOn) == 0 {
			depth[name] = 0
		} else {
			max := 0
			for _, p := range n.DependsOn {
				if d := depth[p]; d+1 > max {
					max = d + 1
				}
			}
			depth[name] = max
		}
		n.Depth = depth[name]
	}
}

// Orphans returns entities defined but unreachable from any other entity
// and with no children of their own — the structural orphan check,
// exposed here since it is purely a graph-shape query.
func (g *Graph) Orphans() []string {
	var out []string
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := g.Nodes[name]
		if len(n.DependsOn) == 0 && len(g.childrenOf[name]) == 0 {
			out = append(out, name)
		}
	}
	return out
}
