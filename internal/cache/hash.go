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

package cache

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-yaml"

	"github.com/humlab-sead/shapeshifter/internal/graph"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

// EntityHash computes the cache's content hash: xxhash over the entity's own
// definition plus the recursively merged definitions of every entity it
// transitively depends on (via the Dependency Graph Service's DependsOn
// edges), so a change anywhere upstream invalidates every descendant's
// cached preview and validation results without the caller tracking lineage
// by hand.
//
// The digest is recomputed from the current definitions on every call,
// never memoized: an in-memory edit to an entity (or any ancestor) must
// change the hash immediately, even when the project's version token has
// not been bumped, or Get would report a hit against stale content.
func EntityHash(proj *project.Project, g *graph.Graph, entityName string) uint64 {
	closure := dependencyClosure(g, entityName)
	closure[entityName] = true

	names := make([]string, 0, len(closure))
	for n := range closure {
		names = append(names, n)
	}
	sort.Strings(names)

	digest := xxhash.New()
	for _, n := range names {
		writeEntityDigest(digest, n, proj.Entities[n])
	}
	return digest.Sum64()
}

// ProjectHash hashes every entity in proj, independent of any single
// entity's dependency closure. Engine.Validate uses this (under the
// synthetic entity name "__project__") to gate its whole-project
// structural/data issue list, since a single validation run covers every
// entity at once rather than one entity's lineage. Like EntityHash, it is
// recomputed fresh on every call.
func ProjectHash(proj *project.Project) uint64 {
	names := make([]string, 0, len(proj.Entities))
	for n := range proj.Entities {
		names = append(names, n)
	}
	sort.Strings(names)

	digest := xxhash.New()
	for _, n := range names {
		writeEntityDigest(digest, n, proj.Entities[n])
	}
	return digest.Sum64()
}

// dependencyClosure returns every entity name reachable by following
// DependsOn edges upward from entityName (ancestors), entityName excluded.
func dependencyClosure(g *graph.Graph, entityName string) map[string]bool {
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		node, ok := g.Nodes[n]
		if !ok {
			return
		}
		for _, p := range node.DependsOn {
			if !visited[p] {
				visited[p] = true
				walk(p)
			}
		}
	}
	walk(entityName)
	return visited
}

func writeEntityDigest(h *xxhash.Digest, name string, e *project.Entity) {
	fmt.Fprintf(h, "entity:%s\x00", name)
	if e == nil {
		return
	}
	// A deterministic-enough serialization for a content hash: struct field
	// order is fixed, and goccy/go-yaml is already the project's decode
	// library (internal/project), so this reuses rather than reinvents a
	// canonical encoding.
	data, err := yaml.Marshal(e)
	if err != nil {
		fmt.Fprintf(h, "err:%v", err)
		return
	}
	h.Write(data)
}
