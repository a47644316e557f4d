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
	"strings"
)

type color int

const (
	colorWhite color = iota
	colorGray
	colorBlack
)

// detectCycles runs a depth-first traversal with three-color marking over
// nodes, reporting every simple cycle found via a back edge. Each
// cycle is canonicalized — rotated so its lexicographically least member
// comes first — and deduplicated by that canonical form so repeated
// traversals through a shared node don't report the same cycle twice.
func detectCycles(nodes map[string]*Node) [][]string {
	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	colors := make(map[string]color, len(nodes))
	var stack []string
	seen := map[string]bool{}
	var out [][]string

	var dfs func(name string)
	dfs = func(name string) {
		colors[name] = colorGray
		stack = append(stack, name)
		parents := append([]string{}, nodes[name].DependsOn...)
		sort.Strings(parents)
		for _, p := range parents {
			switch colors[p] {
			case colorWhite:
				dfs(p)
			case colorGray:
				cyc := canonicalize(cycleFromStack(stack, p))
				key := strings.Join(cyc, "\x00")
				if !seen[key] {
					seen[key] = true
					out = append(out, cyc)
				}
			case colorBlack:
				// p is fully explored with no path back to anything still
				// on the stack; no new cycle passes through this edge.
			}
		}
		stack = stack[:len(stack)-1]
		colors[name] = colorBlack
	}

	for _, n := range names {
		if colors[n] == colorWhite {
			dfs(n)
		}
	}
	return out
}

func cycleFromStack(stack []string, target string) []string {
	for i, s := range stack {
		if s == target {
			cyc := make([]string, len(stack)-i)
			copy(cyc, stack[i:])
			return cyc
		}
	}
	return nil
}

func canonicalize(cyc []string) []string {
	if len(cyc) == 0 {
		return cyc
	}
	minIdx := 0
	for i, s := range cyc {
		if s < cyc[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, len(cyc))
	for i := range cyc {
		out[i] = cyc[(minIdx+i)%len(cyc)]
	}
	return out
}

// topoSort runs Kahn's algorithm over nodes using childrenOf as the
// precedence-direction adjacency (parent → child), breaking ties by entity
// name for determinism. Callers must only invoke this once
// detectCycles has confirmed the graph is acyclic.
func topoSort(nodes map[string]*Node, childrenOf map[string][]string) []string {
	indeg := make(map[string]int, len(nodes))
	for name, n := range nodes {
		indeg[name] = len(n.DependsOn)
	}

	var ready []string
	for name, d := range indeg {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		children := append([]string{}, childrenOf[next]...)
		sort.Strings(children)
		for _, c := range children {
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	return order
}
