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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/humlab-sead/shapeshifter/internal/graph"
)

func newGraphCommand(root *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "build the dependency graph and print cycles/topological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.requireProjectFile(); err != nil {
				return err
			}
			proj, err := loadProjectFile(root.projectFile)
			if err != nil {
				return err
			}

			g, issues := graph.Build(proj)
			out := cmd.OutOrStdout()

			if len(g.Cycles) > 0 {
				fmt.Fprintf(out, "%d cycle(s) detected:\n", len(g.Cycles))
				for _, cyc := range g.Cycles {
					fmt.Fprintf(out, "  %v\n", cyc)
				}
			} else {
				fmt.Fprintln(out, "topological order:")
				for _, name := range g.TopoOrder {
					fmt.Fprintf(out, "  %s (depth=%d)\n", name, g.Nodes[name].Depth)
				}
			}

			if orphans := g.Orphans(); len(orphans) > 0 {
				fmt.Fprintf(out, "orphan entities: %v\n", orphans)
			}
			for _, is := range issues {
				fmt.Fprintf(out, "[%s] %s entity=%s: %s\n", is.Severity, is.Code, is.Entity, is.Message)
			}
			return nil
		},
	}
	return cmd
}
