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
	"github.com/humlab-sead/shapeshifter/internal/loader"
)

func newPreviewCommand(root *Command) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "preview <entity>",
		Short: "run a bounded preview of one entity through the preview cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.requireProjectFile(); err != nil {
				return err
			}
			proj, err := loadProjectFile(root.projectFile)
			if err != nil {
				return err
			}

			entity := args[0]
			if _, ok := proj.Entities[entity]; !ok {
				return fmt.Errorf("entity %q not defined in project", entity)
			}

			ctx := cmd.Context()
			tracer := root.tracer

			g, _ := graph.Build(proj)
			if len(g.Cycles) > 0 {
				return fmt.Errorf("project contains cycles, cannot preview: %v", g.Cycles)
			}

			ld, err := loader.Open(ctx, proj, tracer)
			if err != nil {
				return err
			}
			defer ld.Close()

			art, err := root.cache.PreviewEntity(ctx, proj, g, ld, entity, limit, proj.VersionToken, root.logger, tracer)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "entity=%s rows=%d cache_hit=%v execution_time_ms=%d transforms=%v\n",
				art.Entity, len(art.Table.Rows), art.CacheHit, art.ExecutionTimeMS, art.AppliedTransforms)
			for _, r := range art.Table.Rows {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max rows to preview (0 = default 1000)")
	return cmd
}
