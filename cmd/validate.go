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

	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/validation"
)

func newValidateCommand(root *Command) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "run structural and/or data validators against a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.requireProjectFile(); err != nil {
				return err
			}
			proj, err := loadProjectFile(root.projectFile)
			if err != nil {
				return err
			}

			m := validation.Mode(mode)
			switch m {
			case validation.ModeStructural, validation.ModeSample, validation.ModeComplete:
			default:
				return fmt.Errorf("unknown validate mode %q (want structural, sample, or complete)", mode)
			}

			ctx := cmd.Context()
			tracer := root.tracer

			var ld *loader.Loader
			if m != validation.ModeStructural {
				ld, err = loader.Open(ctx, proj, tracer)
				if err != nil {
					return err
				}
				defer ld.Close()
			}

			eng := validation.NewEngine(root.cache)
			opts := normalizer.ResolveOptions(proj, normalizer.Options{StopOnError: false})
			issues, err := eng.Validate(ctx, proj, m, ld, opts, proj.VersionToken, root.logger, tracer)
			if err != nil {
				return err
			}

			for _, is := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s/%s] %s entity=%s field=%s: %s\n",
					is.Severity, is.Category, is.Code, is.Entity, is.Field, is.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d issue(s)\n", len(issues))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "structural", "validation mode: structural, sample, or complete")
	return cmd
}
