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

// Package cmd is a thin harness for the engine APIs
// (normalize/preview/validate/graph): a Command embedding *cobra.Command
// with an injectable output writer and a setup lifecycle that builds the
// shared logger, cache, and tracer once per invocation. It is deliberately
// small — just enough surface to drive a project file from a terminal.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/cache"
	"github.com/humlab-sead/shapeshifter/internal/log"
	"github.com/humlab-sead/shapeshifter/internal/telemetry"
)

// versionString is stamped by the build (-ldflags "-X ...versionString=");
// "dev" otherwise.
var versionString = "dev"

// Command wraps a cobra.Command with the shared run-scoped state every
// subcommand needs: a resolved project path, logging and telemetry knobs,
// and a single process-lifetime preview/validation cache so repeated
// `preview`/`validate` invocations within one CLI process actually benefit
// from caching.
type Command struct {
	*cobra.Command

	projectFile string
	logFormat   string
	logLevel    string
	cacheTTL    int
	telemetryOn bool

	logger       log.Logger
	cache        *cache.Cache
	tracer       trace.Tracer
	flushTracing func(context.Context) error
}

// NewCommand builds the root command and every subcommand.
func NewCommand() *Command {
	c := &Command{}

	c.Command = &cobra.Command{
		Use:           "shapeshifter",
		Version:       versionString,
		Short:         "Shape Shifter normalizes heterogeneous entities into a linked set of tables",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.flushTracing != nil {
				return c.flushTracing(cmd.Context())
			}
			return nil
		},
	}

	c.registerFlags(c.Command.PersistentFlags())

	c.AddCommand(newNormalizeCommand(c))
	c.AddCommand(newPreviewCommand(c))
	c.AddCommand(newValidateCommand(c))
	c.AddCommand(newGraphCommand(c))

	return c
}

// registerFlags binds the persistent flags onto fs; split out so tests can
// exercise flag registration against a bare pflag.FlagSet without building
// the whole cobra tree.
func (c *Command) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.projectFile, "project", "", "path to the project YAML file")
	fs.StringVar(&c.logFormat, "log-format", "standard", "log output format: standard or json")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.IntVar(&c.cacheTTL, "cache-ttl", int(cache.DefaultTTL.Seconds()), "preview/validation cache TTL in seconds")
	fs.BoolVar(&c.telemetryOn, "telemetry", false, "record OpenTelemetry spans for loads, queries, and entity processing")
}

// setup runs once per invocation, before any subcommand's RunE: it builds
// the shared Logger, Cache, and Tracer from the persistent flags.
func (c *Command) setup(cmd *cobra.Command) error {
	logger, err := log.NewLogger(c.logFormat, c.logLevel, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.logger = logger
	c.cache = cache.New(secondsToDuration(c.cacheTTL))

	tracer, flush, err := telemetry.Setup(cmd.Context(), "shapeshifter", versionString, c.telemetryOn)
	if err != nil {
		return err
	}
	c.tracer = tracer
	c.flushTracing = flush
	return nil
}

func (c *Command) requireProjectFile() error {
	if c.projectFile == "" {
		return fmt.Errorf("--project is required")
	}
	return nil
}

// Execute is the process entry point's sole call: build the command,
// execute it, translate a returned error into a nonzero exit code.
func Execute() {
	c := NewCommand()
	if err := c.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
