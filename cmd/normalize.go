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
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/sink"
)

func newNormalizeCommand(root *Command) *cobra.Command {
	var (
		sinkTarget    string
		sinkPath      string
		sqlDSN        string
		sqlDialect    string
		stopOnError   bool
		workerWidth   int
		dropFKColumns bool
	)

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "run the full normalization pipeline and dispatch the result to a sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.requireProjectFile(); err != nil {
				return err
			}
			proj, err := loadProjectFile(root.projectFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			tracer := root.tracer

			ld, err := loader.Open(ctx, proj, tracer)
			if err != nil {
				return err
			}
			defer ld.Close()

			opts := normalizer.ResolveOptions(proj, normalizer.Options{
				StopOnError:     stopOnError,
				WorkerPoolWidth: workerWidth,
			})

			result, err := normalizer.Normalize(ctx, proj, ld, opts, root.logger, tracer)
			if err != nil {
				return fmt.Errorf("normalize: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "normalized %d entities (run %s)\n", len(result.TableStore.Order()), result.RunID)

			if sinkTarget == "" {
				return nil
			}
			dispatcher, closeFn, err := buildDispatcher(sink.Target(sinkTarget), sinkPath, sqlDSN, sqlDialect, dropFKColumns)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			return dispatcher.Dispatch(ctx, result, sink.Options{DropFKColumns: dropFKColumns})
		},
	}

	cmd.Flags().StringVar(&sinkTarget, "sink", "", "dispatch target: workbook, single_csv, csv_bundle, csv_folder, sql_database")
	cmd.Flags().StringVar(&sinkPath, "sink-path", "", "output file or directory path for the chosen sink")
	cmd.Flags().StringVar(&sqlDSN, "sink-dsn", "", "database/sql DSN for the sql_database sink")
	cmd.Flags().StringVar(&sqlDialect, "sink-dialect", "postgres", "sql_database sink dialect: postgres, mysql, sqlite")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", true, "abort the run on the first entity failure")
	cmd.Flags().IntVar(&workerWidth, "workers", 0, "worker pool width (0 = project default)")
	cmd.Flags().BoolVar(&dropFKColumns, "drop-fk-columns", false, "drop parent public_id columns after emission")

	return cmd
}

// buildDispatcher resolves a sink.Target plus its CLI-provided parameters
// into a concrete sink.Dispatcher. The
// returned close function (non-nil only for the sql_database sink) releases
// the destination connection after Dispatch returns.
func buildDispatcher(target sink.Target, path, dsn, dialect string, _ bool) (sink.Dispatcher, func(), error) {
	switch target {
	case sink.TargetWorkbook:
		return &sink.WorkbookWriter{Path: path}, nil, nil
	case sink.TargetSingleCSV:
		return &sink.SingleCSVWriter{Path: path}, nil, nil
	case sink.TargetCSVBundle:
		return &sink.CSVBundleWriter{Path: path}, nil, nil
	case sink.TargetCSVFolder:
		return &sink.CSVFolderWriter{Dir: path}, nil, nil
	case sink.TargetSQL:
		driverName, err := sqlDriverName(dialect)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sink-dsn: %w", err)
		}
		return &sink.SQLWriter{DB: db, Dialect: sink.Dialect(dialect)}, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink target %q", target)
	}
}

func sqlDriverName(dialect string) (string, error) {
	switch sink.Dialect(dialect) {
	case sink.DialectPostgres:
		return "pgx", nil
	case sink.DialectMySQL:
		return "mysql", nil
	case sink.DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unknown sink dialect %q", dialect)
	}
}
