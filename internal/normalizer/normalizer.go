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

// Package normalizer is the Normalizer: the one public entry point
// (Normalize) that drives the Dependency Graph Service's topological order
// through the Loader, Transform Kernel, Identity Manager, and Linker for
// every entity, writing completed tables into the TableStore.
//
// Concurrency model: two entities are independent iff
// neither is reachable from the other in the dependency graph, so each
// entity gets its own lightweight goroutine that blocks on its parents'
// completion channels before doing any real work; a bounded semaphore
// (not errgroup.SetLimit, which would bound *dispatch* rather than
// *execution* and could serialize independent roots when the pool is
// narrow) caps how many entity bodies run their Loader/Linker steps at
// once.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/humlab-sead/shapeshifter/internal/graph"
	"github.com/humlab-sead/shapeshifter/internal/identity"
	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/linker"
	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/log"
	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/transform"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// State is one position in the per-entity state machine.
type State string

const (
	StatePending           State = "PENDING"
	StateLoading           State = "LOADING"
	StateTransformingPre   State = "TRANSFORMING_PRE"
	StateLinking           State = "LINKING"
	StateTransformingPost  State = "TRANSFORMING_POST"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
	StateSkipped           State = "SKIPPED"
	StateCancelled         State = "CANCELLED"
)

// EntityStats is what the Normalizer records per entity for the
// validation and preview subsystems, including the per-FK match/unmatched
// diagnostics.
type EntityStats struct {
	State     State
	Rows      int
	ElapsedMS int64
	FKStats   map[string]*linker.Stats
	Warnings  []issue.Issue
	Err       error
}

// Options carries the run-scoped knobs. The zero value is the project's
// defaults: stop on first error, worker pool width = min(NumCPU, 8).
type Options struct {
	StopOnError     bool
	WorkerPoolWidth int
}

// ResolveOptions merges project-level Options with an explicit override,
// the override always winning when set: project Options are caller
// defaults, not forced values.
func ResolveOptions(proj *project.Project, override Options) Options {
	opts := Options{StopOnError: true, WorkerPoolWidth: defaultWorkerWidth()}
	if proj.Options != nil {
		if proj.Options.StopOnError != nil {
			opts.StopOnError = *proj.Options.StopOnError
		}
		if proj.Options.WorkerPool > 0 {
			opts.WorkerPoolWidth = proj.Options.WorkerPool
		}
	}
	if override.StopOnError {
		opts.StopOnError = true
	}
	if override.WorkerPoolWidth > 0 {
		opts.WorkerPoolWidth = override.WorkerPoolWidth
	}
	return opts
}

func defaultWorkerWidth() int {
	w := runtime.NumCPU()
	if w > 8 {
		w = 8
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Result is what a completed normalization run hands back.
type Result struct {
	RunID          string
	TableStore     *tablestore.Store
	PerEntityStats map[string]*EntityStats
	Issues         []issue.Issue
	Graph          *graph.Graph
}

// Normalize runs the full pipeline over proj. It refuses to run when the
// dependency graph reports any cycle, and returns a CancelledError with
// no Result when ctx is cancelled before or during the run — cancellation
// never leaves a partial TableStore behind.
func Normalize(ctx context.Context, proj *project.Project, ld *loader.Loader, opts Options, logger log.Logger, tracer trace.Tracer) (*Result, error) {
	g, structIssues := graph.Build(proj)
	if len(g.Cycles) > 0 {
		return nil, util.NewCycleDetectedError(g.Cycles)
	}

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "shapeshifter/normalizer/normalize",
		trace.WithAttributes(attribute.String("run_id", runID), attribute.String("project", proj.Name)))
	defer span.End()

	names := make([]string, 0, len(proj.Entities))
	for name := range proj.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	store := tablestore.New(names)
	kernel := transform.NewKernel(ld)
	stats := make(map[string]*EntityStats, len(names))
	for _, n := range names {
		stats[n] = &EntityStats{State: StatePending}
	}

	width := opts.WorkerPoolWidth
	if width < 1 {
		width = defaultWorkerWidth()
	}
	sem := make(chan struct{}, width)

	done := make(map[string]chan struct{}, len(names))
	for _, n := range names {
		done[n] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)

	for _, name := range names {
		name := name
		e := proj.Entities[name]
		parents := append([]string{}, g.Nodes[name].DependsOn...)
		eg.Go(func() error {
			defer close(done[name])

			for _, p := range parents {
				select {
				case <-done[p]:
				case <-egCtx.Done():
					markCancelled(store, stats, name)
					return nil
				}
			}

			if parentFailed(store, parents) {
				markSkipped(store, stats, name)
				if effectiveStopOnError(opts, e) {
					return util.NewConstraintViolation("PARENT_FAILED", name,
						fmt.Sprintf("entity %q skipped because a parent did not complete", name), -1, nil)
				}
				return nil
			}

			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				markCancelled(store, stats, name)
				return nil
			}
			defer func() { <-sem }()

			if egCtx.Err() != nil {
				markCancelled(store, stats, name)
				return nil
			}

			st := stats[name]
			err := ProcessEntity(egCtx, proj, e, ld, kernel, store, st, logger, tracer)
			if err != nil {
				st.State = StateFailed
				st.Err = err
				store.Fail(name, "failed", err)
				logger.ErrorContext(egCtx, "entity failed", "entity", name, "code", errCode(err), "error", err)
				if effectiveStopOnError(opts, e) {
					return err
				}
				return nil
			}
			return nil
		})
	}

	runErr := eg.Wait()

	if ctx.Err() != nil {
		return nil, util.NewCancelledError("normalization cancelled")
	}
	if runErr != nil {
		return nil, runErr
	}

	return &Result{
		RunID:          runID,
		TableStore:     store,
		PerEntityStats: stats,
		Issues:         append([]issue.Issue{}, structIssues...),
		Graph:          g,
	}, nil
}

func parentFailed(store *tablestore.Store, parents []string) bool {
	for _, p := range parents {
		if _, err := store.Get(p); err != nil && err != util.ErrNotReady {
			return true
		}
	}
	return false
}

func markCancelled(store *tablestore.Store, stats map[string]*EntityStats, name string) {
	st := stats[name]
	if st.State == StateDone || st.State == StateFailed || st.State == StateSkipped || st.State == StateCancelled {
		return
	}
	st.State = StateCancelled
	store.Fail(name, "cancelled", util.NewCancelledError(fmt.Sprintf("entity %q cancelled", name)))
}

func markSkipped(store *tablestore.Store, stats map[string]*EntityStats, name string) {
	st := stats[name]
	st.State = StateSkipped
	store.Fail(name, "skipped", util.NewConstraintViolation("ENTITY_SKIPPED", name,
		fmt.Sprintf("entity %q skipped: a parent did not complete", name), -1, nil))
}

// effectiveStopOnError applies the per-entity error_handling override on
// top of the run's global policy.
func effectiveStopOnError(opts Options, e *project.Entity) bool {
	if e.ErrorHandling != nil && e.ErrorHandling.StopOnError != nil {
		return *e.ErrorHandling.StopOnError
	}
	return opts.StopOnError
}

func errCode(err error) string {
	var se util.ShifterError
	if errors.As(err, &se) {
		return se.Code()
	}
	return "UNKNOWN"
}

// ProcessEntity runs the per-entity pipeline: Loader → pre-link
// Transform Kernel → system_id assignment → Linker (one FK at a time, in
// declaration order) → post-link Transform Kernel → TableStore write.
//
// It is exported so the preview cache and the sample-mode validation
// engine can replay the same per-entity logic against a bounded subset of
// entities without re-deriving it.
func ProcessEntity(ctx context.Context, proj *project.Project, e *project.Entity, ld *loader.Loader, kernel *transform.Kernel, store *tablestore.Store, st *EntityStats, logger log.Logger, tracer trace.Tracer) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "shapeshifter/normalizer/entity",
		trace.WithAttributes(attribute.String("entity", e.Name)))
	defer span.End()

	st.State = StateLoading
	logger.DebugContext(ctx, "loading entity", "entity", e.Name)
	raw, err := ld.Load(ctx, e, store)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return util.NewCancelledError("")
	}

	st.State = StateTransformingPre
	pre, err := kernel.PreLink(ctx, e, raw, store)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return util.NewCancelledError("")
	}

	if pre.Table.HasColumn(e.SystemID) {
		return util.NewInternalInvariantBroken(e.Name,
			fmt.Sprintf("system_id column %q already present before assignment", e.SystemID), nil)
	}
	identity.AssignSystemID(pre.Table, e.SystemID)

	st.State = StateLinking
	working := pre.Table
	fkStats := make(map[string]*linker.Stats, len(e.ForeignKeys))
	for i, fk := range e.ForeignKeys {
		if ctx.Err() != nil {
			return util.NewCancelledError("")
		}
		linkStart := time.Now()
		result, lstats, warnings, err := linker.Link(proj, e, fk, i, working, store)
		if err != nil {
			return err
		}
		lstats.ElapsedMS = time.Since(linkStart).Milliseconds()
		working = result
		fkStats[fmt.Sprintf("%s[%d]", fk.Entity, i)] = lstats
		st.Warnings = append(st.Warnings, warnings...)
		logger.DebugContext(ctx, "linked foreign key", "entity", e.Name, "parent", fk.Entity,
			"matched", lstats.Matched, "unmatched_left", lstats.UnmatchedLeft, "elapsed_ms", lstats.ElapsedMS)
	}

	st.State = StateTransformingPost
	final, err := kernel.PostLink(e, working, pre.Deferred)
	if err != nil {
		return err
	}
	final.InferKinds()

	store.Put(e.Name, final)
	st.State = StateDone
	st.Rows = len(final.Rows)
	st.ElapsedMS = time.Since(start).Milliseconds()
	st.FKStats = fkStats
	logger.InfoContext(ctx, "entity normalized", "entity", e.Name, "rows", st.Rows, "elapsed_ms", st.ElapsedMS)
	return nil
}
