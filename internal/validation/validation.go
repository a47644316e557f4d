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

// Package validation is the Validation Engine: a bundle of structural
// validators that need no data access plus data validators that need a
// Normalizer run, each emitting internal/issue.Issue values with stable
// codes. Results are cached per run mode through the
// Preview/Validation Cache so repeated validate calls against an
// unchanged project are free.
package validation

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/cache"
	"github.com/humlab-sead/shapeshifter/internal/graph"
	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/log"
	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/transform"
)

// Mode selects which validators run: structural only, or structural plus
// the data validators over a sample or the complete pipeline.
type Mode string

const (
	ModeStructural Mode = "structural"
	ModeSample     Mode = "sample"
	ModeComplete   Mode = "complete"
)

// SampleLimit is the per-entity row cap the sample mode truncates to after
// each entity finishes, mirroring the Preview/Validation Cache's preview
// truncation.
const SampleLimit = 1000

// Context is what a single Validator closure receives: always the project
// and graph, plus Store/Stats only once a data-mode run has happened.
type Context struct {
	Project *project.Project
	Graph   *graph.Graph
	Store   *tablestore.Store
	Stats   map[string]*normalizer.EntityStats
}

// Validator is one independent check; it never panics on a malformed
// project, since Engine.Validate always runs the full bundle regardless of
// what earlier validators found.
type Validator func(vc *Context) []issue.Issue

// Engine owns the validator bundle and the cache results are stored
// through.
type Engine struct {
	structural []Validator
	data       []Validator
	cache      *cache.Cache
}

// NewEngine builds an Engine backed by c (may be nil to disable caching).
func NewEngine(c *cache.Cache) *Engine {
	return &Engine{
		structural: structuralValidators(),
		data:       dataValidators(),
		cache:      c,
	}
}

// Validate runs the bundle appropriate to mode and returns the combined
// issue list: graph-build issues first, then each validator's issues in
// bundle order, then the Normalizer's own issues. Within one validator the
// order follows map iteration and is not stable between runs.
func (eng *Engine) Validate(ctx context.Context, proj *project.Project, mode Mode, ld *loader.Loader, opts normalizer.Options, projectVersion uint64, logger log.Logger, tracer trace.Tracer) ([]issue.Issue, error) {
	op := cacheOperation(mode)
	if eng.cache != nil {
		hash := cache.ProjectHash(proj)
		if v, ok := eng.cache.Get(cache.Key{Project: proj.Name, Entity: "__project__", Operation: op}, projectVersion, hash); ok {
			return v.([]issue.Issue), nil
		}
	}

	issues, err := eng.run(ctx, proj, mode, ld, opts, logger, tracer)
	if err != nil {
		return nil, err
	}

	if eng.cache != nil {
		hash := cache.ProjectHash(proj)
		eng.cache.Put(cache.Key{Project: proj.Name, Entity: "__project__", Operation: op}, issues, projectVersion, hash)
	}
	return issues, nil
}

func cacheOperation(mode Mode) cache.Operation {
	switch mode {
	case ModeSample:
		return cache.OpValidateDataSample
	case ModeComplete:
		return cache.OpValidateDataComplete
	default:
		return cache.OpValidateStructural
	}
}

func (eng *Engine) run(ctx context.Context, proj *project.Project, mode Mode, ld *loader.Loader, opts normalizer.Options, logger log.Logger, tracer trace.Tracer) ([]issue.Issue, error) {
	g, structIssues := graph.Build(proj)
	vc := &Context{Project: proj, Graph: g}

	issues := append([]issue.Issue{}, structIssues...)
	for _, v := range eng.structural {
		issues = append(issues, v(vc)...)
	}

	if mode == ModeStructural {
		return issues, nil
	}

	var result *normalizer.Result
	var err error
	if mode == ModeSample {
		result, err = runSampleNormalize(ctx, proj, g, ld, logger, tracer)
	} else {
		result, err = normalizer.Normalize(ctx, proj, ld, opts, logger, tracer)
	}
	if err != nil {
		return nil, err
	}

	vc.Store = result.TableStore
	vc.Stats = result.PerEntityStats
	for _, v := range eng.data {
		issues = append(issues, v(vc)...)
	}
	issues = append(issues, result.Issues...)
	return issues, nil
}

// runSampleNormalize is a sequential, single-goroutine replay of
// ProcessEntity over the full topological order, truncating each entity's
// materialized rows to SampleLimit immediately after it completes so every
// descendant links against a bounded sample rather than the full source.
func runSampleNormalize(ctx context.Context, proj *project.Project, g *graph.Graph, ld *loader.Loader, logger log.Logger, tracer trace.Tracer) (*normalizer.Result, error) {
	if g.TopoOrder == nil {
		return &normalizer.Result{Issues: nil, Graph: g}, nil
	}

	store := tablestore.New(g.TopoOrder)
	kernel := transform.NewKernel(ld)
	stats := make(map[string]*normalizer.EntityStats, len(g.TopoOrder))

	for _, name := range g.TopoOrder {
		e := proj.Entities[name]
		st := &normalizer.EntityStats{State: normalizer.StatePending}
		stats[name] = st

		if err := normalizer.ProcessEntity(ctx, proj, e, ld, kernel, store, st, logger, tracer); err != nil {
			st.State = normalizer.StateFailed
			st.Err = err
			store.Fail(name, "failed", err)
			continue
		}

		if t, getErr := store.Get(name); getErr == nil && len(t.Rows) > SampleLimit {
			t.Rows = t.Rows[:SampleLimit]
		}
	}

	return &normalizer.Result{
		RunID:          "sample",
		TableStore:     store,
		PerEntityStats: stats,
		Graph:          g,
	}, nil
}
