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
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/graph"
	"github.com/humlab-sead/shapeshifter/internal/loader"
	"github.com/humlab-sead/shapeshifter/internal/log"
	"github.com/humlab-sead/shapeshifter/internal/normalizer"
	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/transform"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// DefaultPreviewLimit is the preview row cap when the caller doesn't
// name one.
const DefaultPreviewLimit = 1000

// PreviewArtifact is what a preview-mode run records and caches: the
// (possibly truncated) table, whether this very call was itself a cache
// hit, how long it took, and which transformation kinds the entity
// applies.
type PreviewArtifact struct {
	Entity            string
	Table             *table.Table
	CacheHit          bool
	ExecutionTimeMS   int64
	AppliedTransforms []string
}

// PreviewEntity runs a bounded single-entity execution: the Normalizer's
// per-entity pipeline replayed over entityName and every entity it
// transitively depends on, in topological order, truncating the target's
// materialized rows to limit. Ancestors already cached under OpPreview for the
// current project version/hash are reused instead of re-executed, so a
// preview of a deep entity doesn't re-run its whole upstream chain every
// call.
func (c *Cache) PreviewEntity(ctx context.Context, proj *project.Project, g *graph.Graph, ld *loader.Loader, entityName string, limit int, projectVersion uint64, logger log.Logger, tracer trace.Tracer) (*PreviewArtifact, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	start := time.Now()

	key := Key{Project: proj.Name, Entity: entityName, Operation: OpPreview}
	hash := EntityHash(proj, g, entityName)
	if v, ok := c.Get(key, projectVersion, hash); ok {
		cached := v.(*PreviewArtifact)
		return &PreviewArtifact{
			Entity:            cached.Entity,
			Table:             cached.Table,
			CacheHit:          true,
			ExecutionTimeMS:   time.Since(start).Milliseconds(),
			AppliedTransforms: cached.AppliedTransforms,
		}, nil
	}

	order, err := closureOrder(g, entityName)
	if err != nil {
		return nil, err
	}

	store := tablestore.New(order)
	kernel := transform.NewKernel(ld)

	for _, name := range order {
		e := proj.Entities[name]

		if name != entityName {
			h := EntityHash(proj, g, name)
			if v, ok := c.Get(Key{Project: proj.Name, Entity: name, Operation: OpPreview}, projectVersion, h); ok {
				cachedArt := v.(*PreviewArtifact)
				store.Put(name, cachedArt.Table.Clone())
				continue
			}
		}

		st := &normalizer.EntityStats{}
		if err := normalizer.ProcessEntity(ctx, proj, e, ld, kernel, store, st, logger, tracer); err != nil {
			return nil, err
		}
	}

	full, err := store.Get(entityName)
	if err != nil {
		return nil, err
	}
	truncated := full
	if len(full.Rows) > limit {
		truncated = full.Clone()
		truncated.Rows = truncated.Rows[:limit]
	}

	art := &PreviewArtifact{
		Entity:            entityName,
		Table:             truncated,
		CacheHit:          false,
		ExecutionTimeMS:   time.Since(start).Milliseconds(),
		AppliedTransforms: appliedTransformNames(proj.Entities[entityName]),
	}
	c.Put(key, art, projectVersion, hash)
	return art, nil
}

// closureOrder returns entityName and every ancestor it transitively
// depends on, ordered consistently with the full project's topological
// order (a subsequence of it is itself a valid topological order for the
// subset).
func closureOrder(g *graph.Graph, entityName string) ([]string, error) {
	if g.TopoOrder == nil {
		return nil, util.NewCycleDetectedError(g.Cycles)
	}
	closure := dependencyClosure(g, entityName)
	closure[entityName] = true

	order := make([]string, 0, len(closure))
	for _, n := range g.TopoOrder {
		if closure[n] {
			order = append(order, n)
		}
	}
	return order, nil
}

func appliedTransformNames(e *project.Entity) []string {
	if e == nil {
		return nil
	}
	var out []string
	if len(e.Append) > 0 {
		out = append(out, "append")
	}
	if e.DropEmptyRows != nil {
		out = append(out, "drop_empty_rows")
	}
	if e.DropDuplicates != nil {
		out = append(out, "drop_duplicates")
	}
	if len(e.Filters) > 0 {
		out = append(out, "filters")
	}
	if len(e.ExtraColumns) > 0 {
		out = append(out, "extra_columns")
	}
	if e.Unnest != nil {
		out = append(out, "unnest")
	}
	if len(e.ForeignKeys) > 0 {
		out = append(out, "foreign_keys")
	}
	return out
}
