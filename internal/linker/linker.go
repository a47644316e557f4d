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

// Package linker is the Linker: for one foreign key, joins an
// entity's working table with its already-materialized parent, rewrites
// the local key columns to the parent's public_id column carrying the
// parent's system_id, and enforces the declared cardinality and null-key
// policy.
package linker

import (
	"fmt"

	"github.com/humlab-sead/shapeshifter/internal/identity"
	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/tablestore"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// Stats is what the Normalizer records per entity and FK for the
// validation and preview subsystems.
type Stats struct {
	Matched          int
	UnmatchedLeft    int
	UnmatchedRight   int
	DuplicateMatches int
	// ElapsedMS is stamped by the Normalizer around the Link call; Link
	// itself has no clock dependency so it stays trivially unit-testable
	// without faking time.
	ElapsedMS int64
}

func defaultConstraints() *project.ForeignKeyConstraints {
	return &project.ForeignKeyConstraints{Cardinality: project.CardinalityManyToOne, AllowNullKeys: true}
}

// Link runs the full linking algorithm for one foreign key against the entity's
// current working table (post pre-link-transform, post system_id
// assignment). It returns the rewritten table, per-FK stats, any warning
// issues produced, and an error if a hard constraint was violated.
func Link(proj *project.Project, e *project.Entity, fk *project.ForeignKey, fkIdx int, working *table.Table, store *tablestore.Store) (*table.Table, *Stats, []issue.Issue, error) {
	parentEntity, ok := proj.Entities[fk.Entity]
	if !ok {
		return nil, nil, nil, util.NewInternalInvariantBroken(e.Name,
			fmt.Sprintf("foreign key references undefined entity %q past config validation", fk.Entity), nil)
	}

	parent, err := store.Get(fk.Entity)
	if err != nil {
		if err == util.ErrNotReady {
			return nil, nil, nil, util.NewInternalInvariantBroken(e.Name,
				fmt.Sprintf("parent entity %q was not ready when the linker ran", fk.Entity), err)
		}
		return nil, nil, nil, err
	}

	constraints := fk.Constraints
	if constraints == nil {
		constraints = defaultConstraints()
	}

	right, err := reduceParent(fk, parent, parentEntity.SystemID, parentEntity.PublicID)
	if err != nil {
		return nil, nil, nil, util.NewConstraintViolation(issue.CodeColumnNotFound, e.Name, err.Error(), fkIdx, err)
	}

	if constraints.RequireUniqueLeft {
		if identity.BuildKeyIndex(working, fk.LocalKeys).Duplicated() {
			return nil, nil, nil, util.NewConstraintViolation(issue.CodeCardinalityViolation, e.Name,
				fmt.Sprintf("foreign key %q: left keys not unique", fk.Entity), fkIdx, nil)
		}
	}
	if constraints.RequireUniqueRight {
		if identity.BuildKeyIndex(right, fk.RemoteKeys).Duplicated() {
			return nil, nil, nil, util.NewConstraintViolation(issue.CodeCardinalityViolation, e.Name,
				fmt.Sprintf("foreign key %q: right keys not unique", fk.Entity), fkIdx, nil)
		}
	}

	if !constraints.AllowNullKeys {
		for _, r := range working.Rows {
			if identity.HasNull(r, fk.LocalKeys) {
				return nil, nil, nil, util.NewConstraintViolation(issue.CodeNullKeyViolation, e.Name,
					fmt.Sprintf("foreign key %q: local key columns %v must not contain nulls", fk.Entity, fk.LocalKeys), fkIdx, nil)
			}
		}
	}

	rightIdx := identity.BuildKeyIndex(right, fk.RemoteKeys)

	result, stats, warn := join(e, fk, fkIdx, working, right, rightIdx, parentEntity.PublicID)

	if err := checkCardinality(e, fk, fkIdx, constraints.Cardinality, stats); err != nil {
		return nil, nil, nil, err
	}

	if fk.DropRemoteID {
		result.RemoveColumn(parentEntity.PublicID)
	}

	return result, stats, warn, nil
}

// reduceParent projects the parent down to remote_keys + the parent's
// system_id (aliased to its public_id column name) + any extra_columns.
func reduceParent(fk *project.ForeignKey, parent *table.Table, parentSystemID, parentPublicID string) (*table.Table, error) {
	cols := append([]string{}, fk.RemoteKeys...)
	cols = append(cols, parentSystemID)
	extraSrc := make([]string, 0, len(fk.ExtraColumns))
	for _, src := range fk.ExtraColumns {
		extraSrc = append(extraSrc, src)
	}
	cols = append(cols, extraSrc...)

	reduced, err := table.Project(parent, cols, nil)
	if err != nil {
		return nil, err
	}
	reduced.RenameColumn(parentSystemID, parentPublicID)
	for newName, src := range fk.ExtraColumns {
		if newName != src {
			reduced.RenameColumn(src, newName)
		}
	}
	return reduced, nil
}

// join performs the how-specific combination of left rows against the
// right index, rewriting matched rows' local_keys into the parent's
// public_id column.
func join(e *project.Entity, fk *project.ForeignKey, fkIdx int, left, right *table.Table, rightIdx *identity.KeyIndex, parentPublicID string) (*table.Table, *Stats, []issue.Issue) {
	stats := &Stats{}
	var warnings []issue.Issue

	extraCols := make([]string, 0, len(fk.ExtraColumns))
	for newName := range fk.ExtraColumns {
		extraCols = append(extraCols, newName)
	}

	outCols := append([]string{}, left.Columns...)
	for _, lk := range fk.LocalKeys {
		outCols = removeString(outCols, lk)
	}
	outCols = appendMissing(outCols, parentPublicID)
	for _, c := range extraCols {
		outCols = appendMissing(outCols, c)
	}
	out := table.New(outCols)

	matchedRightKeys := make(map[string]bool, len(right.Rows))

	emitMatch := func(l, r table.Row) table.Row {
		nr := make(table.Row, len(outCols))
		for k, v := range l {
			if !containsString(fk.LocalKeys, k) {
				nr[k] = v
			}
		}
		if r != nil {
			nr[parentPublicID] = r[parentPublicID]
			for _, c := range extraCols {
				nr[c] = r[c]
			}
		} else {
			nr[parentPublicID] = nil
			for _, c := range extraCols {
				nr[c] = nil
			}
		}
		return nr
	}

	for _, l := range left.Rows {
		key := identity.KeyOf(l, fk.LocalKeys)
		matches := rightIdx.Lookup(key)
		fanOut := len(matches)
		if fk.How == project.HowCross {
			// a cross join pairs the left row with every right row
			fanOut = len(right.Rows)
		}
		if fanOut > 1 {
			stats.DuplicateMatches++
		}
		switch fk.How {
		case project.HowInner:
			if len(matches) == 0 {
				stats.UnmatchedLeft++
				continue
			}
			for _, ri := range matches {
				out.Rows = append(out.Rows, emitMatch(l, right.Rows[ri]))
				matchedRightKeys[identity.KeyOf(right.Rows[ri], fk.RemoteKeys)] = true
			}
			stats.Matched++
		case project.HowLeft, project.HowOuter:
			if len(matches) == 0 {
				stats.UnmatchedLeft++
				out.Rows = append(out.Rows, emitMatch(l, nil))
				continue
			}
			for _, ri := range matches {
				out.Rows = append(out.Rows, emitMatch(l, right.Rows[ri]))
				matchedRightKeys[identity.KeyOf(right.Rows[ri], fk.RemoteKeys)] = true
			}
			stats.Matched++
		case project.HowRight:
			if len(matches) == 0 {
				stats.UnmatchedLeft++
				continue
			}
			for _, ri := range matches {
				out.Rows = append(out.Rows, emitMatch(l, right.Rows[ri]))
				matchedRightKeys[identity.KeyOf(right.Rows[ri], fk.RemoteKeys)] = true
			}
			stats.Matched++
		case project.HowCross:
			for _, r := range right.Rows {
				out.Rows = append(out.Rows, emitMatch(l, r))
			}
			stats.Matched++
		}
	}

	if fk.How == project.HowRight || fk.How == project.HowOuter {
		for _, r := range right.Rows {
			rk := identity.KeyOf(r, fk.RemoteKeys)
			if matchedRightKeys[rk] {
				continue
			}
			stats.UnmatchedRight++
			nr := make(table.Row, len(outCols))
			for _, c := range outCols {
				nr[c] = nil
			}
			nr[parentPublicID] = r[parentPublicID]
			for _, c := range extraCols {
				nr[c] = r[c]
			}
			out.Rows = append(out.Rows, nr)
			warnings = append(warnings, issue.Issue{
				Severity: issue.SeverityWarning,
				Entity:   e.Name,
				Field:    fmt.Sprintf("foreign_keys[%d]", fkIdx),
				Code:     issue.CodeFKDirectionNullID,
				Category: issue.CategoryData,
				Priority: issue.PriorityLow,
				Message:  fmt.Sprintf("foreign key %q (%s join) produced a row with no originating child record", fk.Entity, fk.How),
			})
		}
	}

	out.InferKinds()
	return out, stats, warnings
}

func checkCardinality(e *project.Entity, fk *project.ForeignKey, fkIdx int, card project.Cardinality, stats *Stats) error {
	switch card {
	case project.CardinalityManyToOne:
		if stats.DuplicateMatches > 0 {
			return util.NewConstraintViolation(issue.CodeCardinalityViolation, e.Name,
				fmt.Sprintf("foreign key %q declared many_to_one but a child row matched multiple parent rows", fk.Entity), fkIdx, nil)
		}
	case project.CardinalityOneToOne:
		if stats.DuplicateMatches > 0 {
			return util.NewConstraintViolation(issue.CodeCardinalityViolation, e.Name,
				fmt.Sprintf("foreign key %q declared one_to_one but matches are not 1:1", fk.Entity), fkIdx, nil)
		}
	case project.CardinalityOneToMany:
		// many children may legitimately match one parent; no violation here.
	}
	return nil
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func appendMissing(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
