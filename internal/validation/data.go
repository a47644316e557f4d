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

package validation

import (
	"errors"
	"fmt"

	"github.com/humlab-sead/shapeshifter/internal/identity"
	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/table"
	"github.com/humlab-sead/shapeshifter/internal/util"
)

// fkMatchRateThreshold is the unmatched-left fraction above which
// validateFKMatchRate escalates from an informational count to a warning.
const fkMatchRateThreshold = 0.10

// dataValidators is the bundle of checks that require a Normalizer run
// (sample or complete): at least eight independent passes over the
// resulting TableStore and per-entity stats.
func dataValidators() []Validator {
	return []Validator{
		validateColumnExistence,
		validateFKMatchRate,
		validateFKUnmatchedCounts,
		validateBusinessKeyDuplicates,
		validateConstraintFailures,
		validateTypeCompatibility,
		validateEmptyEntity,
		validateEntityFailures,
	}
}

func validateColumnExistence(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		t, err := vc.Store.Get(name)
		if err != nil || t == nil {
			continue
		}
		if e.PublicID != "" && !t.HasColumn(e.PublicID) {
			out = append(out, issue.Issue{
				Severity: issue.SeverityError, Entity: name, Field: "public_id",
				Code: issue.CodeColumnNotFound, Category: issue.CategoryData, Priority: issue.PriorityHigh,
				Message: fmt.Sprintf("declared public_id %q is not a materialized column", e.PublicID),
			})
		}
	}
	return out
}

func validateFKMatchRate(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, st := range vc.Stats {
		for fkKey, s := range st.FKStats {
			total := s.Matched + s.UnmatchedLeft
			if total == 0 {
				continue
			}
			rate := float64(s.UnmatchedLeft) / float64(total)
			if rate > fkMatchRateThreshold {
				out = append(out, issue.Issue{
					Severity: issue.SeverityWarning, Entity: name, Field: fkKey,
					Code: issue.CodeFKMatchRateLow, Category: issue.CategoryData, Priority: issue.PriorityMedium,
					Message: fmt.Sprintf("foreign key %s: %.1f%% of rows did not match a parent", fkKey, rate*100),
				})
			}
		}
	}
	return out
}

func validateFKUnmatchedCounts(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, st := range vc.Stats {
		for fkKey, s := range st.FKStats {
			if s.UnmatchedLeft == 0 && s.UnmatchedRight == 0 {
				continue
			}
			out = append(out, issue.Issue{
				Severity: issue.SeverityInfo, Entity: name, Field: fkKey,
				Code: issue.CodeFKUnmatchedCount, Category: issue.CategoryData, Priority: issue.PriorityLow,
				Message: fmt.Sprintf("foreign key %s: %d unmatched left, %d unmatched right", fkKey, s.UnmatchedLeft, s.UnmatchedRight),
			})
		}
	}
	return out
}

func validateBusinessKeyDuplicates(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if len(e.Keys) == 0 {
			continue
		}
		t, err := vc.Store.Get(name)
		if err != nil || t == nil {
			continue
		}
		if identity.BuildKeyIndex(t, e.Keys).Duplicated() {
			out = append(out, issue.Issue{
				Severity: issue.SeverityWarning, Entity: name, Field: "keys",
				Code: issue.CodeDuplicateBusinessKey, Category: issue.CategoryData, Priority: issue.PriorityMedium,
				Message: "materialized rows contain duplicate business keys",
			})
		}
	}
	return out
}

// validateConstraintFailures surfaces a CARDINALITY_VIOLATION or
// NULL_KEY_VIOLATION the Linker already raised (recorded on EntityStats.Err
// by the Normalizer) as a first-class data issue, so validate() reports the
// same problem a failed normalize() run would without requiring the caller
// to parse error messages.
func validateConstraintFailures(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, st := range vc.Stats {
		if st.Err == nil {
			continue
		}
		var cv *util.ConstraintViolation
		if errors.As(st.Err, &cv) {
			out = append(out, issue.Issue{
				Severity: issue.SeverityError, Entity: name,
				Code: cv.Code_, Category: issue.CategoryData, Priority: issue.PriorityHigh,
				Message: cv.Error(),
			})
		}
	}
	return out
}

// validateTypeCompatibility flags a foreign key's extra_columns projection
// landing as KindUnknown on a non-empty materialized table: since the
// reduced parent's column carried a single source type, an Unknown result
// on the child side means the join mixed incompatible value types across
// matched/unmatched rows.
func validateTypeCompatibility(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		t, err := vc.Store.Get(name)
		if err != nil || t == nil || len(t.Rows) == 0 {
			continue
		}
		for i, fk := range e.ForeignKeys {
			for newName := range fk.ExtraColumns {
				if k, ok := t.Kinds[newName]; ok && k == table.KindUnknown {
					out = append(out, issue.Issue{
						Severity: issue.SeverityWarning, Entity: name,
						Field:    fmt.Sprintf("foreign_keys[%d].extra_columns", i),
						Code:     issue.CodeTypeMismatch, Category: issue.CategoryData, Priority: issue.PriorityLow,
						Message:  fmt.Sprintf("column %q has inconsistent types across matched/unmatched rows", newName),
					})
				}
			}
		}
	}
	return out
}

func validateEmptyEntity(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name := range vc.Project.Entities {
		t, err := vc.Store.Get(name)
		if err != nil || t == nil {
			continue
		}
		if len(t.Rows) == 0 {
			out = append(out, issue.Issue{
				Severity: issue.SeverityInfo, Entity: name,
				Code: issue.CodeEmptyEntity, Category: issue.CategoryData, Priority: issue.PriorityLow,
				Message: "entity materialized zero rows",
			})
		}
	}
	return out
}

func validateEntityFailures(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, st := range vc.Stats {
		if st.Err == nil {
			continue
		}
		var se util.ShifterError
		code := "UNKNOWN"
		if errors.As(st.Err, &se) {
			code = se.Code()
		}
		out = append(out, issue.Issue{
			Severity: issue.SeverityError, Entity: name,
			Code: issue.CodeEntityFailed, Category: issue.CategoryData, Priority: issue.PriorityCritical,
			Message: fmt.Sprintf("entity failed to normalize (%s): %v", code, st.Err),
		})
	}
	return out
}
