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
	"fmt"
	"strings"

	"github.com/humlab-sead/shapeshifter/internal/issue"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

// structuralValidators is the bundle of checks that never touch data: at
// least ten independent passes over the decoded project and its graph
// shape.
func structuralValidators() []Validator {
	return []Validator{
		validateRequiredFields,
		validateColumnReferences,
		validateFKKeyShape,
		validatePublicIDNaming,
		validateCyclePresence,
		validateOrphanEntities,
		validateDeepDependencyChains,
		validateUnnestShape,
		validateTaskListOrder,
		validateDataSourceReferences,
	}
}

func validateRequiredFields(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if e.SystemID == "" {
			out = append(out, issue.Issue{
				Severity: issue.SeverityError, Entity: name, Field: "system_id",
				Code: issue.CodeRequiredField, Category: issue.CategoryStructural, Priority: issue.PriorityHigh,
				Message: "system_id must be set (project.Normalize should default it)",
			})
		}
		if e.PublicID == "" && e.Kind != project.KindDerived {
			out = append(out, issue.Issue{
				Severity: issue.SeverityWarning, Entity: name, Field: "public_id",
				Code: issue.CodeRequiredField, Category: issue.CategoryStructural, Priority: issue.PriorityMedium,
				Message: "public_id not set; downstream foreign keys cannot rewrite into this entity",
			})
		}
	}
	return out
}

// validateColumnReferences is a best-effort static check: when an entity
// declares an explicit Columns list, every foreign key's local_keys column
// should appear in that list. remote_keys and filter columns are not
// checked. Entities without a
// declared Columns list (most sql/derived entities) are skipped, since
// their real column set is only known once the Loader runs.
func validateColumnReferences(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if len(e.Columns) == 0 {
			continue
		}
		has := make(map[string]bool, len(e.Columns))
		for _, c := range e.Columns {
			has[c] = true
		}
		for i, fk := range e.ForeignKeys {
			for _, lk := range fk.LocalKeys {
				if !has[lk] {
					out = append(out, issue.Issue{
						Severity: issue.SeverityWarning, Entity: name,
						Field:    fmt.Sprintf("foreign_keys[%d].local_keys", i),
						Code:     issue.CodeColumnReference, Category: issue.CategoryStructural, Priority: issue.PriorityMedium,
						Message:  fmt.Sprintf("local key %q not in declared columns", lk),
					})
				}
			}
		}
	}
	return out
}

func validateFKKeyShape(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		for i, fk := range e.ForeignKeys {
			if len(fk.LocalKeys) != len(fk.RemoteKeys) {
				out = append(out, issue.Issue{
					Severity: issue.SeverityError, Entity: name,
					Field:    fmt.Sprintf("foreign_keys[%d]", i),
					Code:     issue.CodeFKKeyShape, Category: issue.CategoryStructural, Priority: issue.PriorityHigh,
					Message:  fmt.Sprintf("local_keys (%d) and remote_keys (%d) must be the same length", len(fk.LocalKeys), len(fk.RemoteKeys)),
				})
			}
		}
	}
	return out
}

func validatePublicIDNaming(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if e.PublicID == "" || strings.HasSuffix(e.PublicID, "_id") {
			continue
		}
		out = append(out, issue.Issue{
			Severity: issue.SeverityWarning, Entity: name, Field: "public_id",
			Code: issue.CodePublicIDNaming, Category: issue.CategoryStructural, Priority: issue.PriorityLow,
			Message:     fmt.Sprintf("public_id %q does not follow the *_id naming convention", e.PublicID),
			AutoFixable: true,
			Suggestion:  fmt.Sprintf("rename public_id to %q", e.PublicID+"_id"),
		})
	}
	return out
}

func validateCyclePresence(vc *Context) []issue.Issue {
	var out []issue.Issue
	for _, cyc := range vc.Graph.Cycles {
		out = append(out, issue.Issue{
			Severity: issue.SeverityError, Entity: cyc[0],
			Code: issue.CodeCycleDetected, Category: issue.CategoryStructural, Priority: issue.PriorityCritical,
			Message: "dependency cycle: " + strings.Join(cyc, " -> "),
		})
	}
	return out
}

func validateOrphanEntities(vc *Context) []issue.Issue {
	var out []issue.Issue
	for _, name := range vc.Graph.Orphans() {
		out = append(out, issue.Issue{
			Severity: issue.SeverityInfo, Entity: name,
			Code: issue.CodeOrphanEntity, Category: issue.CategoryStructural, Priority: issue.PriorityLow,
			Message: "entity is defined but has no dependents and no dependencies",
		})
	}
	return out
}

func validateDeepDependencyChains(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, n := range vc.Graph.Nodes {
		if n.Depth > 5 {
			out = append(out, issue.Issue{
				Severity: issue.SeverityWarning, Entity: name,
				Code: issue.CodeDeepDependencyChain, Category: issue.CategoryStructural, Priority: issue.PriorityLow,
				Message: fmt.Sprintf("entity sits at dependency depth %d (> 5)", n.Depth),
			})
		}
	}
	return out
}

func validateUnnestShape(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if e.Unnest == nil {
			continue
		}
		idSet := make(map[string]bool, len(e.Unnest.IDVars))
		for _, v := range e.Unnest.IDVars {
			idSet[v] = true
		}
		for _, v := range e.Unnest.ValueVars {
			if idSet[v] {
				out = append(out, issue.Issue{
					Severity: issue.SeverityError, Entity: name, Field: "unnest",
					Code: issue.CodeUnnestShape, Category: issue.CategoryStructural, Priority: issue.PriorityHigh,
					Message: fmt.Sprintf("column %q appears in both id_vars and value_vars", v),
				})
			}
		}
	}
	return out
}

// validateTaskListOrder checks the requirement that an explicit
// task_list, when present, is a topological extension of the implicit
// graph: every entity with dependencies must be listed after all of them.
func validateTaskListOrder(vc *Context) []issue.Issue {
	if len(vc.Project.TaskList) == 0 {
		return nil
	}
	position := make(map[string]int, len(vc.Project.TaskList))
	for i, name := range vc.Project.TaskList {
		position[name] = i
	}
	var out []issue.Issue
	for _, name := range vc.Project.TaskList {
		n, ok := vc.Graph.Nodes[name]
		if !ok {
			continue
		}
		for _, p := range n.DependsOn {
			pPos, ok := position[p]
			if !ok {
				continue
			}
			if pPos >= position[name] {
				out = append(out, issue.Issue{
					Severity: issue.SeverityError, Entity: name, Field: "task_list",
					Code: issue.CodeTaskListOrder, Category: issue.CategoryStructural, Priority: issue.PriorityHigh,
					Message: fmt.Sprintf("task_list lists %q before its dependency %q", name, p),
				})
			}
		}
	}
	return out
}

func validateDataSourceReferences(vc *Context) []issue.Issue {
	var out []issue.Issue
	for name, e := range vc.Project.Entities {
		if e.DataSource == "" {
			continue
		}
		if _, ok := vc.Project.DataSources[e.DataSource]; !ok {
			out = append(out, issue.Issue{
				Severity: issue.SeverityError, Entity: name, Field: "data_source",
				Code: issue.CodeUnknownDataSource, Category: issue.CategoryStructural, Priority: issue.PriorityHigh,
				Message: fmt.Sprintf("references undefined data source %q", e.DataSource),
			})
		}
	}
	return out
}
