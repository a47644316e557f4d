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

package project

import (
	"fmt"

	validatorpkg "github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/humlab-sead/shapeshifter/internal/util"
)

// validate is a single shared validator instance; go-playground/validator
// documents it as safe for concurrent use once struct-level configuration
// is done, so one instance is cached for the process rather than built per
// call.
var validate = validatorpkg.New()

// Load decodes a project file already read into memory. The engine never
// touches the filesystem or resolves ${ENV_VAR} placeholders itself — the
// caller passes already-resolved YAML bytes.
func Load(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, util.NewConfigurationError("", "", "failed to parse project YAML", err)
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate runs struct-tag validation plus the cross-field checks a tag
// alone can't express: entity-name uniqueness is implicit
// in the map key, so what remains is kind-specific required fields,
// FK-parent existence, derived-source existence, and task_list naming only
// defined entities. Graph-level checks (cycles, column-reference integrity)
// and the public_id naming convention belong to the Dependency Graph
// Service and Validation Engine, not here.
func (p *Project) Validate() error {
	if err := validate.Struct(p); err != nil {
		return util.NewConfigurationError("", "", "project failed schema validation", err)
	}
	for name, e := range p.Entities {
		if err := validateEntityShape(name, e); err != nil {
			return err
		}
	}
	for _, e := range p.Entities {
		for i, fk := range e.ForeignKeys {
			if _, ok := p.Entities[fk.Entity]; !ok {
				return util.NewConfigurationError(e.Name, fmt.Sprintf("foreign_keys[%d].entity", i),
					fmt.Sprintf("foreign key references undefined entity %q", fk.Entity), nil)
			}
		}
		if e.Kind == KindDerived {
			if _, ok := p.Entities[e.Source]; !ok {
				return util.NewConfigurationError(e.Name, "source",
					fmt.Sprintf("derived entity references undefined source entity %q", e.Source), nil)
			}
		}
	}
	for _, name := range p.TaskList {
		if _, ok := p.Entities[name]; !ok {
			return util.NewConfigurationError("", "task_list",
				fmt.Sprintf("task_list references undefined entity %q", name), nil)
		}
	}
	return nil
}

// validateEntityShape enforces the kind-specific required fields a single
// struct tag can't express because the requirement is conditional on Kind.
func validateEntityShape(name string, e *Entity) error {
	switch e.Kind {
	case KindSQL:
		if e.DataSource == "" {
			return util.NewConfigurationError(name, "data_source", "sql entity requires data_source", nil)
		}
		if e.Query == "" && e.Table == "" {
			return util.NewConfigurationError(name, "query", "sql entity requires query or table", nil)
		}
	case KindCSV, KindXLSX:
		if e.Options == nil || e.Options.Filename == "" {
			return util.NewConfigurationError(name, "options.filename", "file entity requires options.filename", nil)
		}
	case KindFixed:
		if len(e.Values) == 0 {
			return util.NewConfigurationError(name, "values", "fixed entity requires values", nil)
		}
	case KindDerived:
		if e.Source == "" {
			return util.NewConfigurationError(name, "source", "derived entity requires source", nil)
		}
	}
	return nil
}
