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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalProjectYAML = `
name: demo
version: "1"
data_sources:
  db1:
    driver: sql-postgres
    parameters:
      dsn: "postgres://localhost/demo"
entities:
  site:
    kind: sql
    data_source: db1
    table: sites
    keys: [site_name]
    public_id: site_id
  sample:
    kind: sql
    data_source: db1
    table: samples
    keys: [sample_name]
    public_id: sample_id
    foreign_keys:
      - entity: site
        local_keys: [site_name]
        remote_keys: [site_name]
        how: inner
        constraints:
          cardinality: many_to_one
`

func TestLoadDecodesAndValidates(t *testing.T) {
	p, err := Load([]byte(minimalProjectYAML))
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	require.Contains(t, p.Entities, "site")
	require.Contains(t, p.Entities, "sample")
	assert.Equal(t, "site", p.Entities["site"].Name, "Normalize should stamp Name from the map key")
	assert.Equal(t, "system_id", p.Entities["site"].SystemID, "Normalize should default SystemID")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("not: [valid yaml"))
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredName(t *testing.T) {
	_, err := Load([]byte(`
entities:
  site:
    kind: sql
    data_source: db1
    table: sites
`))
	require.Error(t, err)
}

func TestLoadRejectsForeignKeyToUndefinedEntity(t *testing.T) {
	_, err := Load([]byte(`
name: demo
entities:
  sample:
    kind: sql
    data_source: db1
    table: samples
    foreign_keys:
      - entity: ghost
        local_keys: [site_name]
        remote_keys: [site_name]
        how: inner
        constraints:
          cardinality: many_to_one
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadRejectsDerivedEntityWithUndefinedSource(t *testing.T) {
	_, err := Load([]byte(`
name: demo
entities:
  derived_entity:
    kind: derived
    source: ghost
`))
	require.Error(t, err)
}

func TestLoadRejectsTaskListReferencingUndefinedEntity(t *testing.T) {
	_, err := Load([]byte(`
name: demo
entities:
  site:
    kind: sql
    data_source: db1
    table: sites
task_list: [site, ghost]
`))
	require.Error(t, err)
}

func TestValidateEntityShapeConditionalRequirements(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "sql without query or table",
			yaml: `
name: demo
entities:
  e:
    kind: sql
    data_source: db1
`,
			wantErr: true,
		},
		{
			name: "csv without filename",
			yaml: `
name: demo
entities:
  e:
    kind: csv
`,
			wantErr: true,
		},
		{
			name: "fixed without values",
			yaml: `
name: demo
entities:
  e:
    kind: fixed
`,
			wantErr: true,
		},
		{
			name: "fixed with values is valid",
			yaml: `
name: demo
entities:
  e:
    kind: fixed
    values:
      - ["a", 1]
`,
			wantErr: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.yaml))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
