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
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnv(t *testing.T) {
	tcs := []struct {
		desc      string
		env       map[string]string
		in        string
		want      string
		err       bool
		errString string
	}{
		{
			desc:      "without default without env",
			in:        "${FOO}",
			want:      "",
			err:       true,
			errString: `environment variable not found: "FOO"`,
		},
		{
			desc: "without default with env",
			env: map[string]string{
				"FOO": "bar",
			},
			in:   "${FOO}",
			want: "bar",
		},
		{
			desc: "with empty default",
			in:   "${FOO:}",
			want: "",
		},
		{
			desc: "with default",
			in:   "${FOO:bar}",
			want: "bar",
		},
		{
			desc: "with default with env",
			env: map[string]string{
				"FOO": "hello",
			},
			in:   "${FOO:bar}",
			want: "hello",
		},
		{
			desc: "multiple placeholders in one document",
			env: map[string]string{
				"DB_HOST": "localhost",
				"DB_USER": "shifter",
			},
			in:   "host: ${DB_HOST}\nuser: ${DB_USER}\nport: ${DB_PORT:5432}\n",
			want: "host: localhost\nuser: shifter\nport: 5432\n",
		},
		{
			desc: "text without placeholders passes through",
			in:   "name: my-project",
			want: "name: my-project",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			got, err := parseEnv(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error not found")
				}
				if tc.errString != err.Error() {
					t.Fatalf("incorrect error string: got %s, want %s", err, tc.errString)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if tc.want != got {
				t.Fatalf("unexpected want: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLoadProjectFileResolvesEnv(t *testing.T) {
	t.Setenv("SHIFTER_TEST_DB", "analysis")
	path := filepath.Join(t.TempDir(), "project.yml")
	doc := `
name: env-test
entities:
  site:
    kind: fixed
    columns: [site_name]
    keys: [site_name]
    public_id: site_id
    values:
      - ["A"]
data_sources:
  db:
    driver: sql-sqlite
    parameters:
      path: ${SHIFTER_TEST_DB}.db
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing project file: %s", err)
	}
	proj, err := loadProjectFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := proj.DataSources["db"].Parameters["path"]; got != "analysis.db" {
		t.Fatalf("placeholder not resolved: got %q, want %q", got, "analysis.db")
	}
}
