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
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/humlab-sead/shapeshifter/internal/project"
)

// envPattern matches ${VAR} and ${VAR:default}, the placeholder syntax
// data_sources parameters support. Resolution happens here, at the API
// boundary, never inside the core packages.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// parseEnv substitutes every ${VAR}/${VAR:default} placeholder in in with
// the named environment variable, or its inline default when the
// environment variable is unset. A placeholder with no default and no set
// environment variable is an error.
func parseEnv(in string) (string, error) {
	var firstErr error
	out := envPattern.ReplaceAllStringFunc(in, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		hasDefault := strings.Contains(match, ":")
		def := groups[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("environment variable not found: %q", name)
		}
		return ""
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// loadProjectFile reads path, resolves ${ENV_VAR} placeholders, and decodes
// and validates the result into a *project.Project. The engine packages
// only ever see already-resolved connection parameters.
func loadProjectFile(path string) (*project.Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	resolved, err := parseEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("resolving environment placeholders: %w", err)
	}
	return project.Load([]byte(resolved))
}
