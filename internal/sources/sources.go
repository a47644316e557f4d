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

// Package sources is the data source registry: named connection handles
// opaque to the engine beyond "list rows of table/query" and "introspect
// schema". Concrete drivers register themselves at init time with
// Register, so the set of drivers is fixed at compile time.
package sources

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/humlab-sead/shapeshifter/internal/project"
	"github.com/humlab-sead/shapeshifter/internal/table"
)

// Column describes one column surfaced by IntrospectSchema.
type Column struct {
	Name     string
	Kind     table.Kind
	Nullable bool
}

// Schema is what IntrospectSchema returns for a table or query: enough for
// the Dependency Graph Service's source-level lineage and the
// Validation Engine's column-reference checks.
type Schema struct {
	Columns     []Column
	PrimaryKeys []string
	ForeignKeys map[string]string // local column -> "table.column"
}

// Source is a live, opened data source. Every driver-specific package
// implements this against its own connection pool.
type Source interface {
	// Kind returns the SourceDriver string this instance was opened for.
	Kind() string
	// Query executes a free-text query (SQL drivers) or reads a declared
	// resource (file drivers treat query as a table/sheet name) and
	// returns the full result as a Table.
	Query(ctx context.Context, query string) (*table.Table, error)
	// IntrospectSchema returns column/PK/FK metadata for a table or query
	// without materializing its rows.
	IntrospectSchema(ctx context.Context, tableOrQuery string) (*Schema, error)
	// Close releases any underlying connection pool or file handle.
	Close() error
}

// Factory opens a Source from a DataSource's already-resolved parameters.
type Factory func(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (Source, error)

var (
	mu       sync.RWMutex
	registry = map[project.SourceDriver]Factory{}
)

// Register adds a driver factory under kind. Returns false if the kind is
// already registered; the caller should panic in its init.
func Register(kind project.SourceDriver, f Factory) bool {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[kind]; exists {
		return false
	}
	registry[kind] = f
	return true
}

// Open resolves ds.Driver to a registered Factory and opens it.
func Open(ctx context.Context, name string, ds *project.DataSource, tracer trace.Tracer) (Source, error) {
	mu.RLock()
	f, ok := registry[ds.Driver]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no data source driver registered for kind %q", ds.Driver)
	}
	return f(ctx, name, ds, tracer)
}

// InitConnectionSpan starts a span recording a connection-level operation
// against a named data source, called by every driver package before
// dialing out.
func InitConnectionSpan(ctx context.Context, tracer trace.Tracer, kind, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "shapeshifter/sources/init",
		trace.WithAttributes(
			attribute.String("source_kind", kind),
			attribute.String("source_name", name),
		),
	)
}

// InitQuerySpan starts a span around one Query/IntrospectSchema call.
func InitQuerySpan(ctx context.Context, tracer trace.Tracer, kind, name, query string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "shapeshifter/sources/query",
		trace.WithAttributes(
			attribute.String("source_kind", kind),
			attribute.String("source_name", name),
			attribute.String("query", query),
		),
	)
}
