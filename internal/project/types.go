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

// Package project holds the YAML-decoded shape of a harmonization project:
// data sources, entities, foreign keys, and the transform directives
// attached to each entity. Decoding uses goccy/go-yaml into these structs,
// then validator.v10 struct tags enforce the required-field and
// enum-membership invariants before anything touches the graph or the
// normalizer.
package project

// EntityKind selects which Loader a source materializes through.
type EntityKind string

const (
	KindSQL     EntityKind = "sql"
	KindCSV     EntityKind = "csv"
	KindXLSX    EntityKind = "xlsx"
	KindFixed   EntityKind = "fixed"
	KindDerived EntityKind = "derived"
)

// SourceDriver enumerates the data-source backends the source registry
// can open a connection against. sql-access maps onto the same
// embedded-SQLite pool as sql-sqlite: no MS Access driver exists for Go,
// and both are a local embedded relational file reached by a DSN string.
type SourceDriver string

const (
	DriverSQLPostgres SourceDriver = "sql-postgres"
	DriverSQLMySQL    SourceDriver = "sql-mysql"
	DriverSQLSQLite   SourceDriver = "sql-sqlite"
	DriverSQLAccess   SourceDriver = "sql-access"
	DriverCSVFile     SourceDriver = "csv-file"
	DriverExcelFile   SourceDriver = "excel-file"
)

// JoinHow is the join semantics used by the Linker.
type JoinHow string

const (
	HowInner JoinHow = "inner"
	HowLeft  JoinHow = "left"
	HowRight JoinHow = "right"
	HowOuter JoinHow = "outer"
	HowCross JoinHow = "cross"
)

// Cardinality constrains how many rows on one side of a join may match a
// single row on the other.
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one_to_one"
	CardinalityManyToOne  Cardinality = "many_to_one"
	CardinalityOneToMany  Cardinality = "one_to_many"
)

// AppendKind selects whether an Append block sources rows from inline
// values or from a SQL query against a named data source.
type AppendKind string

const (
	AppendFixed AppendKind = "fixed"
	AppendSQL   AppendKind = "sql"
)

// Project is the root of a decoded harmonization project file.
// reconciliation and task_list are recognized. reconciliation is carried
// through opaquely for the (out-of-core) reconciliation workflow. task_list
// is only checked: Validate rejects names of undefined entities and the
// Validation Engine flags an entity listed before one of its dependencies.
// The Normalizer schedules entities from the dependency graph and does not
// take its processing order from task_list.
type Project struct {
	Name         string                  `yaml:"name" validate:"required"`
	Version      string                  `yaml:"version"`
	DataSources  map[string]*DataSource  `yaml:"data_sources" validate:"dive"`
	Entities     map[string]*Entity      `yaml:"entities" validate:"required,dive"`
	Options      *Options                `yaml:"options"`
	TaskList     []string                `yaml:"task_list"`
	Reconciliation map[string]any        `yaml:"reconciliation"`

	// VersionToken is a monotone counter bumped by the external editor on
	// every persisted mutation. It is not itself decoded from YAML;
	// the API boundary stamps it when the project is loaded/saved.
	VersionToken uint64 `yaml:"-"`
}

// Options carries global run knobs the caller may override per invocation
// (see normalizer.ResolveOptions for how they merge into the effective set).
type Options struct {
	StopOnError   *bool `yaml:"stop_on_error"`
	WorkerPool    int   `yaml:"worker_pool"`
	PreviewLimit  int   `yaml:"preview_limit"`
}

// DataSource is a named connection handle: opaque to the core beyond its
// driver and parameters. ${ENV_VAR} placeholders in Parameters are resolved
// by the caller before the project reaches the core.
type DataSource struct {
	Driver     SourceDriver      `yaml:"driver" validate:"required,oneof=sql-postgres sql-mysql sql-sqlite sql-access csv-file excel-file"`
	Parameters map[string]string `yaml:"parameters"`
}

// Entity is the central record: a named definition of one
// harmonized table and the operations that produce it.
type Entity struct {
	Name string `yaml:"-"`

	Kind       EntityKind `yaml:"kind" validate:"required,oneof=sql csv xlsx fixed derived"`
	DataSource string     `yaml:"data_source"`
	Query      string     `yaml:"query"`
	Table      string     `yaml:"table"`
	Options    *FileOptions `yaml:"options"`
	Values     [][]any    `yaml:"values"`
	Source     string     `yaml:"source"`

	Columns  []string `yaml:"columns"`
	Keys     []string `yaml:"keys"`
	PublicID string   `yaml:"public_id"`
	SystemID string   `yaml:"system_id"`

	ForeignKeys []*ForeignKey `yaml:"foreign_keys" validate:"dive"`
	Filters     []*Filter     `yaml:"filters" validate:"dive"`
	Unnest      *Unnest       `yaml:"unnest"`
	Append      []*Append     `yaml:"append" validate:"dive"`

	ExtraColumns map[string]string `yaml:"extra_columns"`

	DropDuplicates any `yaml:"drop_duplicates"` // bool or []string
	DropEmptyRows  any `yaml:"drop_empty_rows"` // bool or []string

	// DropDuplicatesKeep selects which duplicate survives dedup: "first"
	// (default) or "last". Strategies needing a secondary sort column
	// (min/max over another column) are out of scope.
	DropDuplicatesKeep string `yaml:"drop_duplicates_keep" validate:"omitempty,oneof=first last"`

	DependsOn []string `yaml:"depends_on"`

	// ErrorHandling overrides the project-level stop_on_error policy for
	// this one entity: an entity can demand the run abort on its own
	// failure even when the run tolerates failures elsewhere.
	ErrorHandling *EntityErrorPolicy `yaml:"error_handling"`

	// Materialized records lineage for a fixed entity frozen from a prior
	// source by the external editor: the graph package reads SourceState
	// back as frozen edges even though the entity's Kind is now "fixed".
	Materialized *MaterializedState `yaml:"materialized"`
}

// MaterializedState carries materialized.source_state: the entity names
// (or source/table/file references) this now-fixed entity used to be
// sourced from, before the editor froze it to inline values.
type MaterializedState struct {
	SourceState []string `yaml:"source_state"`
}

// EntityErrorPolicy overrides the error propagation policy on a
// per-entity basis: an entity that is best-effort in an otherwise strict
// run, or vice versa.
type EntityErrorPolicy struct {
	StopOnError *bool `yaml:"stop_on_error"`
}

// FileOptions covers the csv/xlsx `options` field: filename, sheet,
// separator, encoding.
type FileOptions struct {
	Filename  string `yaml:"filename" validate:"required_without=Sheet"`
	Sheet     string `yaml:"sheet"`
	Separator string `yaml:"separator"`
	Encoding  string `yaml:"encoding"`
	HasHeader *bool  `yaml:"has_header"`
}

// ForeignKeyConstraints is the cardinality/uniqueness/null policy attached
// to a ForeignKey.
type ForeignKeyConstraints struct {
	Cardinality        Cardinality `yaml:"cardinality" validate:"required,oneof=one_to_one many_to_one one_to_many"`
	AllowNullKeys      bool        `yaml:"allow_null_keys"`
	RequireUniqueLeft  bool        `yaml:"require_unique_left"`
	RequireUniqueRight bool        `yaml:"require_unique_right"`
}

// ForeignKey declares one parent relationship and how the Linker
// should join and rewrite it.
type ForeignKey struct {
	Entity         string                 `yaml:"entity" validate:"required"`
	LocalKeys      []string               `yaml:"local_keys" validate:"required,min=1"`
	RemoteKeys     []string               `yaml:"remote_keys" validate:"required,min=1"`
	How            JoinHow                `yaml:"how" validate:"required,oneof=inner left right outer cross"`
	Constraints    *ForeignKeyConstraints `yaml:"constraints"`
	ExtraColumns   map[string]string      `yaml:"extra_columns"`
	DropRemoteID   bool                   `yaml:"drop_remote_id"`
}

// Filter is a pluggable row-keeping predicate; FilterExistsIn is the one
// built-in type, others share the same {type, ...} shape.
type Filter struct {
	Type          string `yaml:"type" validate:"required"`
	Entity        string `yaml:"entity"`
	Column        string `yaml:"column"`
	RemoteColumn  string `yaml:"remote_column"`
}

const FilterExistsIn = "exists_in"

// Unnest is a wide-to-long melt directive.
type Unnest struct {
	IDVars    []string `yaml:"id_vars"`
	ValueVars []string `yaml:"value_vars" validate:"required,min=1"`
	VarName   string   `yaml:"var_name" validate:"required"`
	ValueName string   `yaml:"value_name" validate:"required"`
}

// Append concatenates extra rows from inline values or a SQL query,
// applied before business-key deduplication.
type Append struct {
	Type       AppendKind `yaml:"type" validate:"required,oneof=fixed sql"`
	Values     [][]any    `yaml:"values"`
	DataSource string     `yaml:"data_source"`
	Query      string     `yaml:"query"`
}

// Normalize fills in Name on each entity from its map key and defaults
// SystemID to the conventional "system_id" when unset. Called once right
// after YAML decode, before validation.
func (p *Project) Normalize() {
	for name, e := range p.Entities {
		e.Name = name
		if e.SystemID == "" {
			e.SystemID = "system_id"
		}
	}
}
