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

// Package util holds small cross-cutting helpers shared by every core
// package: the typed error hierarchy and the entity/field reference codes
// the rest of the engine attaches to them.
package util

import "fmt"

// ErrorCategory groups errors by failure class so callers can decide
// recovery policy by category rather than by message.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "CONFIGURATION_ERROR"
	CategoryResource      ErrorCategory = "RESOURCE_ERROR"
	CategoryConstraint    ErrorCategory = "CONSTRAINT_VIOLATION"
	CategoryInternal      ErrorCategory = "INTERNAL_INVARIANT_BROKEN"
	CategoryCancelled     ErrorCategory = "CANCELLED"
)

// ShifterError is the interface every error the core returns must satisfy.
type ShifterError interface {
	error
	Code() string
	Category() ErrorCategory
	Unwrap() error
}

// ConfigurationError reports a malformed project definition detectable
// without touching data: missing required fields, unknown entity kind, an
// FK referencing an undefined entity, a cycle present when normalization
// was requested.
type ConfigurationError struct {
	Msg    string
	Entity string
	Field  string
	Cause  error
}

var _ ShifterError = &ConfigurationError{}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ConfigurationError) Code() string           { return "CONFIGURATION_ERROR" }
func (e *ConfigurationError) Category() ErrorCategory { return CategoryConfiguration }
func (e *ConfigurationError) Unwrap() error            { return e.Cause }

func NewConfigurationError(entity, field, msg string, cause error) *ConfigurationError {
	return &ConfigurationError{Msg: msg, Entity: entity, Field: field, Cause: cause}
}

// ResourceError reports a data-source connection failure, missing file, or
// SQL syntax error. Transient instances are retried once with backoff by
// the caller before being surfaced.
type ResourceError struct {
	Msg       string
	Entity    string
	Transient bool
	Cause     error
}

var _ ShifterError = &ResourceError{}

func (e *ResourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ResourceError) Code() string           { return "LOAD_ERROR" }
func (e *ResourceError) Category() ErrorCategory { return CategoryResource }
func (e *ResourceError) Unwrap() error            { return e.Cause }

func NewResourceError(entity, msg string, transient bool, cause error) *ResourceError {
	return &ResourceError{Msg: msg, Entity: entity, Transient: transient, Cause: cause}
}

// ConstraintViolation reports cardinality, uniqueness, null-key policy, or
// post-load column-missing violations, associated with an entity and
// (where relevant) a foreign-key index.
type ConstraintViolation struct {
	Msg    string
	Code_  string
	Entity string
	FKIdx  int
	Cause  error
}

var _ ShifterError = &ConstraintViolation{}

func (e *ConstraintViolation) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ConstraintViolation) Code() string           { return e.Code_ }
func (e *ConstraintViolation) Category() ErrorCategory { return CategoryConstraint }
func (e *ConstraintViolation) Unwrap() error            { return e.Cause }

func NewConstraintViolation(code, entity, msg string, fkIdx int, cause error) *ConstraintViolation {
	return &ConstraintViolation{Msg: msg, Code_: code, Entity: entity, FKIdx: fkIdx, Cause: cause}
}

// InternalInvariantBroken reports a state-machine transition that reached an
// impossible state. Fatal: the run aborts rather than recovering locally.
type InternalInvariantBroken struct {
	Msg    string
	Entity string
	Cause  error
}

var _ ShifterError = &InternalInvariantBroken{}

func (e *InternalInvariantBroken) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invariant broken: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("invariant broken: %s", e.Msg)
}

func (e *InternalInvariantBroken) Code() string           { return "INTERNAL_INVARIANT_BROKEN" }
func (e *InternalInvariantBroken) Category() ErrorCategory { return CategoryInternal }
func (e *InternalInvariantBroken) Unwrap() error            { return e.Cause }

func NewInternalInvariantBroken(entity, msg string, cause error) *InternalInvariantBroken {
	return &InternalInvariantBroken{Msg: msg, Entity: entity, Cause: cause}
}

// CancelledError reports cooperative cancellation. Surfaced as a single
// result; never wraps a partial TableStore.
type CancelledError struct {
	Msg string
}

var _ ShifterError = &CancelledError{}

func (e *CancelledError) Error() string            { return e.Msg }
func (e *CancelledError) Code() string              { return "CANCELLED" }
func (e *CancelledError) Category() ErrorCategory    { return CategoryCancelled }
func (e *CancelledError) Unwrap() error              { return nil }

func NewCancelledError(msg string) *CancelledError {
	if msg == "" {
		msg = "run cancelled"
	}
	return &CancelledError{Msg: msg}
}

// CycleDetectedError reports a non-empty cycle set from the dependency
// graph when the Normalizer requires an acyclic graph to run. A typed
// sentinel, usable with errors.Is.
type CycleDetectedError struct {
	Cycles [][]string
}

var _ ShifterError = &CycleDetectedError{}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("project contains %d dependency cycle(s), refusing to normalize", len(e.Cycles))
}

func (e *CycleDetectedError) Code() string           { return "CYCLE_DETECTED" }
func (e *CycleDetectedError) Category() ErrorCategory { return CategoryConfiguration }
func (e *CycleDetectedError) Unwrap() error           { return nil }

func (e *CycleDetectedError) Is(target error) bool {
	_, ok := target.(*CycleDetectedError)
	return ok
}

func NewCycleDetectedError(cycles [][]string) *CycleDetectedError {
	return &CycleDetectedError{Cycles: cycles}
}

// NotReadyError is returned by preview/validation reads that target an
// entity the Normalizer has not yet finished producing. A typed sentinel
// usable with errors.Is rather than a string-coded one, so callers can
// branch on it directly.
type NotReadyError struct {
	Entity string
}

func (e *NotReadyError) Error() string { return fmt.Sprintf("entity %q is not ready", e.Entity) }
func (e *NotReadyError) Code() string   { return "NOT_READY" }

// ErrNotReady is the comparable sentinel for errors.Is checks; NotReadyError
// values compare equal to it regardless of Entity via errors.Is's Is method.
var ErrNotReady = &NotReadyError{}

func (e *NotReadyError) Is(target error) bool {
	_, ok := target.(*NotReadyError)
	return ok
}
