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

package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependentOfSource(t *testing.T) {
	t1 := New([]string{"a"})
	t1.Rows = []Row{{"a": 1}}

	t2 := t1.Clone()
	t2.Rows[0]["a"] = 2
	t2.AddColumn("b")

	assert.Equal(t, 1, t1.Rows[0]["a"])
	assert.False(t, t1.HasColumn("b"))
}

func TestRenameColumnPreservesPositionAndKind(t *testing.T) {
	tb := New([]string{"x", "y"})
	tb.Kinds["x"] = KindInt
	tb.Rows = []Row{{"x": 1, "y": "a"}}

	tb.RenameColumn("x", "z")

	assert.Equal(t, []string{"z", "y"}, tb.Columns)
	assert.Equal(t, KindInt, tb.Kinds["z"])
	assert.Equal(t, 1, tb.Rows[0]["z"])
	_, hasOld := tb.Rows[0]["x"]
	assert.False(t, hasOld)
}

func TestRemoveColumnDropsFromRowsAndKinds(t *testing.T) {
	tb := New([]string{"x", "y"})
	tb.Kinds["x"] = KindString
	tb.Rows = []Row{{"x": "v", "y": 1}}

	tb.RemoveColumn("x")

	assert.Equal(t, []string{"y"}, tb.Columns)
	_, ok := tb.Kinds["x"]
	assert.False(t, ok)
	_, hasX := tb.Rows[0]["x"]
	assert.False(t, hasX)
}

func TestProjectRequiresColumnUnlessOptional(t *testing.T) {
	tb := New([]string{"a", "b"})
	tb.Rows = []Row{{"a": 1, "b": 2}}

	_, err := Project(tb, []string{"a", "c"}, nil)
	require.Error(t, err)

	out, err := Project(tb, []string{"a", "c"}, map[string]bool{"c": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Columns)
}

func TestInferKindsDetectsConsistentType(t *testing.T) {
	tb := New([]string{"n"})
	tb.Rows = []Row{{"n": 1}, {"n": 2}, {"n": nil}}
	tb.InferKinds()
	assert.Equal(t, KindInt, tb.Kinds["n"])
}

func TestInferKindsFallsBackOnMixedTypes(t *testing.T) {
	tb := New([]string{"n"})
	tb.Rows = []Row{{"n": 1}, {"n": "two"}}
	tb.InferKinds()
	assert.Equal(t, KindUnknown, tb.Kinds["n"])
}
