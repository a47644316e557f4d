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

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humlab-sead/shapeshifter/internal/graph"
	"github.com/humlab-sead/shapeshifter/internal/project"
)

func TestGetMissesWhenNeverPut(t *testing.T) {
	c := New(time.Minute)
	_, ok := c.Get(Key{Project: "p", Entity: "e", Operation: OpPreview}, 1, 1)
	assert.False(t, ok)
}

func TestPutThenGetHitsWithMatchingVersionAndHash(t *testing.T) {
	c := New(time.Minute)
	key := Key{Project: "p", Entity: "e", Operation: OpPreview}
	c.Put(key, "value", 1, 42)

	v, ok := c.Get(key, 1, 42)
	require.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestGetMissesOnVersionMismatch(t *testing.T) {
	c := New(time.Minute)
	key := Key{Project: "p", Entity: "e", Operation: OpPreview}
	c.Put(key, "value", 1, 42)

	_, ok := c.Get(key, 2, 42)
	assert.False(t, ok)
}

func TestGetMissesOnHashMismatch(t *testing.T) {
	c := New(time.Minute)
	key := Key{Project: "p", Entity: "e", Operation: OpPreview}
	c.Put(key, "value", 1, 42)

	_, ok := c.Get(key, 1, 43)
	assert.False(t, ok)
}

func TestGetMissesAfterTTLExpires(t *testing.T) {
	c := New(time.Nanosecond)
	key := Key{Project: "p", Entity: "e", Operation: OpPreview}
	c.Put(key, "value", 1, 42)
	time.Sleep(time.Millisecond)

	_, ok := c.Get(key, 1, 42)
	assert.False(t, ok)
}

func TestInvalidateFlushesOneEntity(t *testing.T) {
	c := New(time.Minute)
	k1 := Key{Project: "p", Entity: "a", Operation: OpPreview}
	k2 := Key{Project: "p", Entity: "b", Operation: OpPreview}
	c.Put(k1, "va", 1, 1)
	c.Put(k2, "vb", 1, 1)

	c.Invalidate("p", "a")

	_, ok := c.Get(k1, 1, 1)
	assert.False(t, ok)
	_, ok = c.Get(k2, 1, 1)
	assert.True(t, ok)
}

func TestInvalidateFlushesWholeProjectWhenEntityEmpty(t *testing.T) {
	c := New(time.Minute)
	k1 := Key{Project: "p", Entity: "a", Operation: OpPreview}
	k2 := Key{Project: "p", Entity: "b", Operation: OpPreview}
	c.Put(k1, "va", 1, 1)
	c.Put(k2, "vb", 1, 1)

	c.Invalidate("p", "")

	_, ok := c.Get(k1, 1, 1)
	assert.False(t, ok)
	_, ok = c.Get(k2, 1, 1)
	assert.False(t, ok)
}

func fkEntity(parent string) *project.Entity {
	return &project.Entity{
		Kind: project.KindCSV,
		ForeignKeys: []*project.ForeignKey{
			{Entity: parent, LocalKeys: []string{"x"}, RemoteKeys: []string{"y"}, How: project.HowInner},
		},
	}
}

func TestEntityHashIsIdempotentForUnchangedDefinition(t *testing.T) {
	entities := map[string]*project.Entity{
		"site":   {Kind: project.KindCSV},
		"sample": fkEntity("site"),
	}
	p := &project.Project{Name: "p", Entities: entities}
	p.Normalize()
	g, _ := graph.Build(p)

	h1 := EntityHash(p, g, "sample")
	h2 := EntityHash(p, g, "sample")
	assert.Equal(t, h1, h2)
}

func TestEntityHashChangesWhenAncestorDefinitionChanges(t *testing.T) {
	entities := map[string]*project.Entity{
		"site":   {Kind: project.KindCSV, Columns: []string{"a"}},
		"sample": fkEntity("site"),
	}
	p := &project.Project{Name: "p", Entities: entities}
	p.Normalize()
	g, _ := graph.Build(p)

	h1 := EntityHash(p, g, "sample")

	// mutate the ancestor's definition in place, with no version-token
	// bump: the content hash alone must change.
	p.Entities["site"].Columns = []string{"a", "b"}
	h2 := EntityHash(p, g, "sample")

	assert.NotEqual(t, h1, h2)
}

func TestGetMissesAfterAncestorMutationWithoutVersionBump(t *testing.T) {
	entities := map[string]*project.Entity{
		"site":   {Kind: project.KindCSV, Columns: []string{"a"}},
		"sample": fkEntity("site"),
	}
	p := &project.Project{Name: "p", Entities: entities}
	p.Normalize()
	g, _ := graph.Build(p)

	c := New(time.Minute)
	key := Key{Project: "p", Entity: "sample", Operation: OpPreview}
	c.Put(key, "artifact", 1, EntityHash(p, g, "sample"))

	p.Entities["site"].Columns = []string{"a", "b"}

	_, ok := c.Get(key, 1, EntityHash(p, g, "sample"))
	assert.False(t, ok, "stale artifact must not be served after an upstream edit")
}

func TestProjectHashCoversEveryEntity(t *testing.T) {
	p1 := &project.Project{Name: "p", Entities: map[string]*project.Entity{"a": {Kind: project.KindCSV}}}
	p1.Normalize()
	p2 := &project.Project{Name: "p", Entities: map[string]*project.Entity{"a": {Kind: project.KindCSV, Columns: []string{"x"}}}}
	p2.Normalize()

	h1 := ProjectHash(p1)
	h2 := ProjectHash(p2)
	assert.NotEqual(t, h1, h2)
}
