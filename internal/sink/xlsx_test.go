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

package sink

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	w := &WorkbookWriter{Path: path}
	require.NoError(t, w.Dispatch(context.Background(), testResult(), Options{}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"location", "site"}, f.GetSheetList())

	rows, err := f.GetRows("site")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"site_name", "location_id", "system_id"}, rows[0])
	assert.Equal(t, []string{"A", "1", "1"}, rows[1])
	assert.Equal(t, []string{"B", "2", "2"}, rows[2])
}

func TestSheetNameTruncation(t *testing.T) {
	long := strings.Repeat("x", 40)
	got := sheetName(long)
	assert.Len(t, got, 31)
	assert.Equal(t, long[:31], got)

	assert.Equal(t, "site", sheetName("site"))
}
