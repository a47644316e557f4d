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
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/humlab-sead/shapeshifter/internal/normalizer"
)

// WorkbookWriter is the workbook (xlsx) target: one sheet per entity,
// sheet name = entity name, built with the same github.com/xuri/excelize/v2
// library internal/sources/xlsxfile reads xlsx entities with.
type WorkbookWriter struct {
	Path string
}

var _ Dispatcher = (*WorkbookWriter)(nil)

func (w *WorkbookWriter) Dispatch(ctx context.Context, result *normalizer.Result, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	names, tables := entityTables(result, opts)
	if len(names) == 0 {
		return f.SaveAs(w.Path)
	}

	for i, name := range names {
		sheet := sheetName(name)
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), sheet)
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sink: creating sheet %q: %w", sheet, err)
		}

		t := tables[name]
		for col, c := range t.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, c); err != nil {
				return err
			}
		}
		for row, r := range t.Rows {
			for col, c := range t.Columns {
				cell, err := excelize.CoordinatesToCellName(col+1, row+2)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, r[c]); err != nil {
					return err
				}
			}
		}
	}

	return f.SaveAs(w.Path)
}

// sheetName truncates to excelize's 31-character sheet-name limit; a
// harmonization project's entity names are expected to stay well under
// this, but sinks shouldn't panic on the edge case.
func sheetName(entity string) string {
	if len(entity) > 31 {
		return entity[:31]
	}
	return entity
}
