package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxReader) Read(path string, opt LoadOptions) (*Dataset, error) {
	return LoadXLSX(path, opt)
}

// LoadXLSX reads one sheet of a workbook. The first row is the header.
func LoadXLSX(path string, opt LoadOptions) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoHeader)
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'. Available sheets: %s",
				opt.Sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoHeader)
	}
	header := trimHeader(rows[0])
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoHeader)
	}
	ds := &Dataset{Name: filepath.Base(path), Columns: header, Format: opt.Format}
	limit := opt.limit()
	for i, rec := range rows[1:] {
		if ds.NumRows() >= limit {
			break
		}
		if len(rec) > len(header) {
			// GetRows keeps trailing empty cells only up to the last value.
			extra := rec[len(header):]
			if strings.TrimSpace(strings.Join(extra, "")) != "" {
				return nil, fmt.Errorf("%s: row %d has %d cells, header has %d", filepath.Base(path), i+2, len(rec), len(header))
			}
			rec = rec[:len(header)]
		}
		ds.appendRow(rec)
	}
	return ds, nil
}

// WriteXLSX writes the dataset to a single-sheet workbook named after sheet.
func WriteXLSX(d *Dataset, path, sheet string) error {
	if sheet == "" {
		sheet = "data"
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := writeXLSXRow(f, sheet, 1, d.Columns); err != nil {
		return err
	}
	for i, row := range d.Rows {
		if err := writeXLSXRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeXLSXRow(f *excelize.File, sheet string, n int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(cells))
	for i, c := range cells {
		vals[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}
