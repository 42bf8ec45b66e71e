package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Recap"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return ".xlsx" }

// Render writes the title block, a bold header row and the data rows.
// Numeric columns are stored as numbers when they parse.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one column")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	if data.Title != "" {
		if err := f.SetCellValue(xlsxSheet, cell(1, row), data.Title); err != nil {
			return nil, err
		}
		row++
	}
	if data.Subtitle != "" {
		if err := f.SetCellValue(xlsxSheet, cell(1, row), data.Subtitle); err != nil {
			return nil, err
		}
		row++
	}
	if row > 1 {
		row++
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for i, label := range data.labels() {
		if err := f.SetCellValue(xlsxSheet, cell(i+1, row), label); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(xlsxSheet, cell(1, row), cell(len(data.Columns), row), headerStyle); err != nil {
		return nil, err
	}

	for _, values := range data.Rows {
		row++
		for i, col := range data.Columns {
			var value interface{} = values[col.Key]
			if col.Numeric {
				if n, err := strconv.ParseFloat(values[col.Key], 64); err == nil {
					value = n
				}
			}
			if err := f.SetCellValue(xlsxSheet, cell(i+1, row), value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}
