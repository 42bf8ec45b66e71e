package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func recapDataset() Dataset {
	return Dataset{
		Title:    "Attendance Recap",
		Subtitle: "2024-05-01 - 2024-05-31",
		Columns: []Column{
			{Key: "name", Label: "Member"},
			{Key: "present", Label: "Present", Numeric: true},
			{Key: "percentage", Label: "Presence %", Numeric: true},
		},
		Rows: []map[string]string{
			{"name": "Alya", "present": "3", "percentage": "75.0"},
			{"name": "Bima, Jr", "present": "0", "percentage": "0.0"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(recapDataset())
	require.NoError(t, err)
	require.Equal(t, "Member,Present,Presence %\nAlya,3,75.0\n\"Bima, Jr\",0,0.0\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(recapDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(recapDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	title, err := f.GetCellValue(xlsxSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Attendance Recap", title)

	header, err := f.GetCellValue(xlsxSheet, "B4")
	require.NoError(t, err)
	require.Equal(t, "Present", header)

	name, err := f.GetCellValue(xlsxSheet, "A5")
	require.NoError(t, err)
	require.Equal(t, "Alya", name)
}

func TestRenderersRequireColumns(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatPDF, FormatXLSX} {
		renderer, err := NewRenderer(format)
		require.NoError(t, err)
		_, err = renderer.Render(Dataset{})
		require.Error(t, err, format)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	_, err = ParseFormat("docx")
	require.Error(t, err)
}
