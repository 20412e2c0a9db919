package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleProducts() []*models.Product {
	return []*models.Product{
		{
			TCIN:        "11111111",
			Title:       "LEGO Classic, Large Box",
			Image:       "https://target.scene7.com/is/image/Target/GUEST_1",
			Rating:      models.Float(4.5),
			ReviewCount: models.Int(120),
			Price:       "$24.99",
			IsSponsored: true,
			URL:         "https://www.target.com/p/-/A-11111111",
			Source:      "static",
		},
		{
			TCIN:  "22222222",
			Title: "Mystery Toy",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		hasError bool
	}{
		{"csv", FormatCSV, false},
		{"", FormatCSV, false},
		{"XLSX", FormatXLSX, false},
		{"excel", FormatXLSX, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFormat(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "target_products.csv", FormatCSV.Filename())
	assert.Equal(t, "target_products.xlsx", FormatXLSX.Filename())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")

	f, err := FormatFromPath("/tmp/out.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleProducts()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{
		"11111111", "LEGO Classic, Large Box", "https://target.scene7.com/is/image/Target/GUEST_1",
		"4.5", "120", "$24.99", "true", "https://www.target.com/p/-/A-11111111", "static",
	}, records[1])
	assert.Equal(t, []string{"22222222", "Mystery Toy", "", "", "", "", "false", "", ""}, records[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "tcin,title,image,rating,review_count,price,is_sponsored,url,source\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleProducts()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "11111111", rows[1][0])
	assert.Equal(t, "4.5", rows[1][3])
	assert.Equal(t, "120", rows[1][4])
	assert.Equal(t, "$24.99", rows[1][5])
	assert.Equal(t, "TRUE", rows[1][6])
	assert.Equal(t, "Mystery Toy", rows[2][1])

	ratingType, err := f.GetCellType(SheetName, "D2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeInlineString, ratingType)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFile(csvPath, sampleProducts()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "11111111")

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, WriteFile(xlsxPath, sampleProducts()))
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	f.Close()

	assert.Error(t, WriteFile(filepath.Join(dir, "out.pdf"), sampleProducts()))
}
