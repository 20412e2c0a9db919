package export

import (
	"io"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/xuri/excelize/v2"
)

var columnWidths = []float64{12, 60, 50, 8, 13, 10, 13, 50, 10}

func WriteXLSX(w io.Writer, products []*models.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}

	for i, width := range columnWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(Columns))
	for i, name := range Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, p := range products {
		row := []interface{}{
			p.TCIN,
			p.Title,
			p.Image,
			floatCell(p.Rating),
			intCell(p.ReviewCount),
			p.Price,
			p.IsSponsored,
			p.URL,
			p.Source,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
