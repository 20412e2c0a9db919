package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/maltedev/target-product-scraper/internal/models"
)

func WriteCSV(w io.Writer, products []*models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	for _, p := range products {
		rec := []string{
			p.TCIN,
			p.Title,
			p.Image,
			floatStr(p.Rating),
			intStr(p.ReviewCount),
			p.Price,
			strconv.FormatBool(p.IsSponsored),
			p.URL,
			p.Source,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func floatStr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
