package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/target-product-scraper/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	baseFilename = "target_products"
	SheetName    = "Target Products"
)

// Columns is the export column order.
var Columns = []string{"tcin", "title", "image", "rating", "review_count", "price", "is_sponsored", "url", "source"}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel", "xls":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Filename() string {
	return baseFilename + "." + string(f)
}

func Write(w io.Writer, f Format, products []*models.Product) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, products)
	case FormatXLSX:
		return WriteXLSX(w, products)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteFile exports to path, choosing the format from its extension.
func WriteFile(path string, products []*models.Product) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Write(out, f, products); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}
