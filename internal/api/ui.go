package api

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/maltedev/target-product-scraper/internal/scraper"
)

//go:embed templates/index.html
var templates embed.FS

// UI serves the single page front end.
type UI struct {
	tmpl   *template.Template
	data   pageData
	logger *slog.Logger
}

type pageData struct {
	Strategies      []string
	DefaultStrategy string
	DefaultPages    int
	MinPages        int
	MaxPages        int
}

func NewUI(defaultStrategy string, logger *slog.Logger) (*UI, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}
	if defaultStrategy == "" {
		defaultStrategy = scraper.StrategyCascade
	}

	return &UI{
		tmpl: tmpl,
		data: pageData{
			Strategies:      scraper.Names(),
			DefaultStrategy: defaultStrategy,
			DefaultPages:    scraper.DefaultMaxPages,
			MinPages:        scraper.MinPages,
			MaxPages:        scraper.MaxPagesLimit,
		},
		logger: logger.With("component", "ui"),
	}, nil
}

func (u *UI) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := u.tmpl.Execute(&buf, u.data); err != nil {
		u.logger.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
