package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/target-product-scraper/internal/export"
	"github.com/maltedev/target-product-scraper/internal/jobs"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/scraper"
)

// Scraper runs synchronous crawls. scraper.Service satisfies it.
type Scraper interface {
	Crawl(ctx context.Context, startURL, strategy string, opts scraper.CrawlOptions) (*models.Result, error)
	Manual(ctx context.Context, inputs []string) (*models.Result, []string, error)
	DefaultStrategy() string
	BrowserStarted() bool
}

// OutboxStats reports relay backlog for the health check.
type OutboxStats interface {
	Counts(ctx context.Context) (pending, dead int64, err error)
}

type Handlers struct {
	scraper Scraper
	jobs    *jobs.Manager
	outbox  OutboxStats
	logger  *slog.Logger
}

// NewHandlers wires the handlers. outbox may be nil when events are disabled.
func NewHandlers(s Scraper, manager *jobs.Manager, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: s,
		jobs:    manager,
		outbox:  outbox,
		logger:  logger.With("component", "api"),
	}
}

type ScrapeRequest struct {
	URL       string   `json:"url"`
	Strategy  string   `json:"strategy"`
	MaxPages  int      `json:"max_pages"`
	URLs      []string `json:"urls"`
	SkipCache bool     `json:"skip_cache"`
}

type ScrapeResponse struct {
	*models.Result
	Invalid []string `json:"invalid,omitempty"`
}

// Scrape runs a crawl and answers with the deduplicated products. A request
// with the manual strategy or a urls list uses the manual fallback.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Strategy == scraper.StrategyManual || len(req.URLs) > 0 {
		inputs := req.URLs
		if len(inputs) == 0 && req.URL != "" {
			inputs = []string{req.URL}
		}
		if len(inputs) == 0 {
			h.respondError(w, http.StatusBadRequest, "urls is required for the manual strategy")
			return
		}

		result, invalid, err := h.scraper.Manual(r.Context(), inputs)
		if err != nil {
			h.respondErr(w, "manual collection failed", err)
			return
		}
		h.respondJSON(w, http.StatusOK, ScrapeResponse{Result: result, Invalid: invalid})
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.scraper.Crawl(r.Context(), strings.TrimSpace(req.URL), req.Strategy, scraper.CrawlOptions{
		MaxPages:  req.MaxPages,
		SkipCache: req.SkipCache,
	})
	if err != nil {
		h.respondErr(w, "scrape failed", err)
		return
	}
	h.respondJSON(w, http.StatusOK, ScrapeResponse{Result: result})
}

type ExportRequest struct {
	Products []*models.Product `json:"products"`
}

// Export turns posted products into a CSV or Excel download.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.writeExport(w, format, req.Products)
}

type CreateJobRequest struct {
	URL      string `json:"url"`
	Strategy string `json:"strategy"`
	MaxPages int    `json:"max_pages"`
}

type CreateJobResponse struct {
	JobID   string           `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.URL, req.Strategy, req.MaxPages)
	if err != nil {
		h.respondErr(w, "failed to create job", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondErr(w, "failed to get job", err)
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		h.respondErr(w, "failed to list jobs", err)
		return
	}
	if list == nil {
		list = []*models.Job{}
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetJobProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.jobs.GetJobProducts(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondErr(w, "failed to get products", err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) ExportJob(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.jobs.GetJobProducts(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondErr(w, "failed to get products", err)
		return
	}
	h.writeExport(w, format, products)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.GetStats(r.Context())
	if err != nil {
		h.respondErr(w, "failed to get stats", err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

const (
	pendingWarnThreshold = 1000
	deadLetterThreshold  = 100
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":     "ok",
		"queue_size": h.jobs.QueueSize(),
		"browser":    h.scraper.BrowserStarted(),
	}
	status := http.StatusOK

	if h.outbox != nil {
		pending, dead, err := h.outbox.Counts(r.Context())
		switch {
		case err != nil:
			health["status"] = "error"
			health["message"] = "outbox unavailable"
			status = http.StatusServiceUnavailable
		case dead > deadLetterThreshold:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case pending > pendingWarnThreshold:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) writeExport(w http.ResponseWriter, format export.Format, products []*models.Product) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	if err := export.Write(w, format, products); err != nil {
		h.logger.Error("failed to write export", "format", format, "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scraper.ErrInvalidURL),
		errors.Is(err, scraper.ErrUnknownStrategy),
		errors.Is(err, scraper.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, scraper.ErrBlocked), errors.Is(err, scraper.ErrRateLimited):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handlers) respondErr(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Warn(msg, "error", err, "status", status)
	}
	h.respondError(w, status, err.Error())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
