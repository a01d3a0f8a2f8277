package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appinsp "github.com/bryanwahyu/safety-inspector/internal/application/inspections"
	domai "github.com/bryanwahyu/safety-inspector/internal/domain/ai"
	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
	"github.com/bryanwahyu/safety-inspector/internal/middleware"
)

// maxBodyBytes caps JSON request bodies; images travel by reference.
const maxBodyBytes = 1 << 20

// BatchAnalyzer analyzes a worklist without persisting anything.
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, items []domain.WorkItem) []domain.ItemResult
	DemoMode() bool
}

type Options struct {
	CORSOrigins []string
	Metrics     *middleware.Metrics
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	Checkers    map[string]middleware.HealthChecker
	Logger      *slog.Logger
}

type Router struct {
	inspections *appinsp.Service
	analyzer    BatchAnalyzer
	logger      *slog.Logger
}

func NewRouter(inspections *appinsp.Service, analyzer BatchAnalyzer, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := &Router{inspections: inspections, analyzer: analyzer, logger: logger}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(metrics.Middleware)
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/inspections", r.wrap(r.handleCreate))
		rt.Get("/inspections", r.wrap(r.handleList))
		rt.Get("/inspections/stats/summary", r.wrap(r.handleStats))
		rt.Get("/inspections/{id}", r.wrap(r.handleGet))
		rt.Delete("/inspections/{id}", r.wrap(r.handleDelete))
		rt.Post("/inspections/{id}/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/analyze/batch", r.wrap(r.handleBatch))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var verr *domain.ValidationError
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeError(w, http.StatusNotFound, err.Error(), nil)
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Error(), verr.Fields)
			case errors.Is(err, domai.ErrQuotaExceeded):
				writeError(w, http.StatusTooManyRequests, "ai quota exceeded", nil)
			default:
				r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "err", err)
				writeError(w, http.StatusInternalServerError, err.Error(), nil)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	body := map[string]any{"success": false, "error": msg}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	_ = writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Err: fmt.Errorf("invalid JSON body: %w", err)}
	}
	return nil
}

func inspectionID(req *http.Request) (domain.InspectionID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateInspectionID(id); err != nil {
		return "", &domain.ValidationError{Fields: map[string]string{"id": err.Error()}}
	}
	return domain.InspectionID(id), nil
}

type analyzeBody struct {
	ImageAnalyses []domain.WorkItem `json:"imageAnalyses"`
}

func (b *analyzeBody) sanitize() error {
	fields := map[string]string{}
	for i := range b.ImageAnalyses {
		it := &b.ImageAnalyses[i]
		it.ItemName = middleware.SanitizeString(it.ItemName)
		it.Prompt = middleware.SanitizeString(it.Prompt)
		if err := middleware.ValidateImagePath(it.ImagePath); err != nil {
			fields[fmt.Sprintf("imageAnalyses[%d].imagePath", i)] = err.Error()
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// POST /v1/inspections
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	var cmd appinsp.CreateCommand
	if err := decode(w, req, &cmd); err != nil {
		return err
	}
	cmd.UserName = middleware.SanitizeString(cmd.UserName)
	cmd.Location = middleware.SanitizeString(cmd.Location)

	in, err := r.inspections.Create(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message":    "검사가 성공적으로 생성되었습니다.",
		"inspection": in,
	})
}

// GET /v1/inspections?page=&limit=&status=&location=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	f := domain.ListFilter{
		Page:     middleware.ValidatePage(page),
		PageSize: middleware.ValidateLimit(limit),
		Status:   domain.Status(q.Get("status")),
		Location: middleware.SanitizeString(q.Get("location")),
	}

	list, err := r.inspections.List(req.Context(), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"inspections": list,
		"pagination": map[string]int{
			"currentPage": f.Page,
			"limit":       f.PageSize,
			"total":       len(list),
		},
	})
}

// GET /v1/inspections/stats/summary?days=30
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	st, err := r.inspections.Stats(req.Context(), middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

// GET /v1/inspections/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := inspectionID(req)
	if err != nil {
		return err
	}
	in, err := r.inspections.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "inspection": in})
}

// DELETE /v1/inspections/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := inspectionID(req)
	if err != nil {
		return err
	}
	if err := r.inspections.Delete(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "검사가 성공적으로 삭제되었습니다.",
		"inspectionId": id,
	})
}

// POST /v1/inspections/{id}/analyze
// Body: {"imageAnalyses": [{"itemId", "itemName", "imagePath", "prompt"}]}
// Streams the run as application/x-ndjson, one event per line.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id, err := inspectionID(req)
	if err != nil {
		return err
	}
	var body analyzeBody
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := body.sanitize(); err != nil {
		return err
	}

	// the run outlives a disconnected client and still persists every item
	run, err := r.inspections.Start(context.WithoutCancel(req.Context()), appinsp.RunRequest{
		InspectionID: id,
		Items:        body.ImageAnalyses,
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ew := NewEventWriter(w, r.logger)
	for ev := range run.Events() {
		ew.Emit(ev)
	}
	if _, err := run.Wait(); err != nil {
		// headers are gone; the error record already closed the stream
		r.logger.Error("analysis run ended with error", "inspection", id, "err", err)
	}
	return nil
}

// POST /v1/analyze/batch
// Same body as analyze; answers with every item result at once, nothing stored.
func (r *Router) handleBatch(w http.ResponseWriter, req *http.Request) error {
	var body analyzeBody
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if len(body.ImageAnalyses) == 0 {
		return &domain.ValidationError{Err: domain.ErrEmptyWorklist}
	}
	if err := body.sanitize(); err != nil {
		return err
	}

	results := r.analyzer.AnalyzeBatch(req.Context(), body.ImageAnalyses)
	return writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"results":  results,
		"demoMode": r.analyzer.DemoMode(),
	})
}
