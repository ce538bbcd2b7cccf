// Package api serves the board over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"boardcore/pkg/domain"
	"boardcore/pkg/wire"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CategoryService is the authoritative board the router exposes.
type CategoryService interface {
	ListCategories(ctx context.Context) (domain.Collection, error)
	CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error)
	UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error)
	RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error)
	DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error)
}

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	metrics http.Handler
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(c *routerConfig) { c.metrics = h }
}

type handler struct {
	svc    CategoryService
	logger *slog.Logger
}

// NewRouter builds the HTTP API over svc.
func NewRouter(svc CategoryService, logger *slog.Logger, opts ...RouterOption) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	var cfg routerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Put("/{id}/position", h.reposition)
		r.Delete("/{id}", h.remove)
	})
	return r
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = domain.Collection{}
	}
	writeJSON(w, http.StatusOK, wire.CategoriesBody{Categories: categories})
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateCategory(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.CategoryBody{Category: created})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	updated, err := h.svc.UpdateCategory(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.CategoryBody{Category: updated})
}

func (h *handler) reposition(w http.ResponseWriter, r *http.Request) {
	var body wire.PositionBody
	if !decode(w, r, &body) {
		return
	}
	moved, err := h.svc.RepositionCategory(r.Context(), domain.RepositionCategoryRequest{
		ID:       chi.URLParam(r, "id"),
		Position: body.Position,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.CategoryBody{Category: moved})
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.DeleteCategory(r.Context(), domain.DeleteCategoryRequest{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf   domain.ErrNotFound
		verr domain.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, wire.ErrorBody{Error: err.Error(), Code: wire.CodeNotFound, ID: nf.ID})
	case errors.Is(err, domain.ErrInvalidPosition):
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: err.Error(), Code: wire.CodeInvalidPosition})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: err.Error(), Code: wire.CodeValidation, Field: verr.Field})
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, wire.ErrorBody{Error: "internal error", Code: wire.CodeInternal})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "invalid request payload: " + err.Error(), Code: wire.CodeBadRequest})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(started)))
		})
	}
}
