// Package api exposes rate lookups and quotes over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/location"
	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/internal/quote"
	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

// Service is the subset of quote.Service the handlers need.
type Service interface {
	Table() *taxtable.Table
	Locate(ctx context.Context, zip string) (model.Match, error)
	Quote(ctx context.Context, zip, payment string) (model.Quote, error)
}

// Option configures the router.
type Option func(*options)

type options struct {
	origins []string
	timeout time.Duration
}

// WithCORSOrigins sets the allowed CORS origins. Empty means "*".
func WithCORSOrigins(origins []string) Option {
	return func(o *options) {
		if len(origins) > 0 {
			o.origins = origins
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

type handler struct {
	svc Service
}

// NewRouter returns the HTTP handler for svc.
func NewRouter(svc Service, opts ...Option) http.Handler {
	o := options{origins: []string{"*"}, timeout: 60 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}

	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(o.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: o.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/rates", h.rates)
		r.Get("/locations/{zip}", h.location)
		r.Get("/quotes", h.quote)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rates":  h.svc.Table().Len(),
	})
}

func (h *handler) rates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows := h.svc.Table().Filter(q.Get("city"), q.Get("county"))
	if rows == nil {
		rows = []model.TaxTableRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) location(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Locate(r.Context(), chi.URLParam(r, "zip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.NewMatchView(m))
}

func (h *handler) quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Quote(r.Context(), q.Get("zip"), q.Get("payment"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.NewQuoteView(res))
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, quote.ErrInvalidZip), errors.Is(err, quote.ErrInvalidPayment):
		return http.StatusBadRequest
	case errors.Is(err, location.ErrGeocoderMiss), errors.Is(err, quote.ErrNoRateMatch):
		return http.StatusNotFound
	case errors.Is(err, location.ErrOutOfDomain), errors.Is(err, taxcalc.ErrInvalidRate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, taxtable.ErrEmptyTaxTable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}

	var nm *quote.NoMatchError
	if errors.As(err, &nm) {
		body.Suggestions = nm.Suggestions
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
