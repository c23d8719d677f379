// Package api exposes the pipeline over HTTP. Every request carries the
// complete input (export, mapping, club); the server keeps no session state.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/converter"
	"github.com/clubsepa/lastschrift/internal/logging"
)

// NewRouter creates the chi router with all API routes mounted.
//
// mainConfig supplies the fallback club and mapping for requests that omit
// them, the upload limit and the attachment name template.
func NewRouter(mainConfig *config.MainConfig, pipeline *converter.Pipeline, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if pipeline == nil {
		pipeline = converter.NewPipeline(logger)
	}

	h := &Handlers{
		mainConfig: mainConfig,
		pipeline:   pipeline,
		logger:     logger,
		now:        time.Now,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/preview", h.Preview)
		r.Post("/generate", h.Generate)

		r.Route("/validate", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			r.Post("/iban", h.ValidateIBAN)
			r.Post("/bic", h.ValidateBIC)
			r.Post("/creditor-id", h.ValidateCreditorID)
		})
	})

	return r
}

// requestLogger logs one line per request through logger.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("%s %s -> %d (%d bytes, %s) [%s]",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context()))
		})
	}
}
