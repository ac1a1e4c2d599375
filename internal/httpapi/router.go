// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

// Package httpapi exposes the auth service over HTTP.
//
// Routes:
//
//	POST     /signup
//	POST     /login
//	POST     /forgot
//	POST     /reset
//	GET|POST /refresh   Authorization: Bearer <token>
//	GET      /health
//
// Every response, failures included, is an Envelope.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/placy/placy/internal/observability"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Options configures NewRouter.
type Options struct {
	Logger       *slog.Logger                // defaults to slog.Default()
	Metrics      *observability.HTTPMetrics // nil disables request metrics
	MaxBodyBytes int64                      // defaults to DefaultMaxBodyBytes
}

// NewRouter builds the API handler.
func NewRouter(svc Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &handlers{svc: svc, maxBodyBytes: opts.MaxBodyBytes}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogging(opts.Logger, opts.Metrics))
	r.Use(recoverer(opts.Logger))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", h.health)
	r.Get("/refresh", h.refresh)
	r.Post("/refresh", h.refresh)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/forgot", h.forgot)
		r.Post("/reset", h.reset)
	})

	return r
}

// requestLogging logs one line per request and records its metrics
// against the matched route pattern.
func requestLogging(logger *slog.Logger, metrics *observability.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.Observe(r.Method, route, status, elapsed)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed,
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr)
		})
	}
}

// recoverer turns a handler panic into a 500 envelope.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "handler panic",
					"panic", rec,
					"path", r.URL.Path,
					"request_id", chiMiddleware.GetReqID(r.Context()))
				writeEnvelope(w, r, Envelope{Status: http.StatusInternalServerError, ErrMsg: "internal server error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
