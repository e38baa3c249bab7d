package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/api/handler"
	"github.com/ella-cms/scribble/internal/api/middleware"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/ports"
)

// Prefix is the mount point of the resource collections.
const Prefix = "/api/r1"

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Types *entity.Registry
	Store ports.ResourceStore

	// JWTSecret enables bearer auth on the resource routes when set.
	JWTSecret string
	// Auth serves POST /auth/token when set.
	Auth ports.AuthService

	// Checks are the named readiness probes (e.g. "mongo", "redis").
	Checks map[string]func(context.Context) error

	// Registerer receives the HTTP metrics; nil disables /metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	if d.Registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "scribble_http",
			Registerer: d.Registerer,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
		gatherer := d.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	}

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.Checks)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Auth routes ---
	if d.Auth != nil {
		authHandler := handler.NewAuthHandler(d.Auth)
		e.POST("/auth/token", authHandler.Token)
	}

	// --- Resource routes ---
	resources := handler.NewResourceHandler(d.Types, d.Store, d.Log)
	g := e.Group(Prefix)
	if d.JWTSecret != "" {
		g.Use(middleware.Auth(d.JWTSecret), middleware.WriteAccess())
	}
	g.GET("/:type/", resources.List)
	g.POST("/:type/", resources.Create)
	g.GET("/:type/:id/", resources.Get)
	g.DELETE("/:type/:id/", resources.Delete)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
