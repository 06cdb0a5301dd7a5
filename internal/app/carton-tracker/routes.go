// Package cartontracker собирает HTTP-приложение: зависимости, маршруты и жизненный цикл сервера.
package cartontracker

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/device/status"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/measurement/create"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/measurement/list"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/measurement/live"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/measurement/read"
	"github.com/magabrotheeeer/carton-tracker/internal/http/handlers/measurement/run"
	"github.com/magabrotheeeer/carton-tracker/internal/http/middlewarectx"
)

// AuthService объединяет операции аутентификации, нужные маршрутам.
type AuthService interface {
	signup.Service
	login.Service
	middlewarectx.Authenticator
}

// MeasurementService объединяет операции над замерами.
type MeasurementService interface {
	create.Service
	list.Service
	read.Service
	run.Service
	live.Service
}

// Deps — зависимости маршрутов.
type Deps struct {
	Logger       *slog.Logger
	Auth         AuthService
	Measurements MeasurementService
	Device       status.Service
	CORSOrigin   string
	RateRPS      float64
	RateBurst    int
	Gatherer     prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{d.CORSOrigin},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middlewarectx.RateLimitMiddleware(d.Logger, d.RateRPS, d.RateBurst),
	)

	api := apiRoutes(d)
	r.Mount("/api", api)
	r.Mount("/", api)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

func apiRoutes(d Deps) chi.Router {
	r := chi.NewRouter()

	// Открытые конечные точки
	r.Get("/health", health.New(d.Logger).ServeHTTP)
	r.Post("/auth/signup", signup.New(d.Logger, d.Auth).ServeHTTP)
	r.Post("/auth/login", login.New(d.Logger, d.Auth).ServeHTTP)

	// Группа с JWT аутентификацией
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(d.Auth, d.Logger))

		r.Get("/auth/me", me.New(d.Logger).ServeHTTP)
		r.Get("/measurements", list.New(d.Logger, d.Measurements).ServeHTTP)
		r.Post("/measurements", create.New(d.Logger, d.Measurements).ServeHTTP)
		r.Get("/measurements/{id}", read.New(d.Logger, d.Measurements).ServeHTTP)
		r.Post("/measurements/{id}/run", run.New(d.Logger, d.Measurements).ServeHTTP)
		r.Get("/live", live.New(d.Logger, d.Measurements).ServeHTTP)
		r.Get("/device/status", status.New(d.Logger, d.Device).ServeHTTP)
	})

	return r
}
