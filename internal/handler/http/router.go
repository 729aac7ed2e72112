package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"

	"github.com/kayuraya/presensi-backend/internal/handler/http/middleware"
	"github.com/kayuraya/presensi-backend/internal/pkg/jwt"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, attendanceHandler AttendanceHandler) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/attendance", func(r chi.Router) {
				// Employee self-service
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireEmployee)
					r.Get("/today", attendanceHandler.Today)
					r.Post("/check-in", attendanceHandler.CheckIn)
					r.Post("/check-out", attendanceHandler.CheckOut)
					r.Get("/history", attendanceHandler.History)
				})

				// HR only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireHR)
					r.Get("/", attendanceHandler.List)
					r.Get("/export", attendanceHandler.Export)
				})

				r.Route("/requests", func(r chi.Router) {
					r.With(middleware.RequireEmployee).Post("/", attendanceHandler.SubmitRequest)
					r.With(middleware.RequireEmployee).Put("/{id}", attendanceHandler.EditRequest)
					r.With(middleware.RequireEmployee).Delete("/{id}", attendanceHandler.CancelRequest)

					r.With(middleware.RequireHR).Post("/{id}/approve", attendanceHandler.Approve)
					r.With(middleware.RequireHR).Post("/{id}/reject", attendanceHandler.Reject)
				})
			})
		})
	})
	return r
}
