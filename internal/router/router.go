package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ceylontrails/tour-plan-api/internal/api/extraction"
	"github.com/ceylontrails/tour-plan-api/internal/api/timetable"
	"github.com/ceylontrails/tour-plan-api/internal/api/tourplan"
)

// Config contains dependencies needed for the router setup
type Config struct {
	TourPlanHandler        tourplan.Handler
	TimetableHandler       *timetable.Handler
	ExtractionHandler      *extraction.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/tour-plan/generate", cfg.TourPlanHandler.Generate)
			r.Post("/tour-plan/refine", cfg.TourPlanHandler.Refine)
			r.Post("/tour-plan/accept", cfg.TourPlanHandler.Accept)
			r.Get("/tour-plan/session/{threadID}", cfg.TourPlanHandler.GetSession)
			r.Get("/tour-plan/engine/health", cfg.TourPlanHandler.EngineHealth)

			r.Get("/timetable", cfg.TimetableHandler.Lookup)
			r.Post("/trip-details/extract", cfg.ExtractionHandler.Extract)
		})
	})

	return r
}
