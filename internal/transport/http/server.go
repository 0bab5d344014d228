// Package http exposes the channel webhooks, the demo/admin API and the websocket chat
// simulator over chi.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/infra/bundb"
	"lesson-quiz-service/internal/metrics"
)

// SeedFunc loads a dataset into the catalog.
type SeedFunc func(ctx context.Context, data domain.Dataset) (bundb.SeedResult, error)

// Deps are the application services the handlers call.
type Deps struct {
	Router     *app.Router
	Engine     *app.Engine
	Dispatcher *app.Dispatcher
	Videos     *app.Videos
	Ledger     *app.Ledger
	Contents   app.ContentSource
	Catalog    app.Catalog
	Scheduler  app.Scheduler
	Feed       *app.Feed
	Seed       SeedFunc

	// VerifyToken answers the Meta webhook verification handshake.
	VerifyToken    string
	AllowedOrigins []string
	Logger         *zap.Logger
}

type handlers struct {
	Deps
	log *zap.Logger
}

// NewRouter mounts every route on a chi router.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &handlers{Deps: deps, log: log}
	ws := NewWSHandler(deps.Router, deps.Feed, log)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", ws.ServeWS)

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/twilio", h.twilioLiveness)
		r.Post("/twilio", h.twilioInbound)
		r.Get("/whatsapp", h.whatsappVerify)
		r.Post("/whatsapp", h.whatsappInbound)
		r.Post("/mux", h.muxEvent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/flows/quiz/{quizID}", h.quizFlow)
		r.Post("/flows/quiz/{quizID}", h.quizFlow)
		r.Post("/lessons/dispatch", h.dispatchLesson)
		r.Post("/quizzes/{quizID}/start", h.startQuiz)
		r.Get("/users/{contact}/wallet", h.wallet)
		r.Get("/jobs", h.listJobs)
		r.Delete("/jobs/{jobID}", h.cancelJob)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.seed)
			r.Get("/check-data", h.checkData)
			r.Post("/video-url", h.setVideoURL)
		})
	})
	return r
}
