package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/openlearn/openlearn-lms/internal/api/http"
	auth "github.com/openlearn/openlearn-lms/internal/auth/middleware"
	"github.com/openlearn/openlearn-lms/internal/config"
	"github.com/openlearn/openlearn-lms/internal/db"
	"github.com/openlearn/openlearn-lms/internal/quiz"
	"github.com/openlearn/openlearn-lms/internal/rbac"
	syncx "github.com/openlearn/openlearn-lms/internal/sync"
)

func main() {
	_ = godotenv.Load() // optional .env for local dev
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		store  quiz.Store
		events syncx.Recorder
		dbh    *sql.DB
	)
	switch cfg.DBDriver {
	case "memory":
		store = quiz.NewMemoryStore(nil, nil)
		events = syncx.NewMemoryLog()
	default:
		var err error
		dbh, err = db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		store = quiz.NewSQLStore(dbh)
		events = syncx.NewEventRepo(dbh)
		if err := auth.EnsureUser(ctx, dbh, cfg.AdminUser, cfg.AdminUser, cfg.AdminPassHash, "admin"); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	if cfg.AbandonAfterHours > 0 {
		// Abandonment is an external cleanup policy; the sweep just asks the
		// store to apply it.
		go sweepAbandoned(store, time.Duration(cfg.AbandonAfterHours)*time.Hour)
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth && dbh != nil {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher-only: upload quiz (authoring boundary)
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(store))

		// Student/Teacher: fetch quiz and eligibility
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(store))
		pr.With(rbac.Require("attempt:create")).
			Get("/quizzes/{quizID}/eligibility", api.EligibilityHandler(store))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(store, events))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", api.SaveResponseHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/time", api.RemainingTimeHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store, events))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.Require("attempt:review")).
			Get("/attempts/{attemptID}/review", api.ReviewAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))

		// Teacher: manual essay grades
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grades", api.ApplyGradesHandler(store, events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func sweepAbandoned(store quiz.Store, maxAge time.Duration) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for range t.C {
		n, err := store.AbandonStale(context.Background(), time.Now().Add(-maxAge))
		if err != nil {
			log.Printf("abandon sweep: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("abandon sweep: marked %d attempts", n)
		}
	}
}
