package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	api "github.com/carebridge-health/promis-gateway/internal/api/http"
	"github.com/carebridge-health/promis-gateway/internal/assessment"
	authmw "github.com/carebridge-health/promis-gateway/internal/auth/middleware"
	"github.com/carebridge-health/promis-gateway/internal/config"
	"github.com/carebridge-health/promis-gateway/internal/db"
	"github.com/carebridge-health/promis-gateway/internal/promis"
	"github.com/carebridge-health/promis-gateway/internal/resultlog"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	var log *zap.Logger
	var err error
	if cfg.Mode == config.ModeProd {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("configuration", zap.Error(err))
	}

	client, err := promis.NewClient(cfg.PromisRegistration, cfg.PromisToken,
		promis.WithBaseURL(cfg.PromisBaseURL),
		promis.WithAPIVersion(cfg.PromisAPIVersion),
		promis.WithLogger(log))
	if err != nil {
		log.Fatal("promis client", zap.Error(err))
	}

	// --- Result log (optional) ---
	var repo *resultlog.Repo
	var sink assessment.ResultSink
	if cfg.EnableResultLog {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		cancel()
		if err != nil {
			log.Fatal("db open failed", zap.Error(err))
		}
		repo = resultlog.NewRepo(dbh)
		sink = repo
	}

	engine := assessment.NewEngine(client, sink, log)
	authSvc := authmw.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/guest", authmw.GuestLoginHandler(authSvc))

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		pr.Get("/api/forms", api.ListFormsHandler(engine))
		pr.Post("/api/assessments/{formOID}/start", api.StartAssessmentHandler(engine))
		pr.Get("/api/assessments/{formOID}", api.CurrentViewHandler(engine))
		pr.Post("/api/assessments/{formOID}/answer", api.SubmitAnswerHandler(engine))
		pr.Post("/api/assessments/{formOID}/skip", api.SkipItemHandler(engine))
	})

	if repo != nil {
		r.Get("/admin/results", api.ListResultsHandler(repo, cfg.AdminUser, cfg.AdminPassHash))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", string(cfg.Mode)))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
