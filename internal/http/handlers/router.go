package handlers

import (
	"net/http"
	"time"

	mw "github.com/diagnosis/interview-board/internal/http/middleware"
	"github.com/diagnosis/interview-board/internal/service"
	pkgmw "github.com/diagnosis/interview-board/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Verification  service.VerificationService
	Moderation    service.ModerationService
	Verifier      mw.TokenVerifier
	Idempotency   pkgmw.IdempotencyStore
	AllowedOrigin string
	Port          string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.ServiceName("interview-board"))
	r.Use(pkgmw.Logging)
	r.Use(middleware.Recoverer)
	r.Use(pkgmw.Metrics)
	r.Use(pkgmw.Health(d.Port))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var submitGuard func(http.Handler) http.Handler
	if d.Idempotency != nil {
		submitGuard = pkgmw.IdempotencyMiddleware(d.Idempotency, func(r *http.Request) string {
			c, _ := mw.CallerFrom(r)
			return c.ID.String()
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", NewAuthHandler(d.Verification).Routes())
		r.Mount("/companies", NewCompaniesHandler(d.Moderation, d.Verifier, submitGuard).Routes())
	})
	return r
}
