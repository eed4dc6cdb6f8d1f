package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/interview-board/internal/http/handlers"
	"github.com/diagnosis/interview-board/internal/platform/auth"
	"github.com/diagnosis/interview-board/internal/platform/mailer"
	"github.com/diagnosis/interview-board/internal/platform/password"
	"github.com/diagnosis/interview-board/internal/repo"
	"github.com/diagnosis/interview-board/internal/repo/memory"
	"github.com/diagnosis/interview-board/internal/repo/postgres"
	redisrepo "github.com/diagnosis/interview-board/internal/repo/redis"
	"github.com/diagnosis/interview-board/internal/service"
	"github.com/diagnosis/interview-board/pkg/config"
	"github.com/diagnosis/interview-board/pkg/database"
	"github.com/diagnosis/interview-board/pkg/events"
	"github.com/diagnosis/interview-board/pkg/logger"
	mw "github.com/diagnosis/interview-board/pkg/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type stores struct {
	users       repo.UserRepository
	otps        repo.OtpLedger
	companies   repo.CompanyRepository
	idempotency mw.IdempotencyStore
	closers     []func()
}

type sweeper struct {
	name string
	run  func(context.Context) (int64, error)
}

func (st *stores) sweepers(verification service.VerificationService) []sweeper {
	out := []sweeper{{name: "otp", run: verification.SweepExpired}}
	if c, ok := st.idempotency.(interface {
		CleanupExpired(context.Context) (int64, error)
	}); ok {
		out = append(out, sweeper{name: "idempotency", run: c.CleanupExpired})
	}
	return out
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open stores", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range st.closers {
			c()
		}
	}()

	publisher := openPublisher(cfg)
	defer publisher.Close()

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	verification := service.NewVerificationService(
		st.users, st.otps, newMailer(cfg), password.NewHasher(), issuer, publisher,
		service.VerificationConfig{OtpTTL: cfg.Auth.OTPTTL, AdminEmail: cfg.Auth.AdminEmail},
	)
	moderation := service.NewModerationService(st.companies, st.users, publisher)

	if _, _, err := verification.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminName, cfg.Auth.AdminPassword); err != nil {
		logger.Error("Failed to seed admin", "error", err)
		os.Exit(1)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Verification:  verification,
		Moderation:    moderation,
		Verifier:      issuer,
		Idempotency:   st.idempotency,
		AllowedOrigin: cfg.CORS.AllowedOrigin,
		Port:          cfg.Server.Port,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting interview board API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down interview board API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweep(gctx, cfg.Auth.OTPSweepInterval, st.sweepers(verification))
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Interview board API error", "error", err)
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory stores; data is lost on restart")
		st.users = memory.NewUserStore()
		st.otps = memory.NewOtpStore()
		st.companies = memory.NewCompanyStore()
		st.idempotency = memory.NewIdempotencyStore()
	default:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		if err := database.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		st.users = postgres.NewUsersRepo(pool)
		st.otps = postgres.NewOtpRepo(pool)
		st.companies = postgres.NewCompanyRepo(pool)
		st.idempotency = postgres.NewIdempotencyRepo(pool)
	}

	client, err := redisrepo.New(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	if client != nil {
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.idempotency = redisrepo.NewIdempotencyStore(client)
		if cfg.Auth.OTPStore == "redis" {
			st.otps = redisrepo.NewOtpStore(client)
		}
	}
	return st, nil
}

func openPublisher(cfg *config.Config) events.Publisher {
	if cfg.NATS.URL == "" {
		return events.NopPublisher{}
	}
	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Warn("NATS unavailable; events disabled", "error", err)
		return events.NopPublisher{}
	}
	return bus
}

func newMailer(cfg *config.Config) mailer.Service {
	e := cfg.Email
	switch {
	case e.DevMode:
		return mailer.NewDevMailer()
	case e.MailerSendKey != "":
		return mailer.NewMailer(e.MailerSendKey, e.FromName, e.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(e.SMTPHost, e.SMTPPort, e.SMTPFrom, e.FromName, e.SMTPUser, e.SMTPPass, e.SMTPSecure)
	}
}

func sweep(ctx context.Context, every time.Duration, jobs []sweeper) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, job := range jobs {
				n, err := job.run(ctx)
				if err != nil {
					logger.Warn("Sweep failed", "job", job.name, "error", err)
					continue
				}
				if n > 0 {
					logger.Info("Swept expired records", "job", job.name, "count", n)
				}
			}
		}
	}
}
