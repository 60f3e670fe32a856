package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/gates"
	"github.com/openfield/gatepass/internal/http/handlers"
	httpmw "github.com/openfield/gatepass/internal/http/middleware"
	"github.com/openfield/gatepass/internal/mailer"
	"github.com/openfield/gatepass/internal/repo/postgres"
	"github.com/openfield/gatepass/internal/service"
	"github.com/openfield/gatepass/internal/verify"
	"github.com/openfield/gatepass/pkg/cache"
	"github.com/openfield/gatepass/pkg/config"
	"github.com/openfield/gatepass/pkg/database"
	"github.com/openfield/gatepass/pkg/events"
	"github.com/openfield/gatepass/pkg/logger"
	"github.com/openfield/gatepass/pkg/metrics"
	mw "github.com/openfield/gatepass/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis is optional: export caching and login throttling degrade
	// gracefully without it.
	redisClient, err := cache.New(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	loc, err := time.LoadLocation(cfg.Event.Timezone)
	if err != nil {
		logger.Error("Invalid EVENT_TIMEZONE", "timezone", cfg.Event.Timezone, "error", err)
		os.Exit(1)
	}

	catalog := gates.Default(loc)
	if cfg.Event.GatesFile != "" {
		catalog, err = gates.Load(cfg.Event.GatesFile, loc)
		if err != nil {
			logger.Error("Failed to load gate catalog", "path", cfg.Event.GatesFile, "error", err)
			os.Exit(1)
		}
	}

	// Repositories
	attendeeRepo := postgres.NewAttendeeRepo(pool)
	checkinRepo := postgres.NewCheckinRepo(pool)
	operatorRepo := postgres.NewOperatorRepo(pool)
	deviceRepo := postgres.NewDeviceRepo(pool)

	m := metrics.New()

	var mail mailer.Service
	if cfg.Email.DevMode {
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailerSendMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	// Services
	sessionService := service.NewSessionService(operatorRepo, deviceRepo, catalog, eventBus, m, cfg)
	checkinService := service.NewCheckinService(checkinRepo, attendeeRepo, deviceRepo, eventBus, m)
	directoryService := service.NewDirectoryService(attendeeRepo, redisClient, eventBus, mail, m, cfg)

	verifier := verify.New(
		verify.DirectoryFunc(attendeeRepo.FindByID),
		catalog,
		cfg.Auth.CredentialSecret,
	)

	scannerHandlers := handlers.NewScannerHandlers(sessionService, checkinService, directoryService, verifier, m)
	registryHandlers := handlers.NewRegistryHandlers(sessionService, directoryService, checkinService)

	loginLimiter := httpmw.NewRateLimiter(redisClient, httpmw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
		KeyFunc: func(r *http.Request) []string {
			return []string{"login:" + httpmw.ClientIP(r)}
		},
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gatepass-api"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Route("/scanner", func(r chi.Router) {
		r.With(loginLimiter.Middleware()).Post("/login", scannerHandlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(httpmw.RequireSession(cfg.Auth.JWTSecret, domain.RoleScanner, domain.RoleAdmin))
			r.Get("/entries", scannerHandlers.Entries)
			r.Post("/checkin", scannerHandlers.Checkin)
			r.Post("/checkin/batch", scannerHandlers.CheckinBatch)
			r.Post("/verify", scannerHandlers.VerifyQR)
			r.Get("/stats", scannerHandlers.Stats)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter.Middleware()).Post("/login", registryHandlers.Login)
	})

	r.Route("/registry", func(r chi.Router) {
		r.Use(httpmw.RequireSession(cfg.Auth.JWTSecret, domain.RoleAdmin))
		r.Post("/attendees", registryHandlers.CreateAttendee)
		r.Get("/attendees", registryHandlers.ListAttendees)
		r.Get("/attendees/{id}/credential", registryHandlers.Credential)
		r.Post("/checkins/{id}/override", registryHandlers.OverrideCheckin)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gatepass API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gatepass API", "port", cfg.Server.Port, "gates", catalog.Numbers())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
