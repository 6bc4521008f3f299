package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"guestflow/config"
	_ "guestflow/docs"
	"guestflow/internal/adapters/auth"
	"guestflow/internal/adapters/sms"
	delivery "guestflow/internal/delivery/http"
	"guestflow/internal/delivery/http/controllers"
	"guestflow/internal/delivery/http/middleware"
	"guestflow/internal/repository/postgres"
	"guestflow/internal/services"
)

// @title GuestFlow API
// @version 1.0
// @description Automated guest list management with SMS invitations and RSVP links.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := config.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	events := postgres.NewEventRepository(db)
	invitees := postgres.NewInviteeRepository(db)
	messageLog := postgres.NewMessageLogRepository(db)
	tenants := postgres.NewTenantRepository(db)

	messenger, err := sms.NewMessenger(sms.Config{
		Provider: cfg.SMSProvider,
		Twilio: sms.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		},
		SES: sms.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
			FromAddress:     cfg.SESFromAddress,
			GatewayDomain:   cfg.SESGatewayDomain,
		},
	}, logger)
	if err != nil {
		logger.Error("failed to create messenger", "error", err)
		os.Exit(1)
	}

	gateway := services.NewMessageGateway(services.GatewayConfig{
		Enabled:           cfg.SMSEnabled,
		GlobalHourlyLimit: cfg.SMSHourlyLimit,
		GlobalDailyLimit:  cfg.SMSDailyLimit,
		SpamWindow:        cfg.SpamWindow,
		SpamWindowLimit:   cfg.SpamWindowLimit,
	}, messenger, messageLog, tenants, logger)

	rsvpService := services.NewRSVPService(events, invitees, gateway, messageLog, cfg.BaseURL, logger)
	capacityManager := services.NewCapacityManager(events, invitees, gateway, cfg.BaseURL, logger)
	expiryMonitor := services.NewExpiryMonitor(invitees, cfg.DefaultExpiryHours, logger)
	reminderService := services.NewReminderService(invitees, gateway, cfg.DefaultExpiryHours, logger)

	tokenManager := auth.NewJWTManager(cfg.JWTSecret)

	router := delivery.NewRouter(delivery.RouterConfig{
		RSVP:     controllers.NewRSVPController(logger, rsvpService),
		Webhook:  controllers.NewWebhookController(logger, rsvpService),
		Operator: controllers.NewOperatorController(logger, events, rsvpService, messageLog),
		Verifier: tokenManager,
	})

	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.AllowedOrigins, router))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := services.NewScheduler(logger,
		services.Job{
			Name:     "capacity",
			Interval: cfg.CapacityCheckInterval,
			Run:      capacityManager.Run,
		},
		services.Job{
			Name:     "expiry",
			Interval: cfg.ExpiryCheckInterval,
			Run: func(ctx context.Context) error {
				_, err := expiryMonitor.Run(ctx)
				return err
			},
		},
		services.Job{
			Name:     "reminders",
			Interval: cfg.ReminderCheckInterval,
			Run:      reminderService.Run,
		},
	)
	if cfg.SchedulerEnabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	} else {
		logger.Info("scheduler disabled by config")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
