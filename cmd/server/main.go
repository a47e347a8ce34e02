package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/sfg-nexus/be-approvals/internal/config"
	"github.com/sfg-nexus/be-approvals/internal/database"
	"github.com/sfg-nexus/be-approvals/internal/handler"
	"github.com/sfg-nexus/be-approvals/internal/logger"
	"github.com/sfg-nexus/be-approvals/internal/notify"
	"github.com/sfg-nexus/be-approvals/internal/repository"
	"github.com/sfg-nexus/be-approvals/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
		Environment: cfg.Service.Environment,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting approvals service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// NATS is optional; without it notifications become no-ops.
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).
				Msg("Failed to connect to NATS, notifications disabled")
		} else {
			defer natsConn.Drain()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	publisher := notify.NewPublisher(natsConn, log)

	approvalRepo := repository.NewApprovalRepository(db)
	variationRepo := repository.NewVariationRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	creditRepo := repository.NewCreditCheckRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	commRepo := repository.NewCommunicationRepository(db)

	approvalSvc := service.NewApprovalService(approvalRepo, auditRepo, publisher, log)
	variationSvc := service.NewVariationService(variationRepo, quoteRepo, commRepo, auditRepo, publisher, log)
	quoteSvc := service.NewQuoteService(quoteRepo, log)
	creditSvc := service.NewCreditService(creditRepo, auditRepo, publisher, log)

	h := handler.New(approvalSvc, variationSvc, quoteSvc, creditSvc, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
