package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"email-bug-tracker-go/internal/config"
	"email-bug-tracker-go/internal/database"
	"email-bug-tracker-go/internal/handler"
	"email-bug-tracker-go/internal/mailbox"
	"email-bug-tracker-go/internal/metrics"
	"email-bug-tracker-go/internal/reconciler"
	"email-bug-tracker-go/internal/scheduler"
	"email-bug-tracker-go/internal/server"
	"email-bug-tracker-go/internal/store"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Email Bug Tracker Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	st := store.New(db)

	if cfg.Mail.UseGmailAPI {
		logrus.Info("Using Gmail API for mailbox access")
	} else {
		logrus.Info("Using IMAP for mailbox access")
	}
	dial := func() (mailbox.Source, error) {
		return mailbox.Dial(&cfg.Mail)
	}

	rec := reconciler.New(dial, st, m, cfg.Scheduler.MaxRetries, cfg.Scheduler.RetryDelay)
	sched := scheduler.NewScheduler(&cfg.Scheduler, rec)

	h := handler.NewHandlers(db, st, sched)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
