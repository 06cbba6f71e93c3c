package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-shopping-list/internal/app"
	"smart-shopping-list/internal/config"
	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/web"

	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg)

	ctx := context.Background()

	// 2. Wire the application and restore the stored session
	application, err := app.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		if errors.Is(err, session.ErrBackendUnavailable) {
			logrus.WithError(err).Error("Serving without a backend, sign in is disabled")
		} else {
			logrus.WithError(err).Warn("Failed to load data, will retry on first request")
		}
	}

	// 3. Start Server with Graceful Shutdown
	server := web.NewServer(web.Deps{
		Accounts:  application,
		Session:   application.Session,
		Store:     application.Store,
		Suggester: application.Suggester,
		DataDir:   application.DataDir(),
		Locale:    cfg.Locale,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Shopping list server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exiting")
}
