package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/config"
	"workflow-engine/internal/server"
)

// Run is the main entry point: it loads configuration, builds the
// application, starts the scheduler and HTTP server and blocks until
// shutdown.
func Run() error {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := app.Scheduler.Start(); err != nil {
		logging.Error("Failed to start timer scheduler", err)
		return err
	}

	srv := server.New(app.Router(), cfg.Port)
	serveErr := srv.Start()
	logging.Info("Server started", logging.Field{Key: "port", Value: cfg.Port})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logging.Info("Shutting down...")
	case err := <-serveErr:
		if err != nil {
			logging.Error("Server failed", err)
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		logging.Warn("Error during app shutdown", logging.Field{Key: "error", Value: err.Error()})
	}

	logging.Info("Server exited")
	return nil
}
