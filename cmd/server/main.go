// Package main is the entry point for the ledger API.
// It loads configuration, wires the services, starts the background jobs
// and serves HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"bankcore/internal/bootstrap"
	"bankcore/internal/config"
	"bankcore/internal/handlers"
	"bankcore/internal/middleware"
	"bankcore/internal/repositories"
	"bankcore/internal/routes"
	"bankcore/internal/services/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadEnv()
	cfg := config.Load()

	c, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go logPoolStats(ctx, c)

	var jobs *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		jobs = scheduler.NewScheduler(scheduler.NewJobs(c.Verifier, c.Transfer, time.Minute), cfg.Jobs)
		if err := jobs.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "bankcore",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + handlers.IdempotencyHeader,
		AllowMethods: "GET,POST,PATCH,DELETE",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Accounts: handlers.NewAccountHandler(c.Ledger),
		OTP:      handlers.NewOTPHandler(c.Verifier, c.Notifier),
		Transfer: handlers.NewTransferHandler(c.Transfer),
		Admin:    handlers.NewAdminHandler(c.Ledger, c.Transfer),
		Health: handlers.NewHealthHandler(map[string]handlers.Check{
			"database": func(ctx context.Context) error {
				sqlDB, err := c.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": c.Cache.HealthCheck,
		}),
		Metrics: adaptor.HTTPHandler(promhttp.HandlerFor(c.Metrics.Registry(), promhttp.HandlerOpts{})),
	}, middleware.NewAuthMiddleware(cfg.JWTSecret))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Server stopped: %v", err)
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if jobs != nil {
		// Wait for running jobs so a recurring run is not cut mid-settlement.
		select {
		case <-jobs.Stop().Done():
		case <-time.After(shutdownTimeout):
			log.Println("Scheduler did not stop in time")
		}
	}
}

// logPoolStats writes the connection pool counters once a minute.
func logPoolStats(ctx context.Context, c *bootstrap.Container) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			repositories.LogPoolStats(c.DB)
			stats := c.Cache.GetStats()
			log.Printf("Redis Stats: Hits=%d, Misses=%d, Timeouts=%d, TotalConns=%d, IdleConns=%d",
				stats.Hits, stats.Misses, stats.Timeouts, stats.TotalConns, stats.IdleConns)
		}
	}
}
