// Package bootstrap assembles the services from configuration. The HTTP
// server and the admin CLI share it so both see the same wiring.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bankcore/internal/config"
	"bankcore/internal/metrics"
	"bankcore/internal/models"
	"bankcore/internal/repositories"
	"bankcore/internal/repositories/cache"
	"bankcore/internal/services/ledger"
	"bankcore/internal/services/notification"
	"bankcore/internal/services/rates"
	"bankcore/internal/services/transfer"
	"bankcore/internal/services/verification"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// activityLimit bounds the recent-activity list kept per account.
const activityLimit = 100

// Notifier is what both verification and transfer accept.
type Notifier interface {
	verification.Notifier
	transfer.Notifier
}

// Container holds the wired services and the handles that must be closed.
type Container struct {
	Config   config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    *cache.CacheService
	Metrics  *metrics.Collector
	Ledger   ledger.Service
	Verifier verification.Service
	Transfer transfer.Service
	Notifier Notifier

	closers []func()
}

// Build connects to Postgres and Redis, migrates the schema and wires every
// service. The caller must Close the container.
func Build(cfg config.Config) (*Container, error) {
	c := &Container{Config: cfg, Metrics: metrics.New()}

	db, err := repositories.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.closers = append(c.closers, func() { repositories.Close(db) })

	if err := repositories.Migrate(db); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	c.Redis = cache.NewRedisClient(cfg.Redis)
	c.Cache = cache.NewCacheService(c.Redis, cfg.Transfer.RateCacheTTL)
	c.closers = append(c.closers, func() {
		if err := c.Cache.Close(); err != nil {
			log.Printf("Failed to close Redis connection: %v", err)
		}
	})
	if err := c.Cache.HealthCheck(context.Background()); err != nil {
		// The ledger works without Redis; OTPs and the activity view do not.
		log.Printf("⚠️ Redis unavailable at startup: %v", err)
	}

	c.Notifier = c.buildNotifier()

	c.Ledger = ledger.NewService(
		repositories.NewLedgerRepository(db, cfg.Database.TxTimeout),
		cache.NewActivityCache(c.Cache, activityLimit),
		ledger.Config{ActivityLimit: activityLimit},
		c.Metrics,
	)

	c.Verifier = verification.NewService(verification.NewRedisStore(c.Redis), verification.Config{
		CodeLength:    cfg.OTP.CodeLength,
		TTL:           cfg.OTP.TTL,
		MaxAttempts:   cfg.OTP.MaxAttempts,
		BlockDuration: cfg.OTP.BlockDuration,
		BcryptCost:    cfg.OTP.BcryptCost,
	}, c.Metrics)

	source, err := RateSource(cfg.Transfer, c.Cache)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Transfer = transfer.NewService(
		c.Ledger,
		source,
		c.Verifier,
		c.Notifier,
		repositories.NewRecurringRepository(db),
		TransferConfig(cfg.Transfer),
		c.Metrics,
	)
	return c, nil
}

// buildNotifier publishes to RabbitMQ when AMQP_URL is set and logs otherwise.
func (c *Container) buildNotifier() Notifier {
	if c.Config.AMQP.URL == "" {
		return notification.NewLogNotifier(!config.IsProduction())
	}

	producer, err := notification.NewEventProducer(c.Config.AMQP.URL)
	if err != nil {
		log.Printf("⚠️ AMQP unavailable, logging notifications instead: %v", err)
		return notification.NewLogNotifier(!config.IsProduction())
	}
	n := notification.NewEventNotifier(producer, c.Config.AMQP.Exchange)
	c.closers = append(c.closers, n.Close)
	return n
}

// RateSource builds the configured static table behind the Redis rate cache.
func RateSource(cfg config.TransferConfig, c *cache.CacheService) (rates.Source, error) {
	table, err := rates.ParseTable(cfg.Rates)
	if err != nil {
		return nil, fmt.Errorf("invalid FX_RATES: %w", err)
	}
	var source rates.Source = rates.NewStaticSource(cfg.BaseCurrency, table)
	if c != nil && cfg.RateCacheTTL > 0 {
		source = rates.NewCachedSource(source, c, cfg.RateCacheTTL)
	}
	return source, nil
}

// TransferConfig maps the environment onto the orchestrator's settings.
func TransferConfig(cfg config.TransferConfig) transfer.Config {
	countries := make([]string, len(cfg.HighCostCountries))
	for i, cc := range cfg.HighCostCountries {
		countries[i] = strings.ToUpper(cc)
	}
	return transfer.Config{
		HighCostSurcharge:  models.Amount(cfg.HighCostSurcharge),
		HighCostCountries:  countries,
		SpreadBps:          cfg.SpreadBps,
		ChallengeThreshold: models.Amount(cfg.ChallengeThreshold),
		HomeCountry:        cfg.HomeCountry,
		FeeAccountID:       cfg.FeeAccountID,
		MaxRetries:         cfg.MaxRetries,
		RetryBaseDelay:     cfg.RetryBaseDelay,
	}
}

// Close releases every handle in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
