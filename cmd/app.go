package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/cache"
	"github.com/vibast-solutions/ms-go-checkout/app/events"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

type application struct {
	cfg      *config.Config
	service  *service.CheckoutService
	registry *prometheus.Registry
	metrics  *metrics.CheckoutMetrics
	cleanup  func()
}

// mustCreateApplication loads configuration and wires the checkout service.
// withMetrics is false for one-shot commands that never expose /metrics.
func mustCreateApplication(withMetrics bool) *application {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	closers := []func(){func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}}

	transactionRepo := repository.NewTransactionRepository(db)
	deps := service.Dependencies{
		Products:     repository.NewProductRepository(db),
		Carts:        repository.NewCartRepository(db),
		Transactions: transactionRepo,
		Events:       repository.NewTransactionEventRepository(db),
		Gateway: gateway.NewStripeGateway(gateway.StripeConfig{
			SecretKey:   cfg.Stripe.SecretKey,
			APIBaseURL:  cfg.Stripe.APIBaseURL,
			HTTPTimeout: cfg.Stripe.HTTPTimeout,
		}),
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unreachable, history reads will fall through to MySQL")
		}
		cancel()

		deps.Transactions = cache.NewTransactionHistoryCache(transactionRepo, rdb, cfg.Redis.HistoryCacheTTL)
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		})
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TransactionsTopic)
		deps.Publisher = publisher
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close kafka publisher")
			}
		})
	}

	var registry *prometheus.Registry
	if withMetrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		deps.Metrics = metrics.NewCheckoutMetrics(registry)
	}

	return &application{
		cfg:      cfg,
		service:  service.NewCheckoutService(deps, cfg.Checkout),
		registry: registry,
		metrics:  deps.Metrics,
		cleanup: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}
}
