package cartontracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/carton-tracker/internal/cache"
	"github.com/magabrotheeeer/carton-tracker/internal/config"
	"github.com/magabrotheeeer/carton-tracker/internal/device"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/carton-tracker/internal/metrics"
	"github.com/magabrotheeeer/carton-tracker/internal/migrations"
	authservice "github.com/magabrotheeeer/carton-tracker/internal/services/auth"
	measurementservice "github.com/magabrotheeeer/carton-tracker/internal/services/measurement"
	sweeperservice "github.com/magabrotheeeer/carton-tracker/internal/services/sweeper"
	"github.com/magabrotheeeer/carton-tracker/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App держит HTTP-сервер и его зависимости.
type App struct {
	server    *http.Server
	sweeper   *sweeperservice.Service
	logger    *slog.Logger
	db        *repository.Storage
	cache     *cache.Cache
	amqpConn  *amqp.Connection
	publisher *rabbitmq.EventPublisher
}

// New поднимает хранилище, применяет миграции и собирает маршруты.
// Redis и RabbitMQ необязательны: пустой адрес отключает компонент.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{logger: logger, db: db}

	jwtMaker, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var userCache authservice.Cache
	if cfg.AddressRedis != "" {
		a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		userCache = a.cache
	} else {
		logger.Info("redis is not configured, user cache disabled")
	}

	var publisher measurementservice.Publisher = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		a.amqpConn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(a.amqpConn, cfg.Exchange, nil)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.publisher = rabbitmq.NewEventPublisher(ch, cfg.Exchange)
		publisher = a.publisher
	} else {
		logger.Info("rabbitmq is not configured, events disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	deviceClient := device.NewClient(cfg.Device, device.WithObserver(m))

	authService := authservice.New(logger, db, jwtMaker, userCache, cfg.UserCacheTTL)
	measurementService := measurementservice.New(logger, db, deviceClient, publisher, m)
	if cfg.SweepInterval > 0 {
		a.sweeper = sweeperservice.New(db, publisher, m, logger, cfg.SweepInterval, cfg.StaleAfter)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:       logger,
		Auth:         authService,
		Measurements: measurementService,
		Device:       deviceClient,
		CORSOrigin:   cfg.CORSOrigin,
		RateRPS:      cfg.RPS,
		RateBurst:    cfg.Burst,
		Gatherer:     prometheus.DefaultGatherer,
	})

	a.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	if a.sweeper != nil {
		go a.sweeper.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
