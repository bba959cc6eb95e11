// Package server initializes and runs the authentication service. It wires
// the Postgres-backed repositories, the Redis cache and login throttle,
// the Kafka producer and the HTTP endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/cache"
	"github.com/avolkov/authgate/internal/server/config"
	"github.com/avolkov/authgate/internal/server/events"
	"github.com/avolkov/authgate/internal/server/httpapi"
	"github.com/avolkov/authgate/internal/server/rate"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
	"github.com/avolkov/authgate/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) *App {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{config: c, logger: logging.NewSlogLogger(l)}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	defer rdb.Close()

	producer := events.NewKafkaProducer(app.config.KafkaBrokerAddr, app.config.KafkaTopicUserCreated)
	defer func() {
		if err := producer.Close(); err != nil {
			app.logger.Warn(ctx, "producer close error", "error", err.Error())
		}
	}()

	userService := services.NewUserService(
		db,
		rm,
		cache.NewUserCache(rdb),
		rate.New(rdb, rate.Config{BlockWindow: app.config.LoginBlockDuration}),
		producer,
		app.logger,
		app.config,
	)

	mux := http.NewServeMux()
	httpapi.NewHandler(userService, app.logger).Register(mux)

	srv := &http.Server{Addr: app.config.EndpointAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	return nil
}
