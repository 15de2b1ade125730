package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/platform/metrics"
	connInmemory "github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	RedisHost     string        `json:"redis_host"`
	RedisPort     int           `json:"redis_port"`
	RedisPassword string        `json:"-"`
	DirectoryTTL  time.Duration `json:"directory_ttl"`
	SendBuffer    int           `json:"send_buffer"`
}

func (cfg *AppConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.LogLevel, validation.Required, validation.By(func(value any) error {
			s, _ := value.(string)
			var level slog.Level
			return level.UnmarshalText([]byte(strings.ToUpper(s)))
		})),
		validation.Field(&cfg.RedisHost, validation.Required),
		validation.Field(&cfg.RedisPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&cfg.DirectoryTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&cfg.SendBuffer, validation.Required, validation.Min(1)),
	)
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	// validated beforehand
	_ = logLevel.UnmarshalText([]byte(strings.ToUpper(level)))

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h)
}

type directoryRefresher interface {
	RefreshDirectory(ctx context.Context) int
}

type application struct {
	refresher directoryRefresher
	handler   http.Handler
	ttl       time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

func newApplication(cfg *AppConfig, rc *redis.Client, clock clockwork.Clock, logger *slog.Logger) *application {
	roomService := room.NewService(
		inmemory.NewRegistry(logger, inmemory.WithClock(clock)),
		connInmemory.NewRepo(logger),
		roomRedis.NewDirectory(rc, cfg.DirectoryTTL, logger),
		&room.Config{InstanceID: uuid.NewString()},
		logger,
	)

	connConfig := wsconn.DefaultConfig()
	connConfig.SendBuffer = cfg.SendBuffer

	ctrl := controller.NewController(roomService, metrics.New(), connConfig, logger)

	return &application{
		refresher: roomService,
		handler:   ctrl.GetMux(),
		ttl:       cfg.DirectoryTTL,
		clock:     clock,
		logger:    logger,
	}
}

// refreshDirectory republishes local rooms twice per ttl until ctx is done.
func (a *application) refreshDirectory(ctx context.Context) {
	ticker := a.clock.NewTicker(a.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n := a.refresher.RefreshDirectory(ctx)
			a.logger.DebugContext(ctx, "directory refreshed", "rooms", n)
		}
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	return serve(ctx, cfg, newApplication(cfg, rc, clockwork.NewRealClock(), logger))
}

func serve(ctx context.Context, cfg *AppConfig, a *application) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// hijacked websocket conns are not tracked by Shutdown, they end with connCtx
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler: a.handler,
		BaseContext: func(net.Listener) context.Context {
			return connCtx
		},
	}

	go a.refreshDirectory(ctx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "starting server", "address", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	cancelConns()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
