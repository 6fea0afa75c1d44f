// accountsd serves the account engine over HTTP. It owns process wiring
// only: configuration, logging, the database pool, the optional redis client
// and ceremony helper, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/internal/ceremonyhttp"
	"github.com/MrEthical07/goAccounts/internal/config"
	"github.com/MrEthical07/goAccounts/internal/httpapi"
	"github.com/MrEthical07/goAccounts/internal/pgxstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("accountsd exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pgxstore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	builder := goAccounts.New().
		WithStore(store).
		WithConfig(engineConfig(cfg)).
		WithNotificationSink(&logSink{logger: logger.Named("notify")})

	if cfg.FidoHelperURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		defer redisClient.Close()

		builder = builder.
			WithRedis(redisClient).
			WithCeremonyService(ceremonyhttp.New(cfg.FidoHelperURL))
		logger.Info("security key method enabled", zap.String("helper", cfg.FidoHelperURL))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	handler := httpapi.NewHandler(engine, logger)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(handler, logger),
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func engineConfig(cfg *config.Config) goAccounts.Config {
	return goAccounts.Config{
		Password: goAccounts.PasswordConfig{
			Iterations: cfg.PasswordIterations,
			MinLength:  cfg.PasswordMinLength,
		},
		Reset:     goAccounts.ResetConfig{TTL: cfg.ResetTTL},
		Token:     goAccounts.TokenConfig{ModificationTTL: cfg.TokenTTL},
		Challenge: goAccounts.ChallengeConfig{TTL: cfg.ChallengeTTL},
		Cache: goAccounts.CacheConfig{
			TTL:     cfg.CacheTTL,
			MaxSize: cfg.CacheMaxSize,
		},
		Notifications: goAccounts.NotificationConfig{BufferSize: cfg.NotifyBufferSize},
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}
	if cfg.LogFormat == "json" {
		zcfg.Encoding = "json"
	} else {
		zcfg.Encoding = "console"
	}
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// logSink records account events in the log. A real deployment would point a
// mailer at these; the daemon redacts the sensitive detail values either way.
type logSink struct {
	logger *zap.Logger
}

var sensitiveDetails = map[string]struct{}{
	"password": {},
	"code":     {},
}

func (s *logSink) Notify(_ context.Context, event goAccounts.Notification) {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.Uint64("account_id", event.AccountID),
		zap.String("username", event.Username),
	}
	for key := range event.Details {
		if _, sensitive := sensitiveDetails[key]; sensitive {
			fields = append(fields, zap.String(key, "[redacted]"))
			continue
		}
		fields = append(fields, zap.String(key, event.Details[key]))
	}
	s.logger.Info("account event", fields...)
}
