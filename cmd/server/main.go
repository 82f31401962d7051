package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/noughts/internal/api"
	"github.com/mcoot/noughts/internal/config"
	"github.com/mcoot/noughts/internal/factory"
	"github.com/mcoot/noughts/internal/services/purge"
	postgresstorage "github.com/mcoot/noughts/internal/storage/postgres"
	redisstorage "github.com/mcoot/noughts/internal/storage/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	cmd := &cobra.Command{
		Use:          "noughts-server",
		Short:        "Tic-tac-toe matchmaking and session server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.String(config.KeyStorageType, "memory", "Session store: memory, redis, postgres (env: NOUGHTS_STORAGE_TYPE)")
	flags.String(config.KeyRedisURL, "", "Redis URL (env: NOUGHTS_REDIS_URL)")
	flags.String(config.KeyPostgresDSN, "", "Postgres DSN (env: NOUGHTS_POSTGRES_DSN)")
	flags.Int(config.KeyHTTPPort, 8080, "HTTP listen port (env: NOUGHTS_HTTP_PORT)")
	flags.String(config.KeyLogLevel, "info", "Log level: debug, info, warn, error (env: NOUGHTS_LOG_LEVEL)")
	flags.String(config.KeyLogFormat, "json", "Log format: json, text (env: NOUGHTS_LOG_FORMAT)")
	for _, key := range []string{
		config.KeyStorageType, config.KeyRedisURL, config.KeyPostgresDSN,
		config.KeyHTTPPort, config.KeyLogLevel, config.KeyLogFormat,
	} {
		// Flags only override when set explicitly
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		PurgeConfig: purge.Config{Interval: cfg.PurgeInterval, After: cfg.PurgeAfter},
	}
	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		pgCfg := postgresstorage.DefaultConfig()
		pgCfg.DSN = cfg.PostgresDSN
		factoryCfg.PostgresConfig = &pgCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Janitor.Run(ctx)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.HTTPHost
	serverConfig.Port = cfg.HTTPPort
	server := api.NewServer(app.Router(), serverConfig, logger)
	server.OnShutdown(app.Gateway.Close)

	if err := server.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return fmt.Errorf("serving: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
