package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/noughts/internal/api"
	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/dependencies/random"
	"github.com/mcoot/noughts/internal/keylock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
	"github.com/mcoot/noughts/internal/services/identity"
	"github.com/mcoot/noughts/internal/services/matchmaking"
	"github.com/mcoot/noughts/internal/services/purge"
	"github.com/mcoot/noughts/internal/services/session"
	"github.com/mcoot/noughts/internal/storage"
	"github.com/mcoot/noughts/internal/storage/memory"
	postgresstorage "github.com/mcoot/noughts/internal/storage/postgres"
	redisstorage "github.com/mcoot/noughts/internal/storage/redis"
	"github.com/mcoot/noughts/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Logger *slog.Logger

	// Session locks shared by the matchmaker and the coordinator
	Locks *keylock.Locker[model.SessionCode]

	// Services
	Registry   *registry.Registry
	Identities *identity.Service
	Matchmaker *matchmaking.Controller
	Sessions   *session.Controller
	Janitor    *purge.Janitor
	Gateway    *ws.Handler
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds Postgres connection settings (required if StorageType is "postgres")
	PostgresConfig *postgresstorage.Config
	// PurgeConfig sets janitor timing. Zero means purge.DefaultConfig()
	PurgeConfig purge.Config
	// GatewayConfig tunes websocket connections. Zero means ws.DefaultConfig()
	GatewayConfig ws.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store = redisStore
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgresstorage.New(*cfg.PostgresConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store = pgStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}

	purgeCfg := cfg.PurgeConfig
	if purgeCfg.Interval == 0 || purgeCfg.After == 0 {
		purgeCfg = purge.DefaultConfig()
	}
	gatewayCfg := cfg.GatewayConfig
	if gatewayCfg.SendBufferSize == 0 {
		gatewayCfg = ws.DefaultConfig()
	}

	logger.Info("storage selected", slog.String("type", storageType))
	return newWithDependencies(store, clock.New(), random.New(), logger, purgeCfg, gatewayCfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, logger *slog.Logger, purgeCfg purge.Config, gatewayCfg ws.Config) *App {
	locks := keylock.New[model.SessionCode]()
	reg := registry.New(logger)
	identities := identity.New(store, clk, logger)
	matchmaker := matchmaking.NewController(store, identities, locks, clk, rnd, logger)
	sessions := session.NewController(store, matchmaker, reg, locks, clk, logger)
	janitor := purge.New(store, clk, logger, purgeCfg)
	gateway := ws.NewHandler(sessions, reg, clk, logger, gatewayCfg)

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Logger:     logger,
		Locks:      locks,
		Registry:   reg,
		Identities: identities,
		Matchmaker: matchmaker,
		Sessions:   sessions,
		Janitor:    janitor,
		Gateway:    gateway,
	}
}

// Router builds the HTTP handler serving the API and the websocket gateway
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.Logger,
		Identities:  a.Identities,
		Gateway:     a.Gateway,
		Connections: a.Registry,
	})
}

// Close releases the storage backend's connections, if it holds any
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
