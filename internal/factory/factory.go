package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/nwrussi/openquiz-rooms/internal/broadcast"
	"github.com/nwrussi/openquiz-rooms/internal/dependencies/clock"
	"github.com/nwrussi/openquiz-rooms/internal/dependencies/random"
	"github.com/nwrussi/openquiz-rooms/internal/services/room"
	"github.com/nwrussi/openquiz-rooms/internal/services/session"
	"github.com/nwrussi/openquiz-rooms/internal/storage"
	"github.com/nwrussi/openquiz-rooms/internal/storage/memory"
	redisstorage "github.com/nwrussi/openquiz-rooms/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	Storage storage.Storage
	Clock   clock.Clock
	Random  random.Random

	RoomController *room.Controller
	Broadcaster    *broadcast.Broadcaster
	Coordinator    *session.Coordinator
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SessionConfig holds coordinator settings (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

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
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	sessionCfg := cfg.SessionConfig
	if sessionCfg.ActionsPerSecond == 0 && sessionCfg.ActionBurst == 0 {
		sessionCfg = session.DefaultConfig()
	}

	return newWithDependencies(store, clock.New(), random.New(), sessionCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, sessionCfg session.Config, logger *slog.Logger) *App {
	roomController := room.NewController(store, clk, rnd, logger)
	broadcaster := broadcast.NewBroadcaster(logger)
	coordinator := session.NewCoordinator(roomController, broadcaster, clk, sessionCfg, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		RoomController: roomController,
		Broadcaster:    broadcaster,
		Coordinator:    coordinator,
	}
}
