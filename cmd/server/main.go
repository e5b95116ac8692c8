package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nwrussi/openquiz-rooms/internal/api"
	"github.com/nwrussi/openquiz-rooms/internal/factory"
	"github.com/nwrussi/openquiz-rooms/internal/services/session"
	redisstorage "github.com/nwrussi/openquiz-rooms/internal/storage/redis"
)

type config struct {
	bind             string
	port             int
	storageType      string
	redisURL         string
	roomIdleTTL      time.Duration
	janitorInterval  time.Duration
	actionsPerSecond float64
	actionBurst      int
	verbose          bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.storageType == factory.StorageTypeRedis && c.redisURL == "" {
		return fmt.Errorf("--redis-url required when --storage=%s", factory.StorageTypeRedis)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZROOMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizrooms-server",
		Short:         "Room coordination service for multiplayer quiz sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZROOMS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZROOMS_PORT)")
	fs.StringVar(&cfg.storageType, "storage", factory.StorageTypeMemory, "storage backend, memory or redis (env: QUIZROOMS_STORAGE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis connection URL (env: QUIZROOMS_REDIS_URL)")
	fs.DurationVar(&cfg.roomIdleTTL, "room-idle-ttl", 30*time.Minute, "time before idle rooms are deleted, 0 disables (env: QUIZROOMS_ROOM_IDLE_TTL)")
	fs.DurationVar(&cfg.janitorInterval, "janitor-interval", time.Minute, "how often to sweep for idle rooms (env: QUIZROOMS_JANITOR_INTERVAL)")
	fs.Float64Var(&cfg.actionsPerSecond, "actions-per-second", 20, "per-connection player action rate limit, 0 disables (env: QUIZROOMS_ACTIONS_PER_SECOND)")
	fs.IntVar(&cfg.actionBurst, "action-burst", 40, "player action burst allowance (env: QUIZROOMS_ACTION_BURST)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log at debug level (env: QUIZROOMS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(ctx context.Context, cfg *config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.storageType,
		SessionConfig: session.Config{
			ActionsPerSecond: cfg.actionsPerSecond,
			ActionBurst:      cfg.actionBurst,
		},
	}
	if cfg.storageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.redisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		RoomController: app.RoomController,
		Coordinator:    app.Coordinator,
	})

	serverCfg := api.DefaultServerConfig()
	serverCfg.Host = cfg.bind
	serverCfg.Port = cfg.port
	server := api.NewServer(router, serverCfg, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.roomIdleTTL > 0 {
		go janitor(ctx, app, cfg.roomIdleTTL, cfg.janitorInterval, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// janitor periodically deletes rooms with no recent activity and tears
// down their broadcast hubs
func janitor(ctx context.Context, app *factory.App, idleTTL, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := app.RoomController.ExpireIdle(ctx, idleTTL)
			if err != nil {
				logger.Warn("idle room sweep failed", slog.Any("error", err))
			}
			for _, code := range expired {
				app.Broadcaster.CloseRoom(code)
			}
			app.Broadcaster.CleanupEmptyHubs()
		}
	}
}

func main() {
	cobra.CheckErr(newCmd(&config{}).Execute())
}
