// Command herald runs the trigger-phrase helper bot.
//
// Usage:
//
//	herald [-config config.toml] init           create the storage schema
//	herald [-config config.toml] migrate <cmd>  run migrations (up, down, version, force N)
//	herald [-config config.toml] users          list known users
//	herald [-config config.toml] run            connect to Discord and serve
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrationsdb "github.com/heraldbot/herald/db"
	"github.com/heraldbot/herald/internal/config"
	"github.com/heraldbot/herald/internal/db"
	"github.com/heraldbot/herald/internal/deliveries"
	"github.com/heraldbot/herald/internal/discord"
	"github.com/heraldbot/herald/internal/dispatch"
	"github.com/heraldbot/herald/internal/logger"
	"github.com/heraldbot/herald/internal/prompts"
	"github.com/heraldbot/herald/internal/users"
	"github.com/heraldbot/herald/internal/version"
)

func main() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}

	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", defaultConfig, "Path to config.toml")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("herald %s\n", version.GetInfo())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	switch cmd := flag.Arg(0); cmd {
	case "init":
		runMigrations(cfg, "up", nil)
	case "migrate":
		args := flag.Args()[1:]
		if len(args) == 0 {
			logger.Error("migrate requires a command: up, down, version, force N")
			os.Exit(1)
		}
		runMigrations(cfg, args[0], args[1:])
	case "users":
		listUsers(cfg)
	case "run", "":
		runBot(cfg)
	default:
		logger.Error("unknown command", slog.String("command", cmd))
		os.Exit(1)
	}
}

func runMigrations(cfg config.Config, command string, args []string) {
	migrationsFS, err := fs.Sub(migrationsdb.MigrationsFS, "migrations")
	if err != nil {
		logger.Error("migration files", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.RunMigrate(logger.L, cfg.Postgres, migrationsFS, command, args); err != nil {
		logger.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func listUsers(cfg config.Config) {
	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("db connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	items, err := users.NewService(logger.L, pool).List(ctx)
	if err != nil {
		logger.Error("list users", slog.Any("error", err))
		os.Exit(1)
	}
	for _, u := range items {
		fmt.Printf("%s\t%d\t%s\t%s\n", u.ID, u.DiscordID, u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func runBot(cfg config.Config) {
	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideDBConn,
			providePrompts,
			users.NewService,
			deliveries.NewService,
			provideEngine,
			provideGateway,
		),
		fx.Invoke(startGateway),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func providePrompts(cfg config.Config) (*prompts.Set, error) {
	set, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("prompt rules loaded",
		slog.String("path", cfg.Prompts.Path),
		slog.Int("prompts", set.Len()),
	)
	return set, nil
}

func provideEngine(log *slog.Logger, set *prompts.Set, userSvc *users.Service, deliverySvc *deliveries.Service) *dispatch.Engine {
	return dispatch.NewEngine(log, set, userSvc, deliverySvc)
}

func provideGateway(log *slog.Logger, cfg config.Config, engine *dispatch.Engine) (*discord.Gateway, error) {
	return discord.New(log, cfg.Discord.BotToken, engine)
}

func startGateway(lc fx.Lifecycle, gateway *discord.Gateway) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gateway.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return gateway.Stop()
		},
	})
}
