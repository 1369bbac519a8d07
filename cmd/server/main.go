package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/vehicle-status-backend/internal/api"
	"github.com/jengzang/vehicle-status-backend/internal/auth"
	"github.com/jengzang/vehicle-status-backend/internal/config"
	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/middleware"
	"github.com/jengzang/vehicle-status-backend/internal/notify"
	"github.com/jengzang/vehicle-status-backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if os.Getenv("LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	// 加载配置
	cfg := config.Load()

	dbFlag := &cli.StringFlag{
		Name:    "db",
		Value:   cfg.DBPath,
		Usage:   "path of the SQLite database file",
		EnvVars: []string{"DB_PATH"},
	}

	app := &cli.App{
		Name:        "vehicle-status-backend",
		Description: "Vehicle status tracking: status segments, daily rollups and statistics",

		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "listen",
						Value: cfg.Port,
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg.DBPath = c.String("db")
					cfg.Port = c.String("listen")
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Flags: []cli.Flag{dbFlag},
				Action: func(c *cli.Context) error {
					cfg.DBPath = c.String("db")
					if err := openDatabase(c.Context, cfg); err != nil {
						return err
					}
					defer database.Close()

					log.Info().Str("path", cfg.DBPath).Msg("Migrations applied")
					return nil
				},
			},
			{
				Name:  "rollup",
				Usage: "rebuild daily stats",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "date",
						Usage: "day to rebuild as YYYY-MM-DD, defaults to yesterday",
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "first day of a range to rebuild, requires --to",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "last day of a range to rebuild",
					},
					&cli.BoolFlag{
						Name:  "backfill",
						Usage: "rebuild every day after the last rollup through yesterday",
					},
				},
				Action: func(c *cli.Context) error {
					cfg.DBPath = c.String("db")
					if err := openDatabase(c.Context, cfg); err != nil {
						return err
					}
					defer database.Close()

					rollup := service.NewRollupService(database.GetDB(), time.Now)

					var results []*service.RollupResult
					var err error
					switch {
					case c.Bool("backfill"):
						results, err = rollup.Backfill(c.Context)
					case c.IsSet("from") || c.IsSet("to"):
						results, err = rollup.RebuildRange(c.Context, c.String("from"), c.String("to"))
					default:
						var result *service.RollupResult
						result, err = rollup.RebuildDailyStats(c.Context, c.String("date"))
						if result != nil {
							results = append(results, result)
						}
					}

					if err != nil {
						return err
					}
					log.Info().Int("days", len(results)).Msg("Rollup finished")
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "replay preset vehicles from a JSON or CSV file",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "file",
						Value: cfg.PresetVehiclesPath,
						Usage: "preset file, .csv or .json",
					},
					&cli.IntFlag{
						Name:  "workers",
						Value: cfg.ImportWorkers,
						Usage: "vehicles imported concurrently",
					},
				},
				Action: func(c *cli.Context) error {
					cfg.DBPath = c.String("db")
					if err := openDatabase(c.Context, cfg); err != nil {
						return err
					}
					defer database.Close()

					status := service.NewStatusService(database.GetDB(), service.WithStrictStatus(cfg.StrictStatus))
					result, err := service.NewImportService(status, c.Int("workers")).ImportFile(c.Context, c.String("file"))
					if err != nil {
						return err
					}
					for _, failure := range result.Failed {
						log.Warn().Str("vehicle_id", failure.VehicleID).Str("error", failure.Error).Msg("Preset not imported")
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	return database.Init(ctx, database.Config{
		Path:        cfg.DBPath,
		BusyTimeout: cfg.DBBusyTimeout,
	})
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	if err := openDatabase(ctx, cfg); err != nil {
		return err
	}
	defer database.Close()

	hub := notify.NewHub(0)
	defer hub.Close()

	var extra notify.Publisher
	if cfg.RedisAddress != "" {
		redisPublisher, err := notify.NewRedisPublisher(ctx, notify.RedisOptions{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDatabase,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			log.Error().Err(err).Msg("Redis publisher disabled")
		} else {
			defer redisPublisher.Close()
			extra = redisPublisher
			log.Info().Str("address", cfg.RedisAddress).Str("channel", redisPublisher.Channel()).Msg("Publishing status changes to Redis")
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	// 初始化路由
	router := api.SetupRouter(api.Dependencies{
		Config:    cfg,
		DB:        database.GetDB(),
		Hub:       hub,
		Publisher: extra,
		Auth: auth.New(auth.Config{
			Username:  cfg.AdminUsername,
			Password:  cfg.AdminPassword,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.TokenTTL,
		}),
		Limiter: limiter,
	})

	// No write timeout: the event stream is long-lived
	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		limiter.Run(ctx.Done())
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")

		// Live streams only end when their listeners go away
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
