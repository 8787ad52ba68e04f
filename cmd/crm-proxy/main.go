package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/client"
	"github.com/Sternrassler/crm-proxy/pkg/config"
	"github.com/Sternrassler/crm-proxy/pkg/logging"
	"github.com/Sternrassler/crm-proxy/pkg/proxy"
	"github.com/Sternrassler/crm-proxy/pkg/ratelimit"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:  "crm-proxy",
		Usage: "Throttled reporting proxy in front of the CRM search API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CRM_PROXY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.address and PORT)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "log-pretty",
				Usage: "Human-readable console logs",
			},
			&cli.StringFlag{
				Name:  "throttle-mode",
				Usage: "Outbound pacing: sequence, process or redis",
			},
			&cli.DurationFlag{
				Name:  "throttle-delay",
				Usage: "Delay before every outbound CRM call",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Redis address for the redis throttle mode",
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("crm-proxy failed")
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Logging.Level),
		Pretty:  cfg.Logging.Pretty,
		Output:  os.Stderr,
		Service: "crm-proxy",
	})
	logger := logging.NewLogger("main")
	logger.Info().Str("config", cfg.String()).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Address).Msg("Starting CRM proxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// loadConfig merges file and environment configuration with command-line flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("addr") {
		cfg.Server.Address = c.String("addr")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-pretty") {
		cfg.Logging.Pretty = c.Bool("log-pretty")
	}
	if c.IsSet("throttle-mode") {
		cfg.Throttle.Mode = c.String("throttle-mode")
	}
	if c.IsSet("throttle-delay") {
		cfg.Throttle.Delay = c.Duration("throttle-delay")
	}
	if c.IsSet("redis-addr") {
		cfg.Redis.Addr = c.String("redis-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// buildServer wires throttle, client and router into an http.Server. The
// returned cleanup releases the Redis connection, if any.
func buildServer(ctx context.Context, cfg *config.Config) (*http.Server, func(), error) {
	gin.SetMode(gin.ReleaseMode)

	var (
		redisClient *redis.Client
		ready       proxy.ReadyCheck
	)
	cleanup := func() {}

	mode := ratelimit.Mode(cfg.Throttle.Mode)
	if mode == ratelimit.ModeRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, errors.Wrapf(err, "connect to redis at %s", cfg.Redis.Addr)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		ready = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		cleanup = func() { redisClient.Close() }
	}

	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
	}
	throttle, err := ratelimit.New(mode, cfg.Throttle.Delay, cmdable, logging.NewLogger("throttle"))
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "create throttle")
	}

	crm, err := client.New(client.Config{
		BaseURL:  cfg.CRM.BaseURL,
		Token:    cfg.CRM.Token,
		Throttle: throttle,
		Timeout:  cfg.CRM.Timeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "create crm client")
	}

	server := proxy.NewServer(crm, proxy.Options{
		PageSize:       cfg.Pagination.PageSize,
		HandlerTimeout: cfg.Server.HandlerTimeout,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		Ready:          ready,
	})

	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, cleanup, nil
}
