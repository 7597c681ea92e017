// Command democache runs the bounded cache as a small standalone
// service: it exposes PUT/GET/DELETE /entries/:key, POST /purge,
// GET /stats and GET /metrics over HTTP so the library's eviction
// behavior can be poked at and scraped, the way
// cmd/agent wires its own internal packages together.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/boundedcache/cache"
	"github.com/p-blackswan/boundedcache/internal/config"
	"github.com/p-blackswan/boundedcache/internal/metrics"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Int64("count_limit", cfg.CacheCountLimit).
		Int64("cost_limit", cfg.CacheCostLimit).
		Dur("auto_trim_interval", cfg.CacheAutoTrimInterval).
		Msg("starting democache")

	cacheName := cfg.CacheName
	if cacheName == "" {
		cacheName = "democache"
	}

	m := metrics.New(cacheName)

	c := cache.New[string, []byte](
		cache.WithName(cacheName),
		cache.WithCountLimit(cfg.CacheCountLimit),
		cache.WithCostLimit(cfg.CacheCostLimit),
		cache.WithAgeLimit(cfg.CacheAgeLimit),
		cache.WithAutoTrimInterval(cfg.CacheAutoTrimInterval),
		cache.WithLogger(logger),
		cache.WithMetrics(m.CacheMetrics()),
	)
	defer c.Close()

	app := newServer(c, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := ":" + strconv.Itoa(cfg.HTTPPort)
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
		cancel()
	}()

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during http shutdown")
	}
}

// newServer wires the cache into a tiny Fiber app. This HTTP surface
// belongs to the demo, not to package cache — the library itself
// exposes no wire protocol.
func newServer(c *cache.Cache[string, []byte], m *metrics.Metrics, logger zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	app.Get("/stats", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"name":        c.Name(),
			"total_count": c.TotalCount(),
			"total_cost":  c.TotalCost(),
		})
	})

	app.Put("/entries/:key", func(ctx *fiber.Ctx) error {
		key := ctx.Params("key")
		c.Put(key, append([]byte(nil), ctx.Body()...), int64(len(ctx.Body())))
		logger.Debug().Str("key", key).Msg("entry stored")
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/entries/:key", func(ctx *fiber.Ctx) error {
		key := ctx.Params("key")
		v, ok := c.Get(key)
		if !ok {
			return ctx.SendStatus(fiber.StatusNotFound)
		}
		return ctx.Send(v)
	})

	app.Delete("/entries/:key", func(ctx *fiber.Ctx) error {
		c.Remove(ctx.Params("key"))
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/purge", func(ctx *fiber.Ctx) error {
		c.RemoveAll()
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	return app
}
