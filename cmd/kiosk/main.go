package main // kiosk serves seat-selection and checkout pages to a thin front-end

import (
	"context"       // context for graceful shutdown
	"errors"        // errors.Is on server close
	"net/http"      // http.ErrServerClosed
	"os"            // os.Interrupt
	"os/signal"     // signal.NotifyContext
	"syscall"       // SIGTERM
	"time"          // sweep period and shutdown timeout

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"                     // Echo framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo middleware

	"github.com/iliyamo/cinema-seat-checkout/internal/api"
	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/handler"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/page"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
	"github.com/iliyamo/cinema-seat-checkout/internal/router"
	"github.com/iliyamo/cinema-seat-checkout/internal/schedule"
	"github.com/iliyamo/cinema-seat-checkout/internal/store"
)

func main() {
	cfg := config.Load()                          // Load environment config
	log := logger.New(cfg.LogLevel, cfg.IsDev()) // structured logger

	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb == nil {
		log.Warn("redis unavailable: in-memory hold journals, uncached seat maps, no rate limiting")
	} else {
		defer rdb.Close() // close Redis on exit
	}

	clk := clock.New()                                                          // wall clock for page timers
	client := api.New(cfg.BackendBaseURL, api.WithTimeout(cfg.BackendTimeout)) // booking API client
	deps := &page.Deps{
		Backend:  page.ClientBackend(client),                                        // HTTP backend
		Journals: page.NewJournals(rdb, store.DefaultJournalKey, cfg.HoldJournalTTL), // hold hand-off records
		Redis:    rdb,                                                               // seat-map cache
		Cache:    config.LoadSeatMapCacheConfig(cfg.SeatMapRefresh),                 // cache settings
		Clock:    clk,
		Logger:   log,
		Settings: page.SettingsFrom(cfg),
	}
	if pub := queue.NewPublisher(config.AMQPURL(), log); pub.Enabled() {
		deps.Publisher = pub
	} else {
		log.Info("RABBITMQ_URL not set: booking events are not published")
	}

	registry := page.NewRegistry(clk)                 // live pages by id
	h := handler.NewPageHandler(deps, registry, log) // HTTP handlers
	parser := identity.NewParser(cfg.JWTSecret)      // bearer token reader
	if !parser.Verifies() {
		log.Warn("JWT_SECRET not set: access tokens are read without signature verification")
	}
	rl := config.LoadRateLimitConfig() // rate limiter settings

	e := echo.New()                                                                        // Create Echo instance
	e.HideBanner = true                                                                    // quiet startup
	e.Use(echomw.Recover())                                                                // recover from panics
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString})) // X-Request-ID
	router.RegisterRoutes(e, h)                   // health and catalog routes
	router.RegisterPages(e, h, parser, rl, rdb)   // customer pages
	router.RegisterStaff(e, h, parser, rl, rdb)   // counter sales

	sweep := schedule.NewInterval(clk, time.Minute, func() {
		if n := registry.Sweep(cfg.PageIdleTimeout); n > 0 {
			log.Info("idle pages torn down", "count", n)
		}
	})
	sweep.Start() // tear down idle pages every minute

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop() // restore default signal handling

	addr := ":" + cfg.Port // listen address
	go func() {
		log.Info("kiosk listening", "addr", addr, "env", cfg.Env, "backend", cfg.BackendBaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop() // unblock main
		}
	}()

	<-ctx.Done()              // wait for a signal
	log.Info("shutting down") // announce shutdown
	sweep.Stop()              // stop the idle sweep
	// Releases every live hold with keepalive delivery.
	registry.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel() // release the timeout
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
