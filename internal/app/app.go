// Package app wires together the tick engine, the request surface, and
// their shared ambient services (config, logging, leaderboard) into one
// runnable process.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"snakearena/internal/config"
	"snakearena/internal/engine"
	"snakearena/internal/httpapi"
	"snakearena/internal/intake"
	"snakearena/internal/leaderboard"
	"snakearena/internal/observability"
	"snakearena/internal/session"
	"snakearena/internal/spawn"
	"snakearena/internal/store"
	"snakearena/internal/telemetry"
	"snakearena/logging"
	loggingSinks "snakearena/logging/sinks"
)

// Options controls process wiring; every field may be left zero for a
// reasonable default.
type Options struct {
	ConfigPath string
	Logger     telemetry.Logger
}

// Run loads configuration, starts the tick loop and HTTP server, and blocks
// until ctx is cancelled or the server fails.
func Run(ctx context.Context, opts Options) error {
	telemetryLogger := opts.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	logCfg := logging.DefaultConfig()
	metrics := &logging.Metrics{}
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logCfg, sinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	reloadable, err := config.NewReloadable(opts.ConfigPath, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer reloadable.Close()
	cfg := reloadable.Current()

	st := store.New(cfg.Width, cfg.Height)
	cmds := intake.New()
	spawnSeed := rand.NewSource(time.Now().UnixNano())
	if cfg.SeedLabel != "" {
		spawnSeed = rand.NewSource(spawn.DeterministicSeed(cfg.SeedLabel))
	}
	spawner := spawn.New(rand.New(spawnSeed), spawn.Config{
		NeighborhoodRadius: cfg.SpawnNeighborhoodR,
		MaxAttempts:        cfg.SpawnMaxAttempts,
	})

	lb, err := leaderboard.Open(cfg.LeaderboardDSN, "season1")
	if err != nil {
		return fmt.Errorf("open leaderboard: %w", err)
	}
	defer lb.Close()

	eng := engine.New(st, cmds, spawner, engine.Config{
		TickPeriod:           cfg.TickPeriod(),
		InitialLength:        cfg.InitialLength,
		InitialInvincibility: cfg.InitialInvincibility,
		FoodDensity:          cfg.FoodDensity,
	}, telemetryLogger, telemetry.WrapMetrics(metrics), router, lb)

	reg := session.New(st, eng, session.PermissiveVerifier{}, router)

	tickPeriod := make(chan time.Duration, 1)
	reloadable.OnReload(func(next config.Config) {
		eng.UpdateConfig(engine.Config{
			TickPeriod:           next.TickPeriod(),
			InitialLength:        next.InitialLength,
			InitialInvincibility: next.InitialInvincibility,
			FoodDensity:          next.FoodDensity,
		})
		spawner.UpdateConfig(spawn.Config{
			NeighborhoodRadius: next.SpawnNeighborhoodR,
			MaxAttempts:        next.SpawnMaxAttempts,
		})
		select {
		case tickPeriod <- next.TickPeriod():
		default:
		}
	})

	stop := make(chan struct{})
	go runTickLoop(eng, cfg.TickPeriod(), tickPeriod, stop, telemetryLogger)
	defer close(stop)

	handler := httpapi.NewRouter(httpapi.Deps{
		Store:       st,
		Engine:      eng,
		Registry:    reg,
		Leaderboard: lb,
		Metrics:     metrics,
		TickPeriod:  cfg.TickPeriod(),
		MapWidth:    cfg.Width,
		MapHeight:   cfg.Height,
		Observability: observability.Config{EnablePprofTrace: cfg.EnablePprofTrace},
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

// runTickLoop drives the engine at a fixed period until stop is closed, the
// single ticking goroutine spec.md §5 requires. A value on tickPeriod
// (pushed by a config reload) resets the ticker to the new period without
// restarting the process.
func runTickLoop(eng *engine.Engine, period time.Duration, tickPeriod <-chan time.Duration, stop <-chan struct{}, logger telemetry.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case next := <-tickPeriod:
			if next > 0 {
				ticker.Reset(next)
			}
		case <-ticker.C:
			eng.Tick()
		}
	}
}
