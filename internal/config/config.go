// Package config loads the server's tunables from a JSON file with
// environment overrides, and can hot-reload the file via fsnotify so an
// operator can adjust tick period, food density, or the invincibility
// window without restarting the process.
//
// Unlike the teacher's config.GetConfigValue singleton, Config is a plain
// struct threaded through constructors — no package-level instance, no
// sync.Once (DESIGN NOTES §9 "Singletons → explicit injection").
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds every tunable named in spec.md §8's scenario defaults plus
// the request-surface and leaderboard wiring.
type Config struct {
	Width                int     `json:"width"`
	Height               int     `json:"height"`
	TickPeriodMs          int     `json:"tick_period_ms"`
	FoodDensity          float64 `json:"food_density"`
	InitialLength        int     `json:"initial_length"`
	InitialInvincibility int     `json:"initial_invincibility"`
	SpawnNeighborhoodR   int     `json:"spawn_neighborhood_radius"`
	SpawnMaxAttempts     int     `json:"spawn_max_attempts"`
	HTTPAddr             string  `json:"http_addr"`
	LeaderboardDSN       string  `json:"leaderboard_dsn"`
	EnablePprofTrace     bool    `json:"enable_pprof_trace"`
	// SeedLabel, when non-empty, seeds the spawn service deterministically
	// (internal/spawn.DeterministicSeed) instead of from the wall clock, so
	// an operator can replay a run for debugging. Empty means seed randomly.
	SeedLabel string `json:"seed_label"`
}

// TickPeriod returns TickPeriodMs as a time.Duration.
func (c Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}

// Default returns the scenario defaults from spec.md §8 (T=1000ms, I0=5,
// initialLength=3, density=0.05) on a 40x40 grid. Callers building a real
// arena will generally override Width/Height.
func Default() Config {
	return Config{
		Width:                40,
		Height:               40,
		TickPeriodMs:         1000,
		FoodDensity:          0.05,
		InitialLength:        3,
		InitialInvincibility: 5,
		SpawnNeighborhoodR:   5,
		SpawnMaxAttempts:     200,
		HTTPAddr:             ":8080",
		LeaderboardDSN:       "leaderboard.db",
	}
}

// Load reads a JSON file at path over the defaults (missing fields keep
// their default value), then applies environment overrides. A missing file
// is not an error: Load returns the defaults with env overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("SNAKEARENA_TICK_PERIOD_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TickPeriodMs = n
		}
	}
	if v, ok := os.LookupEnv("SNAKEARENA_FOOD_DENSITY"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FoodDensity = f
		}
	}
	if v, ok := os.LookupEnv("SNAKEARENA_HTTP_ADDR"); ok && v != "" {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("SNAKEARENA_LEADERBOARD_DSN"); ok && v != "" {
		cfg.LeaderboardDSN = v
	}
	if v, ok := os.LookupEnv("ENABLE_PPROF_TRACE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnablePprofTrace = b
		}
	}
	if v, ok := os.LookupEnv("SNAKEARENA_SEED_LABEL"); ok {
		cfg.SeedLabel = v
	}
}

// Reloadable hot-reloads a subset of a Config — tick period, density, and
// invincibility window (the DOMAIN STACK wiring in SPEC_FULL.md §3) — by
// watching its backing file with fsnotify and applying changes to a
// callback under a mutex, so the engine can read the latest values without
// restarting.
type Reloadable struct {
	mu      sync.RWMutex
	current Config
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(Config)
}

// NewReloadable loads path once and starts watching it for writes. Callers
// should defer Close. onLoad, if non-nil, is invoked with every reloaded
// Config (including the initial load).
func NewReloadable(path string, onLoad func(Config)) (*Reloadable, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	r := &Reloadable{current: cfg, path: path, onLoad: onLoad}

	if path != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return nil, err
		}
		r.watcher = watcher
		go r.watch()
	}

	if onLoad != nil {
		onLoad(cfg)
	}
	return r, nil
}

func (r *Reloadable) watch() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.reload()
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload re-reads the backing file and invokes the registered callback, if
// any, with the freshly loaded Config. Kept as a separate method so a test can
// drive the fsnotify-triggered path directly without touching the
// filesystem watcher.
func (r *Reloadable) reload() error {
	cfg, err := Load(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.current = cfg
	onLoad := r.onLoad
	r.mu.Unlock()
	if onLoad != nil {
		onLoad(cfg)
	}
	return nil
}

// OnReload registers fn to be called with every Config reloaded after this
// call, replacing any previously registered callback. It does not fire for
// the initial load performed by NewReloadable.
func (r *Reloadable) OnReload(fn func(Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoad = fn
}

// Current returns the most recently loaded Config.
func (r *Reloadable) Current() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Close stops watching the backing file.
func (r *Reloadable) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
