package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("want defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.json")
	write(t, path, map[string]any{"tick_period_ms": 250, "food_density": 0.2})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickPeriod() != 250*time.Millisecond {
		t.Fatalf("want tick period 250ms, got %v", cfg.TickPeriod())
	}
	if cfg.FoodDensity != 0.2 {
		t.Fatalf("want food density 0.2, got %v", cfg.FoodDensity)
	}
	// Untouched fields keep their default.
	if cfg.InitialLength != Default().InitialLength {
		t.Fatalf("want default initial length, got %d", cfg.InitialLength)
	}
}

func TestApplyEnvOverridesSeedLabel(t *testing.T) {
	t.Setenv("SNAKEARENA_SEED_LABEL", "integration-run-7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SeedLabel != "integration-run-7" {
		t.Fatalf("want seed label from env, got %q", cfg.SeedLabel)
	}
}

// TestReloadableReloadAppliesFileChanges drives the fsnotify-triggered
// reload handler directly rather than waiting on a filesystem event, so the
// test stays fast and deterministic.
func TestReloadableReloadAppliesFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.json")
	write(t, path, map[string]any{"tick_period_ms": 1000})

	r, err := NewReloadable(path, nil)
	if err != nil {
		t.Fatalf("NewReloadable: %v", err)
	}
	defer r.Close()

	if got := r.Current().TickPeriod(); got != time.Second {
		t.Fatalf("want initial tick period 1s, got %v", got)
	}

	var seen []Config
	r.OnReload(func(cfg Config) { seen = append(seen, cfg) })

	write(t, path, map[string]any{"tick_period_ms": 500, "food_density": 0.1})
	if err := r.reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := r.Current().TickPeriod(); got != 500*time.Millisecond {
		t.Fatalf("want reloaded tick period 500ms, got %v", got)
	}
	if len(seen) != 1 {
		t.Fatalf("want 1 callback invocation, got %d", len(seen))
	}
	if seen[0].FoodDensity != 0.1 {
		t.Fatalf("want callback to see reloaded density 0.1, got %v", seen[0].FoodDensity)
	}
}

func TestReloadableReloadPropagatesFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.json")
	write(t, path, map[string]any{"tick_period_ms": 1000})

	r, err := NewReloadable(path, nil)
	if err != nil {
		t.Fatalf("NewReloadable: %v", err)
	}
	defer r.Close()

	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write malformed config: %v", err)
	}
	if err := r.reload(); err == nil {
		t.Fatalf("want reload to surface the malformed JSON error")
	}
	// A failed reload must not clobber the last good Config.
	if got := r.Current().TickPeriod(); got != time.Second {
		t.Fatalf("want tick period unchanged at 1s after failed reload, got %v", got)
	}
}

func write(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
