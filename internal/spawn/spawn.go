// Package spawn implements safe initial placement and food replenishment
// (spec.md §4.5). Both use an injected *rand.Rand so callers can supply a
// deterministic seed, grounded on the teacher's
// internal/world/random.go deterministic-seed helpers.
package spawn

import (
	"hash/fnv"
	"math/rand"
	"sync/atomic"

	"snakearena/internal/model"
)

// Service samples safe spawn points and food points against a world.
// neighborhoodR and maxAttempts are stored atomically so a config reload
// (internal/config.Reloadable) can retune them without a lock around every
// SafePoint/FoodPoint call on the engine's tick goroutine.
type Service struct {
	rng           *rand.Rand
	neighborhoodR atomic.Int64
	maxAttempts   atomic.Int64
}

// Config tunes the spawn service.
type Config struct {
	// NeighborhoodRadius is the Manhattan radius that must be clear of any
	// living snake body for a spawn point to be considered safe. spec.md
	// §4.5 calls out a typical value of 5.
	NeighborhoodRadius int
	// MaxAttempts bounds the number of samples taken before falling back to
	// the least-bad candidate (spawn) or giving up for this round (food).
	MaxAttempts int
}

// DefaultConfig returns spec.md's suggested defaults.
func DefaultConfig() Config {
	return Config{NeighborhoodRadius: 5, MaxAttempts: 200}
}

// New returns a spawn service backed by rng. Passing a seeded *rand.Rand
// makes placement reproducible for tests.
func New(rng *rand.Rand, cfg Config) *Service {
	if cfg.NeighborhoodRadius <= 0 {
		cfg.NeighborhoodRadius = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 200
	}
	s := &Service{rng: rng}
	s.neighborhoodR.Store(int64(cfg.NeighborhoodRadius))
	s.maxAttempts.Store(int64(cfg.MaxAttempts))
	return s
}

// UpdateConfig retunes the neighborhood radius and attempt budget in place.
// Zero or negative fields fall back to the same defaults New applies.
func (s *Service) UpdateConfig(cfg Config) {
	if cfg.NeighborhoodRadius <= 0 {
		cfg.NeighborhoodRadius = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 200
	}
	s.neighborhoodR.Store(int64(cfg.NeighborhoodRadius))
	s.maxAttempts.Store(int64(cfg.MaxAttempts))
}

// SafePoint samples a grid cell whose Manhattan neighborhood of radius r
// contains no living snake body cell. If no fully-safe cell is found within
// MaxAttempts, it returns the least-bad sampled candidate (spec.md §4.5).
func (s *Service) SafePoint(w *model.World) model.Point {
	best := model.Point{X: w.Width / 2, Y: w.Height / 2}
	bestNeighbors := -1
	maxAttempts := int(s.maxAttempts.Load())

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := model.Point{X: s.rng.Intn(w.Width), Y: s.rng.Intn(w.Height)}
		neighbors := s.neighborCount(w, candidate)
		if neighbors == 0 {
			return candidate
		}
		if bestNeighbors == -1 || neighbors < bestNeighbors {
			best = candidate
			bestNeighbors = neighbors
		}
	}
	return best
}

func (s *Service) neighborCount(w *model.World, center model.Point) int {
	radius := int(s.neighborhoodR.Load())
	count := 0
	for _, snake := range w.LivingSnakes() {
		for _, cell := range snake.Body {
			if cell.ManhattanDistance(center) <= radius {
				count++
			}
		}
	}
	return count
}

// FoodPoint samples a uniformly random empty cell for food replenishment
// (spec.md §4.1 step 8): it rejects cells already occupied by a snake body
// or already holding food, but — unlike SafePoint — enforces no
// neighborhood margin. Returns false if no empty cell was found within
// MaxAttempts.
func (s *Service) FoodPoint(w *model.World) (model.Point, bool) {
	maxAttempts := int(s.maxAttempts.Load())
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := model.Point{X: s.rng.Intn(w.Width), Y: s.rng.Intn(w.Height)}
		if w.Occupancy.Count(candidate) > 0 {
			continue
		}
		if w.Foods.Has(candidate) {
			continue
		}
		return candidate, true
	}
	return model.Point{}, false
}

// RandIntn exposes the service's injected RNG for callers that need a
// uniformly random choice outside of spawn/food sampling, such as the
// random initial facing assigned on join (spec.md §8 scenario 5).
func (s *Service) RandIntn(n int) int {
	return s.rng.Intn(n)
}

// DeterministicSeed derives a reproducible int64 seed from a label via
// FNV-1a, the way the teacher's world constructor seeds per-subsystem RNGs
// from a root seed. Passing the same label always yields the same seed,
// which is what SNAKEARENA_SEED_LABEL plugs into the spawner's *rand.Rand
// for reproducible runs.
func DeterministicSeed(label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	seed := int64(h.Sum64())
	if seed < 0 {
		seed = -seed
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
