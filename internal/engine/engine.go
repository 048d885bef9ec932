// Package engine implements the tick engine: the ordered per-round pipeline
// described in spec.md §4.1. It runs on a single goroutine at a fixed
// period; concurrent request handlers only ever read through internal/store
// or submit through internal/intake.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"snakearena/internal/intake"
	"snakearena/internal/journal"
	"snakearena/internal/model"
	"snakearena/internal/spawn"
	"snakearena/internal/telemetry"
	"snakearena/logging"
	"snakearena/logging/lifecycle"
	"snakearena/logging/simulation"
)

// overrunAlarmStreak is the number of consecutive tick-budget overruns that
// escalates a warning into an alarm event.
const overrunAlarmStreak = 3

// Config tunes the tick engine.
type Config struct {
	TickPeriod           time.Duration
	InitialLength        int
	InitialInvincibility int
	FoodDensity          float64
}

// DefaultConfig returns the scenario defaults named throughout spec.md §8:
// T=1000ms, I0=5, initialLength=3, density=0.05.
func DefaultConfig() Config {
	return Config{
		TickPeriod:           time.Second,
		InitialLength:        3,
		InitialInvincibility: 5,
		FoodDensity:          0.05,
	}
}

// LeaderboardSink receives per-event notifications so a persisted
// leaderboard (internal/leaderboard) can stay updated without the engine
// depending on any particular storage backend (spec.md §6 leaderboard
// collaborator).
type LeaderboardSink interface {
	RecordJoin(uid, name string)
	RecordFood(uid string, currentLength int)
	RecordKill(killerUID string)
	RecordDeath(uid string, finalLength int)
}

type nopLeaderboard struct{}

func (nopLeaderboard) RecordJoin(string, string) {}
func (nopLeaderboard) RecordFood(string, int)    {}
func (nopLeaderboard) RecordKill(string)         {}
func (nopLeaderboard) RecordDeath(string, int)   {}

// Store is the subset of internal/store.Store the engine needs. Declared
// here so tests can supply a fake without importing the store package's
// JSON-facing surface.
type Store interface {
	Lock()
	Unlock()
	World() *model.World
	Journal() *journal.Journal
}

// Engine drives the world forward one round at a time.
type Engine struct {
	store    Store
	commands *intake.CommandBuffer
	spawner  *spawn.Service
	cfg      atomic.Pointer[Config]
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	events   logging.Publisher
	lb       LeaderboardSink

	overrunStreak uint64
}

// New constructs an Engine. logger, metrics, events, and lb may be nil.
func New(st Store, commands *intake.CommandBuffer, spawner *spawn.Service, cfg Config, logger telemetry.Logger, metrics telemetry.Metrics, events logging.Publisher, lb LeaderboardSink) *Engine {
	if lb == nil {
		lb = nopLeaderboard{}
	}
	if events == nil {
		events = logging.NopPublisher()
	}
	e := &Engine{store: st, commands: commands, spawner: spawner, logger: logger, metrics: metrics, events: events, lb: lb}
	e.cfg.Store(&cfg)
	return e
}

// UpdateConfig swaps in a new Config for the next tick onward. Safe to call
// from any goroutine; the running tick always sees a consistent snapshot
// because it loads the pointer once at the top of Tick.
func (e *Engine) UpdateConfig(cfg Config) {
	e.cfg.Store(&cfg)
}

// config returns the Config in effect for the caller's current operation.
func (e *Engine) config() Config {
	return *e.cfg.Load()
}

// AddPlayer places a new in-game snake for an existing player entry and
// returns the full record (for the join response / joined_players delta
// entry) plus the randomly chosen initial facing (spec.md §4.4, §8
// scenario 5). The caller (internal/session) is responsible for having
// already inserted the bare Player into the world.
func (e *Engine) AddPlayer(id model.PlayerID) (model.FullRecord, model.Direction) {
	e.store.Lock()
	defer e.store.Unlock()

	w := e.store.World()
	p := w.Players[id]

	cfg := e.config()
	spawnPoint := e.spawner.SafePoint(w)
	snake := model.NewSnake(model.Identity{ID: id, UID: p.UID, DisplayName: p.Name, Color: p.Color}, spawnPoint, cfg.InitialLength, cfg.InitialInvincibility)
	facing := model.AllDirections[e.spawner.RandIntn(4)]
	snake.Facing = facing

	p.Snake = snake
	p.InGame = true
	for _, cell := range snake.Body {
		w.Occupancy.Add(cell)
	}

	rec := snake.ToFullRecord()
	e.store.Journal().RecordJoin(rec)
	e.lb.RecordJoin(p.UID, p.Name)
	return rec, facing
}

// SubmitCommand stages dir for playerID in the current round, applying the
// command-buffer's duplicate check only (spec.md §4.3).
func (e *Engine) SubmitCommand(id model.PlayerID, dir model.Direction) error {
	return e.commands.Submit(id, dir)
}

// Tick advances the world by exactly one round, running the ten ordered
// phases of spec.md §4.1. It must be called from a single goroutine.
func (e *Engine) Tick() {
	start := time.Now()
	cfg := e.config()

	// Phase 1: swap commands. Command-buffer lock is acquired and released
	// before the state lock, per the lock-ordering rule in spec.md §5.
	pending := e.commands.Swap()

	e.store.Lock()
	defer e.store.Unlock()
	w := e.store.World()
	j := e.store.Journal()

	// Phase 2: clear delta journal.
	j.Reset()

	// Phase 3: apply directions.
	e.applyDirections(w, pending)

	// Phase 4: predict self-collision.
	selfCollided := e.predictSelfCollisions(w)

	// Phase 5: move.
	e.move(w, j)

	// Phase 6: detect collisions.
	e.detectCollisions(w, j, selfCollided)

	// Phase 7: food collection.
	e.collectFood(w, j)

	// Phase 8: food replenishment.
	e.replenishFood(w, j, cfg)

	// Phase 9: age invincibility.
	e.ageInvincibility(w)

	// Phase 10: publish.
	w.Round++
	now := time.Now()
	w.NextRoundTimestampMs = now.Add(cfg.TickPeriod).UnixMilli()
	j.Publish(w.Round, now.UnixMilli(), w.NextRoundTimestampMs)

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.Store("engine_last_tick_duration_ms", uint64(elapsed.Milliseconds()))
	}
	e.recordTickBudget(w.Round, elapsed, cfg.TickPeriod)
}

// recordTickBudget logs and publishes an overrun event whenever a tick takes
// longer than its period, escalating to an alarm after overrunAlarmStreak
// consecutive overruns so operators can tell a one-off GC pause from a
// sustained budget breach.
func (e *Engine) recordTickBudget(round uint64, elapsed, period time.Duration) {
	if elapsed <= period {
		e.overrunStreak = 0
		return
	}
	e.overrunStreak++
	ratio := float64(elapsed) / float64(period)
	if e.logger != nil {
		e.logger.Printf("tick %d exceeded period: took %s, budget %s (streak %d)", round, elapsed, period, e.overrunStreak)
	}
	simulation.TickBudgetOverrun(context.Background(), e.events, round, simulation.TickBudgetOverrunPayload{
		DurationMillis: elapsed.Milliseconds(),
		BudgetMillis:   period.Milliseconds(),
		Ratio:          ratio,
		Streak:         e.overrunStreak,
	}, nil)
	if e.overrunStreak >= overrunAlarmStreak {
		simulation.TickBudgetAlarm(context.Background(), e.events, round, simulation.TickBudgetAlarmPayload{
			DurationMillis:  elapsed.Milliseconds(),
			BudgetMillis:    period.Milliseconds(),
			Ratio:           ratio,
			Streak:          e.overrunStreak,
			ResyncScheduled: false,
			ThresholdRatio:  ratio,
			ThresholdStreak: overrunAlarmStreak,
		}, nil)
	}
}

// applyDirections is phase 3: for every in-game player with a pending
// command, reject it if it reverses the current facing; otherwise adopt it.
// Players without a command keep their facing.
func (e *Engine) applyDirections(w *model.World, pending map[model.PlayerID]model.Direction) {
	for id, dir := range pending {
		p, ok := w.Players[id]
		if !ok || !p.InGame || p.Snake == nil || !p.Snake.Alive {
			continue
		}
		if dir.IsReverseOf(p.Snake.Facing) {
			continue
		}
		p.Snake.Facing = dir
	}
}

// predictSelfCollisions is phase 4: for every living snake with a facing,
// compute the next head and check it against the CURRENT body (pre-move).
// This catches a collision with the current tail cell, which a post-move
// check would miss because the tail vacates on a non-growing move
// (spec.md §4.1 step 4, DESIGN NOTES §9).
func (e *Engine) predictSelfCollisions(w *model.World) map[model.PlayerID]bool {
	collided := make(map[model.PlayerID]bool)
	for _, snake := range w.LivingSnakes() {
		if snake.Facing == model.None {
			continue
		}
		dx, dy := snake.Facing.Unit()
		nextHead := snake.Head().Add(dx, dy)
		for _, cell := range snake.Body {
			if cell == nextHead {
				collided[snake.ID] = true
				break
			}
		}
	}
	return collided
}

// move is phase 5: prepend the next head to the body; pop the tail unless
// growing this tick. Update occupancy incrementally and record a simplified
// per-player delta entry.
func (e *Engine) move(w *model.World, j *journal.Journal) {
	for _, snake := range w.LivingSnakes() {
		if snake.Facing == model.None {
			continue
		}
		dx, dy := snake.Facing.Unit()
		nextHead := snake.Head().Add(dx, dy)

		snake.Body = append([]model.Point{nextHead}, snake.Body...)
		w.Occupancy.Add(nextHead)

		if snake.ConsumeGrowth() {
			snake.Length = len(snake.Body)
		} else {
			vacated := snake.Body[len(snake.Body)-1]
			snake.Body = snake.Body[:len(snake.Body)-1]
			w.Occupancy.Remove(vacated)
			snake.Length = len(snake.Body)
		}

		j.RecordUpdate(snake.ToSimplified())
	}
}

type collisionCause int

const (
	noCollision collisionCause = iota
	collisionWall
	collisionSelf
	collisionOther
)

func (c collisionCause) String() string {
	switch c {
	case collisionWall:
		return "wall"
	case collisionSelf:
		return "self"
	case collisionOther:
		return "killed"
	default:
		return "unknown"
	}
}

// detectCollisions is phase 6: classify every living snake against a single
// frozen snapshot of this round's post-move bodies, then resolve deaths.
// Classifying everyone against the same snapshot (rather than mutating as
// we go) keeps the result independent of iteration order: resolving one
// snake's death must not change whether a different snake, checked a
// moment later in the same pass, appears to collide.
func (e *Engine) detectCollisions(w *model.World, j *journal.Journal, selfCollided map[model.PlayerID]bool) {
	living := w.LivingSnakes()
	causes := make(map[model.PlayerID]collisionCause, len(living))
	for _, snake := range living {
		if snake.Invincible() {
			continue
		}
		causes[snake.ID] = e.classify(w, snake, selfCollided, living)
	}
	for _, snake := range living {
		cause := causes[snake.ID]
		if cause == noCollision {
			continue
		}
		e.resolveDeath(w, j, snake, cause, living)
	}
}

func (e *Engine) classify(w *model.World, snake *model.Snake, selfCollided map[model.PlayerID]bool, living []*model.Snake) collisionCause {
	head := snake.Head()
	if !w.InBounds(head) {
		return collisionWall
	}
	if selfCollided[snake.ID] {
		return collisionSelf
	}
	if model.NonInvincibleCount(head, living) > 1 {
		return collisionOther
	}
	return noCollision
}

func (e *Engine) resolveDeath(w *model.World, j *journal.Journal, snake *model.Snake, cause collisionCause, living []*model.Snake) {
	if cause == collisionOther {
		e.attributeKill(w, snake, living)
	}

	snake.Alive = false
	if p, ok := w.Players[snake.ID]; ok {
		p.InGame = false
	}

	for _, cell := range snake.Body {
		w.Occupancy.Remove(cell)
		if w.Foods.Add(cell) {
			j.RecordFoodAdded(cell)
		}
	}

	j.RecordDeath(snake.ID)
	e.lb.RecordDeath(snake.UID, snake.Length)

	lifecycle.PlayerDisconnected(context.Background(), e.events, w.Round,
		logging.EntityRef{ID: string(snake.ID), Kind: logging.EntityKindPlayer},
		lifecycle.PlayerDisconnectedPayload{Reason: cause.String()}, nil)
}

// attributeKill credits a kill to any non-self, non-invincible living snake
// whose body also occupies the victim's head cell (first such wins a tie),
// per spec.md §4.1 step 6.
func (e *Engine) attributeKill(w *model.World, victim *model.Snake, living []*model.Snake) {
	head := victim.Head()
	for _, other := range living {
		if other.ID == victim.ID || other.Invincible() {
			continue
		}
		for _, cell := range other.Body {
			if cell == head {
				e.lb.RecordKill(other.UID)
				return
			}
		}
	}
}

// collectFood is phase 7: grow any living snake whose head sits on a food.
func (e *Engine) collectFood(w *model.World, j *journal.Journal) {
	for _, snake := range w.LivingSnakes() {
		head := snake.Head()
		if !w.Foods.Has(head) {
			continue
		}
		snake.QueueGrowth()
		w.Foods.Remove(head)
		j.RecordFoodRemoved(head)
		e.lb.RecordFood(snake.UID, snake.Length)
	}
}

// replenishFood is phase 8: sample empty cells until the food count reaches
// floor(W*H*density), bounded by the spawn service's attempt budget. A
// too-full grid is accepted without error.
func (e *Engine) replenishFood(w *model.World, j *journal.Journal, cfg Config) {
	target := int(float64(w.Width*w.Height) * cfg.FoodDensity)
	for w.Foods.Len() < target {
		p, ok := e.spawner.FoodPoint(w)
		if !ok {
			return
		}
		w.Foods.Add(p)
		j.RecordFoodAdded(p)
	}
}

// ageInvincibility is phase 9: decrement invincibility for every in-game
// player that still has rounds remaining.
func (e *Engine) ageInvincibility(w *model.World) {
	for _, snake := range w.LivingSnakes() {
		if snake.InvincibleRounds > 0 {
			snake.InvincibleRounds--
		}
	}
}
