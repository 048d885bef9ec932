package engine

import (
	"math/rand"
	"testing"
	"time"

	"snakearena/internal/intake"
	"snakearena/internal/model"
	"snakearena/internal/spawn"
	"snakearena/internal/store"
)

func newTestEngine(t *testing.T, width, height int) (*Engine, *store.Store, *intake.CommandBuffer) {
	t.Helper()
	st := store.New(width, height)
	cmds := intake.New()
	spawner := spawn.New(rand.New(rand.NewSource(1)), spawn.DefaultConfig())
	cfg := Config{TickPeriod: time.Second, InitialLength: 3, InitialInvincibility: 5, FoodDensity: 0.05}
	return New(st, cmds, spawner, cfg, nil, nil, nil, nil), st, cmds
}

func placeSnake(st *store.Store, id model.PlayerID, uid string, body []model.Point, facing model.Direction, invincible int) {
	st.Lock()
	defer st.Unlock()
	w := st.World()
	snake := &model.Snake{
		Identity: model.Identity{ID: id, UID: uid, DisplayName: string(id)},
		Body:     append([]model.Point(nil), body...),
		Facing:   facing,
		Length:   len(body),
		Alive:    true,
	}
	snake.InvincibleRounds = invincible
	w.Players[id] = &model.Player{ID: id, UID: uid, Snake: snake, InGame: true}
	for _, c := range body {
		w.Occupancy.Add(c)
	}
}

// Scenario 1 (spec.md §8): single snake moving right through one food grows
// on the round it reaches it and the round counter advances by exactly one
// per tick.
func TestScenarioSingleSnakeEatsFood(t *testing.T) {
	eng, st, _ := newTestEngine(t, 10, 10)
	placeSnake(st, "p1", "uid1", []model.Point{{X: 5, Y: 5}, {X: 4, Y: 5}, {X: 3, Y: 5}}, model.Right, 0)
	st.Lock()
	st.World().Foods.Add(model.Point{X: 7, Y: 5})
	st.Unlock()

	for i := 0; i < 3; i++ {
		eng.Tick()
	}

	st.Lock()
	snake := st.World().Players["p1"].Snake
	round := st.World().Round
	foodRemaining := st.World().Foods.Has(model.Point{X: 7, Y: 5})
	st.Unlock()

	if round != 3 {
		t.Fatalf("want round 3, got %d", round)
	}
	want := []model.Point{{X: 8, Y: 5}, {X: 7, Y: 5}, {X: 6, Y: 5}}
	if len(snake.Body) != len(want) {
		t.Fatalf("want body %v, got %v", want, snake.Body)
	}
	for i, p := range want {
		if snake.Body[i] != p {
			t.Fatalf("want body %v, got %v", want, snake.Body)
		}
	}
	if snake.Length != 4 {
		t.Fatalf("want length 4, got %d", snake.Length)
	}
	if foodRemaining {
		t.Fatalf("food at (7,5) should have been eaten")
	}
}

// Scenario 2 (spec.md §8): two head-on snakes both die; occupancy at the
// swapped cells reaches 2 for the one tick before resolution.
func TestScenarioHeadOnCollisionKillsBoth(t *testing.T) {
	eng, st, _ := newTestEngine(t, 10, 10)
	// Length-2 bodies so the former head survives as the new second
	// segment after the move: s1 ends at [(5,5),(4,5)] and s2 ends at
	// [(4,5),(5,5)], giving occupancy 2 at both swapped cells.
	placeSnake(st, "s1", "uidA", []model.Point{{X: 4, Y: 5}, {X: 3, Y: 5}}, model.Right, 0)
	placeSnake(st, "s2", "uidB", []model.Point{{X: 5, Y: 5}, {X: 6, Y: 5}}, model.Left, 0)

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	if st.World().Players["s1"].Snake.Alive {
		t.Fatalf("s1 should have died in head-on collision")
	}
	if st.World().Players["s2"].Snake.Alive {
		t.Fatalf("s2 should have died in head-on collision")
	}
	if !st.World().Foods.Has(model.Point{X: 4, Y: 5}) || !st.World().Foods.Has(model.Point{X: 5, Y: 5}) {
		t.Fatalf("want both dead snakes' cells converted to food")
	}
}

// Scenario 3 (spec.md §8): a reverse-direction command is silently ignored.
func TestScenarioReverseDirectionRejected(t *testing.T) {
	eng, st, cmds := newTestEngine(t, 20, 20)
	placeSnake(st, "p1", "uid1", []model.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 5, Y: 7}, {X: 5, Y: 8}}, model.Up, 0)
	_ = cmds.Submit("p1", model.Down)

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	snake := st.World().Players["p1"].Snake
	if snake.Facing != model.Up {
		t.Fatalf("want facing to remain Up, got %s", snake.Facing)
	}
}

// Scenario 4 (spec.md §8): a U-turn that targets a non-tail body cell is
// caught by the pre-move self-collision prediction.
func TestScenarioUTurnSelfCollisionKillsSnake(t *testing.T) {
	eng, st, cmds := newTestEngine(t, 20, 20)
	placeSnake(st, "p1", "uid1", []model.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 5, Y: 7}, {X: 4, Y: 7}}, model.Right, 0)
	_ = cmds.Submit("p1", model.Down)

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	if st.World().Players["p1"].Snake.Alive {
		t.Fatalf("want self-collision death on U-turn into own body")
	}
}

// The pre-move prediction must catch a collision against the CURRENT tail
// cell even though that cell would otherwise vacate on a non-growing move.
func TestSelfCollisionAgainstVacatingTailIsDeath(t *testing.T) {
	eng, st, _ := newTestEngine(t, 20, 20)
	// A tight 4-cell loop: head at (5,5) facing left steps onto (4,5),
	// which is the current tail and about to vacate.
	placeSnake(st, "p1", "uid1", []model.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 5}}, model.Left, 0)

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	if st.World().Players["p1"].Snake.Alive {
		t.Fatalf("want death: pre-move prediction must flag the vacating tail cell")
	}
}

// Invincible snakes pass through other bodies without dying or killing.
func TestInvincibleSnakePassesThroughWithoutDying(t *testing.T) {
	eng, st, _ := newTestEngine(t, 20, 20)
	placeSnake(st, "p1", "uid1", []model.Point{{X: 5, Y: 5}}, model.Right, 3)
	placeSnake(st, "p2", "uid2", []model.Point{{X: 6, Y: 5}, {X: 7, Y: 5}}, model.None, 0)

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	if !st.World().Players["p1"].Snake.Alive {
		t.Fatalf("invincible snake should not die")
	}
	if !st.World().Players["p2"].Snake.Alive {
		t.Fatalf("stationary snake should not die to an invincible passer-through")
	}
}

// Round advances by exactly one per tick.
func TestRoundAdvancesByOnePerTick(t *testing.T) {
	eng, st, _ := newTestEngine(t, 10, 10)
	for i := uint64(1); i <= 5; i++ {
		eng.Tick()
		st.Lock()
		got := st.World().Round
		st.Unlock()
		if got != i {
			t.Fatalf("tick %d: want round %d, got %d", i, i, got)
		}
	}
}

// Food replenishment never errors when the grid is saturated; it simply
// accepts fewer foods than the target.
func TestFoodReplenishmentAcceptsShortfallOnFullGrid(t *testing.T) {
	eng, st, _ := newTestEngine(t, 3, 3)
	// Fill every cell with a stationary snake body so no empty cell exists.
	var body []model.Point
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			body = append(body, model.Point{X: x, Y: y})
		}
	}
	placeSnake(st, "p1", "uid1", body, model.None, 0)
	// A density whose target (floor(9*0.5) = 4) is above zero, so the
	// replenish phase actually runs out of empty cells.
	eng.UpdateConfig(Config{TickPeriod: time.Second, InitialLength: 3, InitialInvincibility: 5, FoodDensity: 0.5})

	eng.Tick()

	st.Lock()
	defer st.Unlock()
	if st.World().Foods.Len() != 0 {
		t.Fatalf("want zero foods on a saturated grid, got %d", st.World().Foods.Len())
	}
}
