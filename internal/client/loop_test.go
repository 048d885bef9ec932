package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"snakearena/internal/model"
)

type fakeTransport struct {
	round      uint64
	inGame     bool
	moves      []model.Direction
	deltaFails bool
	respawns   int
	joins      int
}

func (f *fakeTransport) Login(uid, paste string) (string, time.Time, error) {
	return "key-" + uid, time.Now(), nil
}

func (f *fakeTransport) Join(key, name, color string) (string, model.PlayerID, model.Direction, State, time.Time, error) {
	f.inGame = true
	f.joins++
	return "token-" + key, model.PlayerID("p1"), model.Right, State{Round: f.round, SelfInGame: true}, time.Now(), nil
}

func (f *fakeTransport) Respawn(token string) (model.Direction, State, time.Time, error) {
	f.inGame = true
	f.respawns++
	return model.Right, State{Round: f.round, SelfInGame: true}, time.Now(), nil
}

func (f *fakeTransport) FetchMap() (State, time.Time, error) {
	return State{Round: f.round, SelfInGame: f.inGame}, time.Now(), nil
}

func (f *fakeTransport) FetchDelta() (State, bool, time.Time, error) {
	if f.deltaFails {
		return State{}, false, time.Time{}, errors.New("no delta available")
	}
	return State{Round: f.round, SelfInGame: f.inGame}, true, time.Now(), nil
}

func (f *fakeTransport) Move(token string, dir model.Direction) error {
	f.moves = append(f.moves, dir)
	return nil
}

func TestRunOneRoundSubmitsOneMovePerNewRound(t *testing.T) {
	ft := &fakeTransport{round: 1, inGame: true}
	decide := func(State) model.Direction { return model.Up }
	l := New(ft, decide, Config{UID: "uid1"}, nil)

	ctx := context.Background()
	if _, _, _, _, _, err := ft.Join("key-uid1", "", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	l.token = "token-key-uid1"
	l.playerID = "p1"
	l.lastRound = 0

	if err := l.runOneRound(ctx); err != nil {
		t.Fatalf("runOneRound: %v", err)
	}
	if len(ft.moves) != 1 || ft.moves[0] != model.Up {
		t.Fatalf("want one Up move, got %v", ft.moves)
	}

	// Same round observed again: must not submit a second move.
	if err := l.runOneRound(ctx); err != nil {
		t.Fatalf("runOneRound (repeat): %v", err)
	}
	if len(ft.moves) != 1 {
		t.Fatalf("want move count to stay at 1 for a repeated round, got %d", len(ft.moves))
	}
}

func TestRunOneRoundFallsBackToFullMapWhenDeltaFails(t *testing.T) {
	ft := &fakeTransport{round: 5, inGame: true, deltaFails: true}
	decide := func(State) model.Direction { return model.Left }
	l := New(ft, decide, Config{UID: "uid1"}, nil)
	l.token = "token-x"
	l.playerID = "p1"
	l.lastRound = 0

	if err := l.runOneRound(context.Background()); err != nil {
		t.Fatalf("runOneRound: %v", err)
	}
	if len(ft.moves) != 1 || ft.moves[0] != model.Left {
		t.Fatalf("want one Left move via full-map fallback, got %v", ft.moves)
	}
}

func TestRunOneRoundRespawnsOnExistingTokenAfterDeath(t *testing.T) {
	ft := &fakeTransport{round: 3, inGame: false}
	decide := func(State) model.Direction { return model.Up }
	l := New(ft, decide, Config{UID: "uid1", AutoRespawn: true, RespawnDelay: time.Millisecond}, nil)
	l.token = "token-existing"
	l.playerID = "p1"
	l.lastRound = 0

	if err := l.runOneRound(context.Background()); err != nil {
		t.Fatalf("runOneRound: %v", err)
	}
	if ft.respawns != 1 {
		t.Fatalf("want one Respawn call, got %d", ft.respawns)
	}
	if ft.joins != 0 {
		t.Fatalf("want death→rejoin to reuse the session token via Respawn, not Login/Join, got %d joins", ft.joins)
	}
	if l.token != "token-existing" {
		t.Fatalf("want the session token unchanged across respawn, got %q", l.token)
	}
}

func TestWaitUntilJustBeforeNextTickSleepsUntilSafetyMargin(t *testing.T) {
	l := New(&fakeTransport{}, func(State) model.Direction { return model.Up }, Config{}, nil)
	// Pin the estimator to a zero offset so estimated server time equals
	// local time exactly.
	l.clock.Observe(time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0))

	now := time.Now()
	l.nextRoundTimestamp = now.Add(500 * time.Millisecond).UnixMilli()

	start := time.Now()
	l.waitUntilJustBeforeNextTick()
	elapsed := time.Since(start)

	want := 500*time.Millisecond - SafetyMargin
	if elapsed < want-20*time.Millisecond || elapsed > want+50*time.Millisecond {
		t.Fatalf("want sleep near %v, got %v", want, elapsed)
	}
}

func TestWaitUntilJustBeforeNextTickYieldsWhenAlreadyPast(t *testing.T) {
	l := New(&fakeTransport{}, func(State) model.Direction { return model.Up }, Config{}, nil)
	l.clock.Observe(time.Unix(0, 0), time.Unix(0, 0), time.Unix(0, 0))
	l.nextRoundTimestamp = time.Now().Add(-time.Second).UnixMilli()

	start := time.Now()
	l.waitUntilJustBeforeNextTick()
	elapsed := time.Since(start)

	if elapsed > 20*time.Millisecond {
		t.Fatalf("want a brief yield when already past the deadline, slept %v", elapsed)
	}
}

func TestDecideSafelyRecoversFromPanic(t *testing.T) {
	decide := func(State) model.Direction { panic("boom") }
	l := New(&fakeTransport{}, decide, Config{DefaultMove: model.Down}, nil)
	if got := l.decideSafely(State{}); got != model.Down {
		t.Fatalf("want fallback to DefaultMove Down, got %v", got)
	}
}
