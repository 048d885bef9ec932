// Package client implements the round-synchronized polling loop of
// spec.md §4.7: clock sync, wait until just before the next tick, fetch the
// freshest state, decide, submit one move per round with at-most-once
// semantics.
package client

import (
	"context"
	"time"

	"snakearena/internal/clocksync"
	"snakearena/internal/model"
	"snakearena/logging"
	"snakearena/logging/network"
)

// SafetyMargin covers RTT and decision time before the next tick, per
// spec.md §4.7 step 1.
const SafetyMargin = 150 * time.Millisecond

// State is the snapshot a Decider reasons over. Head/Blocks/Length come
// either from a full map fetch or from applying a delta.
type State struct {
	Round              uint64
	NextRoundTimestamp int64
	Width              int
	Height             int
	Players            []model.FullRecord
	Foods              []model.Point
	Self               model.PlayerID
	SelfInGame         bool
}

// Decider picks a direction given the latest state. It must not block
// beyond the time budget the loop allots it; any panic is recovered by the
// loop and treated as a failed decision.
type Decider func(State) model.Direction

// Transport is the HTTP surface the loop drives. A real implementation
// wraps net/http calls to the endpoints in spec.md §4.6; fakes back the
// loop's tests.
type Transport interface {
	Login(uid, paste string) (key string, serverNow time.Time, err error)
	Join(key, name, color string) (token string, playerID model.PlayerID, initialDirection model.Direction, snap State, serverNow time.Time, err error)
	Respawn(token string) (initialDirection model.Direction, snap State, serverNow time.Time, err error)
	FetchMap() (State, time.Time, error)
	FetchDelta() (State, bool, time.Time, error)
	Move(token string, dir model.Direction) error
}

// Config tunes the loop.
type Config struct {
	UID           string
	Paste         string
	Name          string
	Color         string
	AutoRespawn   bool
	RespawnDelay  time.Duration
	DefaultMove   model.Direction
}

// Loop drives one bot's session against Transport.
type Loop struct {
	transport Transport
	decide    Decider
	cfg       Config
	clock     *clocksync.Estimator
	events    logging.Publisher

	token              string
	playerID           model.PlayerID
	lastRound          uint64
	lastDecided        uint64
	nextRoundTimestamp int64
}

// New constructs a Loop. events may be nil.
func New(transport Transport, decide Decider, cfg Config, events logging.Publisher) *Loop {
	if cfg.RespawnDelay <= 0 {
		cfg.RespawnDelay = time.Second
	}
	if cfg.DefaultMove == model.None {
		cfg.DefaultMove = model.Right
	}
	if events == nil {
		events = logging.NopPublisher()
	}
	return &Loop{
		transport: transport,
		decide:    decide,
		cfg:       cfg,
		clock:     clocksync.New(),
		events:    events,
	}
}

// Start logs in, joins, and runs the round loop until ctx is cancelled.
func (l *Loop) Start(ctx context.Context) error {
	key, serverNow, err := l.transport.Login(l.cfg.UID, l.cfg.Paste)
	if err != nil {
		return err
	}
	l.clock.Observe(time.Now(), time.Now(), serverNow)

	token, playerID, _, snap, serverNow, err := l.transport.Join(key, l.cfg.Name, l.cfg.Color)
	if err != nil {
		return err
	}
	l.token = token
	l.playerID = playerID
	l.lastRound = snap.Round
	l.nextRoundTimestamp = snap.NextRoundTimestamp
	l.clock.Observe(time.Now(), time.Now(), serverNow)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.runOneRound(ctx); err != nil {
			return err
		}
	}
}

func (l *Loop) runOneRound(ctx context.Context) error {
	l.waitUntilJustBeforeNextTick()

	state, gotServerNow, fellBack, err := l.fetchState()
	if err != nil {
		// Transient network failure: retry next round. No full refresh is
		// forced; the next fetchState tries the delta first again and falls
		// back to a full map only if the delta fails or the round gap exceeds 1.
		return nil
	}
	l.clock.Observe(time.Now(), time.Now(), gotServerNow)
	l.nextRoundTimestamp = state.NextRoundTimestamp

	if fellBack {
		network.RoundGapDetected(ctx, l.events, state.Round, logging.EntityRef{ID: string(l.playerID), Kind: logging.EntityKindPlayer},
			network.RoundPayload{Previous: l.lastRound, Observed: state.Round}, nil)
	} else {
		network.RoundAdvanced(ctx, l.events, state.Round, logging.EntityRef{ID: string(l.playerID), Kind: logging.EntityKindPlayer},
			network.RoundPayload{Previous: l.lastRound, Observed: state.Round}, nil)
	}
	l.lastRound = state.Round

	if !state.SelfInGame {
		if !l.cfg.AutoRespawn {
			return errStopped
		}
		time.Sleep(l.cfg.RespawnDelay)
		return l.respawn()
	}

	if state.Round == l.lastDecided {
		return nil
	}

	dir := l.decideSafely(state)
	l.lastDecided = state.Round

	if err := l.transport.Move(l.token, dir); err != nil {
		// Treat the round as processed regardless, to avoid a retry storm
		// against a server that is rejecting (e.g. already-duplicate) moves.
		return nil
	}
	return nil
}

var errStopped = &stoppedError{}

type stoppedError struct{}

func (*stoppedError) Error() string { return "client: stopped, auto-respawn disabled" }

// respawn re-enters the game on the existing session token rather than
// logging in and joining again: the token survives a death, and repeating
// Login/Join here would permanently collide with the uid's still-active
// session once the player has ever joined once.
func (l *Loop) respawn() error {
	_, snap, serverNow, err := l.transport.Respawn(l.token)
	if err != nil {
		return nil
	}
	l.lastRound = snap.Round
	l.nextRoundTimestamp = snap.NextRoundTimestamp
	l.clock.Observe(time.Now(), time.Now(), serverNow)
	return nil
}

// decideSafely calls the decision function, falling back to cfg.DefaultMove
// on any panic (spec.md §4.7 step 5).
func (l *Loop) decideSafely(state State) (dir model.Direction) {
	defer func() {
		if r := recover(); r != nil {
			dir = l.cfg.DefaultMove
		}
	}()
	return l.decide(state)
}

// fetchState implements spec.md §4.7 step 2: a full map refresh when the
// round gap exceeds 1 or the delta fetch fails, otherwise a delta fetch.
func (l *Loop) fetchState() (State, time.Time, bool, error) {
	delta, ok, serverNow, err := l.transport.FetchDelta()
	if err == nil && ok && delta.Round-l.lastRound <= 1 {
		delta.Self = l.playerID
		return delta, serverNow, false, nil
	}
	full, serverNow, err := l.transport.FetchMap()
	if err != nil {
		return State{}, time.Time{}, false, err
	}
	full.Self = l.playerID
	return full, serverNow, true, nil
}

// waitUntilJustBeforeNextTick sleeps until SafetyMargin before the
// estimated next tick, per spec.md §4.7 step 1. Before any round has been
// observed, nextRoundTimestamp is zero and the computed wait is negative, so
// this just yields briefly.
func (l *Loop) waitUntilJustBeforeNextTick() {
	estimatedServerNowMs := l.clock.Now(time.Now()).UnixMilli()
	waitMs := l.nextRoundTimestamp - estimatedServerNowMs - SafetyMargin.Milliseconds()
	if waitMs <= 0 {
		time.Sleep(time.Millisecond)
		return
	}
	time.Sleep(time.Duration(waitMs) * time.Millisecond)
}
