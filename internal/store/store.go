// Package store holds the authoritative world behind a single state lock,
// exposing atomic snapshot and delta reads for the request surface, and
// lock/unlock primitives the tick engine uses to bound each pipeline phase.
// Grounded on hub.go's Hub (mu sync.Mutex, snapshotLocked pattern).
package store

import (
	"sort"
	"sync"
	"time"

	"snakearena/internal/journal"
	"snakearena/internal/model"
)

// Store owns the world and its delta journal behind the state lock
// described in spec.md §5.
type Store struct {
	mu      sync.Mutex
	world   *model.World
	journal *journal.Journal
}

// New constructs a store with an empty world of the given dimensions.
func New(width, height int) *Store {
	return &Store{
		world:   model.NewWorld(width, height),
		journal: journal.New(),
	}
}

// Lock and Unlock guard the world and journal. The tick engine holds the
// lock for a whole tick (phases 2 through 10), so request handlers only
// ever read the state between ticks (spec.md §4.1 preamble).
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// World returns the live world pointer. Callers must hold the lock.
func (s *Store) World() *model.World { return s.world }

// Journal returns the live journal pointer. Callers must hold the lock.
func (s *Store) Journal() *journal.Journal { return s.journal }

// MapState is the full snapshot payload served by GET /api/game/map and
// embedded in the join response (spec.md §6).
type MapState struct {
	Round                uint64              `json:"round"`
	NextRoundTimestampMs int64               `json:"next_round_timestamp"`
	TimestampMs          int64               `json:"timestamp"`
	Players              []model.FullRecord  `json:"players"`
	Foods                []model.Point       `json:"foods"`
}

// Snapshot returns an internally-consistent full map state: every listed
// player's body cells sum to the occupancy index, and foods never intersect
// a body (spec.md §4.2 invariant).
func (s *Store) Snapshot() MapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() MapState {
	ids := make([]model.PlayerID, 0, len(s.world.Players))
	for id, p := range s.world.Players {
		if p.InGame && p.Snake != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	players := make([]model.FullRecord, 0, len(ids))
	for _, id := range ids {
		players = append(players, s.world.Players[id].Snake.ToFullRecord())
	}

	return MapState{
		Round:                s.world.Round,
		NextRoundTimestampMs: s.world.NextRoundTimestampMs,
		TimestampMs:          nowMs(),
		Players:              players,
		Foods:                s.world.Foods.List(),
	}
}

// Delta returns the most recently published round delta, stamped with the
// current wall-clock time, and whether one exists yet (spec.md §4.2).
func (s *Store) Delta() (journal.Delta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.journal.Last()
	if ok {
		d.TimestampMs = nowMs()
	}
	return d, ok
}

// PlayerInGame reports whether playerID currently controls a living,
// in-game snake.
func (s *Store) PlayerInGame(id model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.world.Players[id]
	return ok && p.InGame
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
