// Package journal carries the per-round delta the tick engine publishes and
// the request surface serves from GET /api/game/map/delta. Grounded on the
// teacher's internal/journal patch log, generalized from typed per-entity
// patches down to the handful of record kinds spec.md §3/§4.2 defines for a
// snake world: joins, deaths, per-player updates, and food churn.
package journal

import "snakearena/internal/model"

// Delta is the simplified per-round change record. A reader that observes a
// round gap greater than 1 cannot safely apply a Delta and must fall back to
// a full snapshot (spec.md §4.2).
type Delta struct {
	Round                uint64             `json:"round"`
	TimestampMs          int64              `json:"timestamp"`
	NextRoundTimestampMs int64              `json:"next_round_timestamp"`
	JoinedPlayers        []model.FullRecord `json:"joined_players"`
	DiedPlayers          []model.PlayerID   `json:"died_players"`
	Players              []model.Simplified `json:"players"`
	AddedFoods           []model.Point      `json:"added_foods"`
	RemovedFoods         []model.Point      `json:"removed_foods"`
}

// Journal accumulates a Delta for the round currently in progress and holds
// the most recently completed Delta for readers. It is not safe for
// concurrent use on its own; internal/store guards it with the state lock.
type Journal struct {
	building Delta
	last     Delta
	hasLast  bool
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Reset clears the in-progress delta at the start of a tick (spec.md §4.1
// step 2). Joins recorded since the last Publish (players added between
// ticks) are kept so they appear in the delta this tick publishes.
func (j *Journal) Reset() {
	j.building = Delta{JoinedPlayers: j.building.JoinedPlayers}
}

// RecordJoin appends a full snake record for a player that joined or
// respawned this round.
func (j *Journal) RecordJoin(rec model.FullRecord) {
	j.building.JoinedPlayers = append(j.building.JoinedPlayers, rec)
}

// RecordDeath appends a player id that died this round.
func (j *Journal) RecordDeath(id model.PlayerID) {
	j.building.DiedPlayers = append(j.building.DiedPlayers, id)
}

// RecordUpdate appends a simplified per-player update, typically emitted
// once per living snake during the move phase (spec.md §4.1 step 5).
func (j *Journal) RecordUpdate(rec model.Simplified) {
	j.building.Players = append(j.building.Players, rec)
}

// RecordFoodAdded appends a point that gained a food this round.
func (j *Journal) RecordFoodAdded(p model.Point) {
	j.building.AddedFoods = append(j.building.AddedFoods, p)
}

// RecordFoodRemoved appends a point that lost a food this round.
func (j *Journal) RecordFoodRemoved(p model.Point) {
	j.building.RemovedFoods = append(j.building.RemovedFoods, p)
}

// Publish finalizes the in-progress delta as the most recently completed
// round (spec.md §4.1 step 10) and returns it. The in-progress delta starts
// empty again, so later joins accumulate toward the next round.
func (j *Journal) Publish(round uint64, timestampMs, nextRoundTimestampMs int64) Delta {
	j.building.Round = round
	j.building.TimestampMs = timestampMs
	j.building.NextRoundTimestampMs = nextRoundTimestampMs
	j.last = j.building
	j.hasLast = true
	j.building = Delta{}
	return j.last
}

// Last returns the most recently published delta and whether one exists yet.
func (j *Journal) Last() (Delta, bool) {
	return j.last, j.hasLast
}
