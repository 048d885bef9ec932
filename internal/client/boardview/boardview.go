// Package boardview provides the small set of geometry helpers every sample
// strategy in cmd/bots shares: bounds checking, obstacle lookup, and
// greedy direction choice.
package boardview

import (
	"snakearena/internal/client"
	"snakearena/internal/model"
)

// View wraps a client.State with an obstacle index built once per round.
type View struct {
	state     client.State
	obstacles map[model.Point]struct{}
}

// New indexes every snake body cell in state as an obstacle.
func New(state client.State) *View {
	obstacles := make(map[model.Point]struct{})
	for _, p := range state.Players {
		for _, b := range p.Blocks {
			obstacles[b] = struct{}{}
		}
	}
	return &View{state: state, obstacles: obstacles}
}

// IsValidPos reports whether p lies within the board bounds.
func (v *View) IsValidPos(p model.Point) bool {
	return p.X >= 0 && p.X < v.state.Width && p.Y >= 0 && p.Y < v.state.Height
}

// HasObstacle reports whether p is occupied by any snake body cell.
func (v *View) HasObstacle(p model.Point) bool {
	_, occupied := v.obstacles[p]
	return occupied
}

// NextPoint returns the cell one step from p in dir.
func NextPoint(p model.Point, dir model.Direction) model.Point {
	dx, dy := dir.Unit()
	return p.Add(dx, dy)
}

// IsSafeDirection reports whether stepping from head in dir lands in bounds
// on a cell with no snake body.
func (v *View) IsSafeDirection(head model.Point, dir model.Direction) bool {
	next := NextPoint(head, dir)
	return v.IsValidPos(next) && !v.HasObstacle(next)
}

// ChooseDirectionToward greedily picks the direction from "from" whose
// resulting cell is closest to target, optionally restricted to safe moves.
func (v *View) ChooseDirectionToward(from, target model.Point, safeOnly bool) model.Direction {
	best := model.Right
	bestDist := -1
	for _, dir := range model.AllDirections {
		next := NextPoint(from, dir)
		if !v.IsValidPos(next) {
			continue
		}
		if safeOnly && v.HasObstacle(next) {
			continue
		}
		dist := next.ManhattanDistance(target)
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = dir
		}
	}
	return best
}

// Mine returns the caller's own record from the state's player list.
func (v *View) Mine() (model.FullRecord, bool) {
	for _, p := range v.state.Players {
		if p.ID == v.state.Self {
			return p, true
		}
	}
	return model.FullRecord{}, false
}

// Others returns every player record other than the caller's own.
func (v *View) Others() []model.FullRecord {
	out := make([]model.FullRecord, 0, len(v.state.Players))
	for _, p := range v.state.Players {
		if p.ID != v.state.Self {
			out = append(out, p)
		}
	}
	return out
}

// Foods returns the food cells visible in the round's state.
func (v *View) Foods() []model.Point {
	return v.state.Foods
}

// InferMoveVector infers a snake's last-move unit vector from its first two
// body cells; the zero vector if the snake has fewer than two.
func InferMoveVector(rec model.FullRecord) (int, int) {
	if len(rec.Blocks) < 2 {
		return 0, 0
	}
	head, neck := rec.Blocks[0], rec.Blocks[1]
	return head.X - neck.X, head.Y - neck.Y
}
