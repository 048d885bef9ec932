// Command patroller runs a bot that walks a deterministic rectangular
// patrol route in a map quadrant picked by its own id and sized from the
// map dimensions, using a breadth-first search for the
// first step back onto the route when knocked off it. Grounded on
// original_source/bot/src/strategies/PatrollerStrategy.cpp.
package main

import (
	"context"
	"flag"
	"log"

	"snakearena/internal/client"
	"snakearena/internal/client/boardview"
	"snakearena/internal/client/httptransport"
	"snakearena/internal/model"
)

type patrolState struct {
	inited                     bool
	minX, maxX, minY, maxY, ix int
}

var patrol patrolState

func hashID(id model.PlayerID) uint64 {
	h := uint64(1469598103934665603)
	for _, c := range []byte(id) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func initPatrolIfNeeded(me model.FullRecord, width, height int) {
	if patrol.inited {
		return
	}
	if width < 20 {
		width = 20
	}
	if height < 20 {
		height = 20
	}
	h := hashID(me.ID)
	quadX, quadY := int(h&1), int((h>>1)&1)
	halfW, halfH := width/2, height/2

	x0, x1 := 0, halfW-1
	if quadX != 0 {
		x0, x1 = halfW, width-1
	}
	y0, y1 := 0, halfH-1
	if quadY != 0 {
		y0, y1 = halfH, height-1
	}

	const margin = 4
	patrol.minX = clamp(x0+margin, 0, width-1)
	patrol.maxX = clamp(x1-margin, 0, width-1)
	patrol.minY = clamp(y0+margin, 0, height-1)
	patrol.maxY = clamp(y1-margin, 0, height-1)
	if patrol.minX >= patrol.maxX {
		patrol.minX, patrol.maxX = clamp(x0, 0, width-1), clamp(x1, 0, width-1)
	}
	if patrol.minY >= patrol.maxY {
		patrol.minY, patrol.maxY = clamp(y0, 0, height-1), clamp(y1, 0, height-1)
	}
	patrol.ix = 0
	patrol.inited = true
}

func rectangleRoute() [4]model.Point {
	return [4]model.Point{
		{X: patrol.minX, Y: patrol.minY},
		{X: patrol.maxX, Y: patrol.minY},
		{X: patrol.maxX, Y: patrol.maxY},
		{X: patrol.minX, Y: patrol.maxY},
	}
}

// bfsFirstStep returns the first move of a shortest path from start to
// target that avoids snake bodies, or model.Right if none is found.
func bfsFirstStep(v *boardview.View, start, target model.Point, width, height int) model.Direction {
	if start == target {
		return model.Right
	}
	if width <= 0 || height <= 0 {
		return model.Right
	}

	idx := func(p model.Point) int { return p.Y*width + p.X }
	prev := make([]int, width*height)
	for i := range prev {
		prev[i] = -1
	}
	queue := []model.Point{start}
	prev[idx(start)] = idx(start)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dir := range model.AllDirections {
			next := boardview.NextPoint(cur, dir)
			if !v.IsValidPos(next) {
				continue
			}
			if next != target && v.HasObstacle(next) {
				continue
			}
			nid := idx(next)
			if prev[nid] != -1 {
				continue
			}
			prev[nid] = idx(cur)
			if next == target {
				return firstStepDirection(prev, idx(start), nid, width)
			}
			queue = append(queue, next)
		}
	}
	return model.Right
}

func firstStepDirection(prev []int, startID, targetID, width int) model.Direction {
	cur := targetID
	parent := prev[cur]
	for parent != startID {
		cur = parent
		parent = prev[cur]
		if parent == -1 {
			return model.Right
		}
	}
	stepX, stepY := cur%width, cur/width
	startX, startY := startID%width, startID/width
	switch {
	case stepX == startX && stepY == startY-1:
		return model.Up
	case stepX == startX && stepY == startY+1:
		return model.Down
	case stepX == startX-1 && stepY == startY:
		return model.Left
	case stepX == startX+1 && stepY == startY:
		return model.Right
	default:
		return model.Right
	}
}

func decide(state client.State) model.Direction {
	v := boardview.New(state)
	me, ok := v.Mine()
	if !ok {
		return model.Right
	}
	initPatrolIfNeeded(me, state.Width, state.Height)

	route := rectangleRoute()
	target := route[patrol.ix]
	if me.Head == target {
		patrol.ix = (patrol.ix + 1) % len(route)
		target = route[patrol.ix]
	}

	dir := bfsFirstStep(v, me.Head, target, state.Width, state.Height)
	if !v.IsSafeDirection(me.Head, dir) {
		dir = v.ChooseDirectionToward(me.Head, target, true)
	}
	if v.IsSafeDirection(me.Head, dir) {
		return dir
	}
	for _, candidate := range model.AllDirections {
		if v.IsSafeDirection(me.Head, candidate) {
			return candidate
		}
	}
	return model.Right
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "snake arena server base URL")
	uid := flag.String("uid", "patroller-bot", "login uid")
	name := flag.String("name", "Patroller", "display name")
	flag.Parse()

	transport := httptransport.New(*baseURL)
	loop := client.New(transport, decide, client.Config{
		UID:         *uid,
		Name:        *name,
		AutoRespawn: true,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		log.Fatalf("patroller bot stopped: %v", err)
	}
}
