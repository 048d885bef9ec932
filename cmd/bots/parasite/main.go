// Command parasite runs a bot that shadows the longest rival snake one
// cell off its predicted head, keeping a preferred side to avoid
// oscillating between offsets round to round. Grounded on
// original_source/bot/src/strategies/ParasiteStrategy.cpp.
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

var (
	lastHostID      model.PlayerID
	preferredOffset = model.Point{X: 1, Y: 0}
)

func chooseHost(others []model.FullRecord) (model.FullRecord, bool) {
	if len(others) == 0 {
		return model.FullRecord{}, false
	}
	host := others[0]
	for _, s := range others {
		if s.Length > host.Length {
			host = s
		}
	}
	return host, true
}

func decide(state client.State) model.Direction {
	v := boardview.New(state)
	me, ok := v.Mine()
	if !ok {
		return model.Right
	}
	host, found := chooseHost(v.Others())
	if !found {
		return model.Right
	}

	if lastHostID != host.ID {
		preferredOffset = model.Point{X: 1, Y: 0}
		lastHostID = host.ID
	}

	dx, dy := boardview.InferMoveVector(host)
	predictedHead := host.Head.Add(dx, dy)
	if !v.IsValidPos(predictedHead) {
		predictedHead = host.Head
	}

	offsets := [4]model.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	sideTargets := make([]model.Point, 0, 4)
	sideTargets = append(sideTargets, predictedHead.Add(preferredOffset.X, preferredOffset.Y))
	for _, off := range offsets {
		if off == preferredOffset {
			continue
		}
		sideTargets = append(sideTargets, predictedHead.Add(off.X, off.Y))
	}

	best := predictedHead
	bestDist := -1
	bestOffset := preferredOffset
	for _, p := range sideTargets {
		offset := model.Point{X: p.X - predictedHead.X, Y: p.Y - predictedHead.Y}
		if !v.IsValidPos(p) || v.HasObstacle(p) {
			continue
		}
		d := me.Head.ManhattanDistance(p)
		if bestDist == -1 || d < bestDist {
			bestDist, best, bestOffset = d, p, offset
		}
	}
	if bestDist != -1 {
		preferredOffset = bestOffset
	} else {
		best = predictedHead
	}

	dir := v.ChooseDirectionToward(me.Head, best, true)
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
	uid := flag.String("uid", "parasite-bot", "login uid")
	name := flag.String("name", "Parasite", "display name")
	flag.Parse()

	transport := httptransport.New(*baseURL)
	loop := client.New(transport, decide, client.Config{
		UID:         *uid,
		Name:        *name,
		AutoRespawn: true,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		log.Fatalf("parasite bot stopped: %v", err)
	}
}
