// Command interceptor runs a bot that locks onto the longest rival snake,
// predicts its position a few ticks ahead from its last heading, and
// steers toward that point. Grounded on original_source/bot/src/strategies/
// InterceptorStrategy.cpp.
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

// predictAheadTicks matches the four-tick lookahead of the original
// InterceptorStrategy.
const predictAheadTicks = 4

func decide(state client.State) model.Direction {
	v := boardview.New(state)
	me, ok := v.Mine()
	if !ok {
		return model.Right
	}
	others := v.Others()
	if len(others) == 0 {
		return model.Right
	}

	target := others[0]
	for _, s := range others {
		if s.Length > target.Length {
			target = s
		}
	}

	dx, dy := boardview.InferMoveVector(target)
	predicted := target.Head.Add(dx*predictAheadTicks, dy*predictAheadTicks)

	bestSafe := model.Right
	bestSafeDist := -1
	for _, dir := range model.AllDirections {
		if !v.IsSafeDirection(me.Head, dir) {
			continue
		}
		next := boardview.NextPoint(me.Head, dir)
		dist := next.ManhattanDistance(predicted)
		if bestSafeDist == -1 || dist < bestSafeDist {
			bestSafeDist = dist
			bestSafe = dir
		}
	}
	if bestSafeDist != -1 {
		return bestSafe
	}

	return v.ChooseDirectionToward(me.Head, predicted, false)
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "snake arena server base URL")
	uid := flag.String("uid", "interceptor-bot", "login uid")
	name := flag.String("name", "Interceptor", "display name")
	flag.Parse()

	transport := httptransport.New(*baseURL)
	loop := client.New(transport, decide, client.Config{
		UID:         *uid,
		Name:        *name,
		AutoRespawn: true,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		log.Fatalf("interceptor bot stopped: %v", err)
	}
}
