// Command glutton runs a bot that chases whichever food cell scores highest
// by a mix of how close it is and how contested it looks, with almost no
// collision avoidance. Grounded on original_source/bot/src/strategies/
// GluttonStrategy.cpp.
package main

import (
	"context"
	"flag"
	"log"
	"math"

	"snakearena/internal/client"
	"snakearena/internal/client/boardview"
	"snakearena/internal/client/httptransport"
	"snakearena/internal/model"
)

func decide(state client.State) model.Direction {
	v := boardview.New(state)
	me, ok := v.Mine()
	if !ok || len(v.Foods()) == 0 {
		return model.Right
	}

	best := v.Foods()[0]
	bestScore := math.MinInt
	bestMyDist := math.MaxInt

	others := v.Others()
	for _, food := range v.Foods() {
		myDist := me.Head.ManhattanDistance(food)
		otherMinDist := math.MaxInt
		for _, other := range others {
			d := estimateOneStepDist(v, other, food)
			if d < otherMinDist {
				otherMinDist = d
			}
		}
		if otherMinDist == math.MaxInt {
			otherMinDist = 200
		}

		score := -myDist
		if myDist < otherMinDist {
			score += 100
		}
		score += 100 - otherMinDist

		toward := v.ChooseDirectionToward(me.Head, food, false)
		if !v.IsSafeDirection(me.Head, toward) {
			score -= 25
		}

		if score > bestScore || (score == bestScore && myDist < bestMyDist) {
			bestScore, bestMyDist, best = score, myDist, food
		}
	}

	return v.ChooseDirectionToward(me.Head, best, false)
}

// estimateOneStepDist looks one step ahead along a snake's inferred
// heading, falling back to its current distance if that step is illegal.
func estimateOneStepDist(v *boardview.View, snake model.FullRecord, target model.Point) int {
	nowDist := snake.Head.ManhattanDistance(target)
	dx, dy := boardview.InferMoveVector(snake)
	next := snake.Head.Add(dx, dy)
	if !v.IsValidPos(next) || v.HasObstacle(next) {
		return nowDist
	}
	if nextDist := next.ManhattanDistance(target); nextDist < nowDist {
		return nextDist
	}
	return nowDist
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "snake arena server base URL")
	uid := flag.String("uid", "glutton-bot", "login uid")
	name := flag.String("name", "Glutton", "display name")
	flag.Parse()

	transport := httptransport.New(*baseURL)
	loop := client.New(transport, decide, client.Config{
		UID:         *uid,
		Name:        *name,
		AutoRespawn: true,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		log.Fatalf("glutton bot stopped: %v", err)
	}
}
