// Package lifecycle carries the join/leave events of a player's time in the
// world: a join at the spawn cell engine.AddPlayer picked, and a leave when
// the snake dies (this server has no explicit logout, so death is the only
// way a player's session ends mid-round).
package lifecycle

import (
	"context"

	"snakearena/internal/model"
	"snakearena/logging"
)

const (
	// EventPlayerJoined is emitted when a player joins the world.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
)

// PlayerJoinedPayload captures the grid cell a new player spawned at.
type PlayerJoinedPayload struct {
	Spawn model.Point `json:"spawn"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
