package network

import (
	"context"

	"snakearena/logging"
)

const (
	// EventRoundAdvanced is emitted when a polling client observes the round
	// counter move forward by at most one, the steady-state case where a
	// delta fetch suffices.
	EventRoundAdvanced logging.EventType = "network.round_advanced"
	// EventRoundGapDetected is emitted when a polling client observes a round
	// gap greater than one (or a failed delta fetch) and must fall back to a
	// full map refresh instead of applying a delta.
	EventRoundGapDetected logging.EventType = "network.round_gap_detected"
)

// RoundPayload captures the round transition a client observed.
type RoundPayload struct {
	Previous uint64 `json:"previous"`
	Observed uint64 `json:"observed"`
}

// RoundAdvanced publishes a debug event when a client's observed round moves
// forward by at most one and the delta was applied.
func RoundAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoundPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRoundAdvanced,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// RoundGapDetected publishes a warning event when a client must fall back to
// a full map refresh because it missed one or more rounds.
func RoundGapDetected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoundPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRoundGapDetected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
