// Package intake implements the command buffer: the double-buffered,
// per-player move intake described in spec.md §4.3. This is, per the
// teacher's DESIGN NOTES, "the non-obvious correctness primitive" — a
// single swap at the start of each tick, no per-player locks, no lazy swap.
package intake

import (
	"sync"

	"snakearena/internal/model"
)

// ErrDuplicateCommand is returned by Submit when current already holds a
// command for the player this round (spec.md §4.3, invariant 4).
var ErrDuplicateCommand = errDuplicateCommand{}

type errDuplicateCommand struct{}

func (errDuplicateCommand) Error() string { return "duplicate command for this round" }

// CommandBuffer holds two maps, current and pending, swapped at the start of
// each tick. Submit only enforces the one-command-per-round invariant;
// direction-reversal rejection is deferred to the tick engine so that
// reading from the buffer has no dependency on current snake state
// (spec.md §4.3).
type CommandBuffer struct {
	mu      sync.Mutex
	current map[model.PlayerID]model.Direction
	pending map[model.PlayerID]model.Direction
}

// New returns an empty command buffer.
func New() *CommandBuffer {
	return &CommandBuffer{
		current: make(map[model.PlayerID]model.Direction),
		pending: make(map[model.PlayerID]model.Direction),
	}
}

// Submit stages a direction for playerID in the current round. It fails with
// ErrDuplicateCommand if a command was already submitted this round.
func (b *CommandBuffer) Submit(playerID model.PlayerID, dir model.Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.current[playerID]; ok {
		return ErrDuplicateCommand
	}
	b.current[playerID] = dir
	return nil
}

// Swap moves current into pending and clears current. This is step 1 of the
// tick pipeline (spec.md §4.1) and must be the very first thing a tick does,
// per the lock-ordering rule in spec.md §5 (command-buffer lock before
// state lock).
func (b *CommandBuffer) Swap() map[model.PlayerID]model.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = b.current
	b.current = make(map[model.PlayerID]model.Direction, len(b.pending))
	return b.pending
}

// Pending returns the commands staged by the most recent Swap, without
// mutating state. The tick engine does not call it: it applies the map that
// Swap returns.
func (b *CommandBuffer) Pending() map[model.PlayerID]model.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}
