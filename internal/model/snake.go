package model

// PlayerID identifies a player slot in the world. Stable across respawns.
type PlayerID string

// Identity is the immutable part of a player's presentation.
type Identity struct {
	ID          PlayerID `json:"id"`
	UID         string   `json:"-"`
	DisplayName string   `json:"name"`
	Color       string   `json:"color"`
}

// Snake is an ordered sequence of body cells: index 0 is the head, the last
// element is the tail. Facing is the direction the snake will move on the
// next tick. Length is an invariant equal to len(Body) except transiently
// mid-growth, where a pending grow has been recorded but not yet applied.
type Snake struct {
	Identity

	Body              []Point   `json:"blocks"`
	Facing            Direction `json:"-"`
	Length            int       `json:"length"`
	InvincibleRounds  int       `json:"invincible_rounds"`
	Alive             bool      `json:"-"`
	pendingGrow       bool
}

// NewSnake builds a snake of the given length, all cells duplicated at spawn
// so that later growth mechanics (pop-vs-no-pop on the tail) are uniform
// from the very first tick. Per spec.md §4.5, the head is the single sampled
// point and the remaining length-1 cells are duplicated at that point.
func NewSnake(id Identity, spawn Point, length int, invincibility int) *Snake {
	if length < 1 {
		length = 1
	}
	body := make([]Point, length)
	for i := range body {
		body[i] = spawn
	}
	return &Snake{
		Identity:         id,
		Body:             body,
		Facing:           None,
		Length:           length,
		InvincibleRounds: invincibility,
		Alive:            true,
	}
}

// Head returns the snake's head cell. Callers must ensure the body is
// non-empty; internal/store does not check it, and NormalizeBody (which can
// restore a lone head) is not called anywhere in this module.
func (s *Snake) Head() Point {
	return s.Body[0]
}

// Tail returns the snake's tail cell.
func (s *Snake) Tail() Point {
	return s.Body[len(s.Body)-1]
}

// Invincible reports whether the snake currently cannot die and is excluded
// as a collision obstacle.
func (s *Snake) Invincible() bool {
	return s.InvincibleRounds > 0
}

// QueueGrowth marks the snake to skip the next tail-pop, growing by one on
// the following move phase.
func (s *Snake) QueueGrowth() {
	s.pendingGrow = true
}

// ConsumeGrowth reports and clears the pending-grow flag.
func (s *Snake) ConsumeGrowth() bool {
	grow := s.pendingGrow
	s.pendingGrow = false
	return grow
}

// NormalizeBody restores a lone head if the block list was emptied by a
// malformed update, per spec.md §7 ("a lone head is restored if the block
// list is empty").
func (s *Snake) NormalizeBody() {
	if len(s.Body) == 0 {
		s.Body = []Point{{}}
		s.Length = 1
	}
}

// Simplified is the per-player delta-journal record carried in spec.md §4.2:
// {id, head, length, invincibility}.
type Simplified struct {
	ID               PlayerID `json:"id"`
	Head             Point    `json:"head"`
	Length           int      `json:"length"`
	InvincibleRounds int      `json:"invincible_rounds"`
}

// ToSimplified projects the snake into its delta-journal representation.
func (s *Snake) ToSimplified() Simplified {
	return Simplified{
		ID:               s.ID,
		Head:             s.Head(),
		Length:           s.Length,
		InvincibleRounds: s.InvincibleRounds,
	}
}

// FullRecord is the wire representation of a snake inside a full map
// snapshot or a joined_players entry, per spec.md §6.
type FullRecord struct {
	ID               PlayerID `json:"id"`
	Name             string   `json:"name"`
	Color            string   `json:"color"`
	Head             Point    `json:"head"`
	Blocks           []Point  `json:"blocks"`
	Length           int      `json:"length"`
	InvincibleRounds int      `json:"invincible_rounds"`
}

// ToFullRecord projects the snake into its full wire representation.
func (s *Snake) ToFullRecord() FullRecord {
	blocks := make([]Point, len(s.Body))
	copy(blocks, s.Body)
	return FullRecord{
		ID:               s.ID,
		Name:             s.DisplayName,
		Color:            s.Color,
		Head:             s.Head(),
		Blocks:           blocks,
		Length:           s.Length,
		InvincibleRounds: s.InvincibleRounds,
	}
}
