package session

import (
	"context"
	"testing"

	"snakearena/internal/model"
	"snakearena/internal/store"
	"snakearena/logging"
	"snakearena/logging/lifecycle"
)

type recordingPublisher struct {
	events []logging.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event logging.Event) {
	p.events = append(p.events, event)
}

type fakeEngine struct {
	calls int
}

func (f *fakeEngine) AddPlayer(id model.PlayerID) (model.FullRecord, model.Direction) {
	f.calls++
	return model.FullRecord{ID: id}, model.Right
}

func newTestRegistry(t *testing.T) (*Registry, *store.Store, *fakeEngine) {
	t.Helper()
	st := store.New(20, 20)
	eng := &fakeEngine{}
	return New(st, eng, nil, nil), st, eng
}

func TestLoginRejectsEmptyUID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if _, err := r.Login("", "paste"); err == nil {
		t.Fatalf("want error for empty uid")
	}
}

func TestJoinAllocatesTokenAndPlacesPlayer(t *testing.T) {
	r, _, eng := newTestRegistry(t)
	key, err := r.Login("uidA", "some-paste")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	result, err := r.Join(key, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("want non-empty token")
	}
	if eng.calls != 1 {
		t.Fatalf("want engine.AddPlayer called once, got %d", eng.calls)
	}

	if _, ok := r.PlayerForToken(result.Token); !ok {
		t.Fatalf("want token to resolve to the joined player")
	}
}

func TestJoinRejectsSecondActiveSessionForSameUID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	key1, _ := r.Login("uidA", "paste")
	if _, err := r.Join(key1, "Alice", ""); err != nil {
		t.Fatalf("first join: %v", err)
	}

	key2, _ := r.Login("uidA", "paste")
	if _, err := r.Join(key2, "Alice-2", ""); err == nil {
		t.Fatalf("want Conflict for second active session on same uid")
	}
}

func TestJoinRejectsUnknownLoginKey(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if _, err := r.Join("not-a-real-key", "Alice", ""); err == nil {
		t.Fatalf("want Unauthorized for unknown key")
	}
}

func TestJoinPublishesPlayerJoinedEvent(t *testing.T) {
	st := store.New(20, 20)
	eng := &fakeEngine{}
	pub := &recordingPublisher{}
	r := New(st, eng, nil, pub)

	key, _ := r.Login("uidA", "paste")
	if _, err := r.Join(key, "Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("want one published event, got %d", len(pub.events))
	}
	if pub.events[0].Type != lifecycle.EventPlayerJoined {
		t.Fatalf("want %q, got %q", lifecycle.EventPlayerJoined, pub.events[0].Type)
	}
}

func TestRespawnReentersAfterDeathWithoutTouchingActiveUID(t *testing.T) {
	r, st, eng := newTestRegistry(t)
	key, _ := r.Login("uidA", "paste")
	result, err := r.Join(key, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	st.Lock()
	st.World().Players[result.PlayerID].InGame = false
	st.Unlock()

	again, err := r.Respawn(result.Token)
	if err != nil {
		t.Fatalf("respawn: %v", err)
	}
	if again.PlayerID != result.PlayerID {
		t.Fatalf("want the same playerID across respawn, got %q vs %q", again.PlayerID, result.PlayerID)
	}
	if eng.calls != 2 {
		t.Fatalf("want engine.AddPlayer called twice (join + respawn), got %d", eng.calls)
	}
}

func TestJoinAssignsColorFromPaletteWhenOmitted(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	key, _ := r.Login("uidA", "paste")
	result, err := r.Join(key, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	st.Lock()
	p := st.World().Players[result.PlayerID]
	st.Unlock()
	if p.Color == "" {
		t.Fatalf("want a palette color assigned")
	}
}
