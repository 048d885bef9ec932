// Package session implements the identity → player and token → player
// indices of spec.md §4.4: Login, Join, and Respawn mirror the teacher's
// Hub.Join/Subscribe/Disconnect lifecycle (hub.go), generalized from
// WebSocket subscriber handles to opaque bearer tokens suited to stateless
// HTTP polling.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"sync"
	"sync/atomic"

	"snakearena/internal/apperr"
	"snakearena/internal/model"
	"snakearena/logging"
	"snakearena/logging/lifecycle"
)

// IdentityVerifier checks a uid/paste pair before a login key is minted.
// spec.md §4.4 treats identity verification as an external collaborator;
// the default implementation below accepts anything non-empty.
type IdentityVerifier interface {
	Verify(uid, paste string) bool
}

// PermissiveVerifier accepts any non-empty paste, per SPEC_FULL.md §6.
type PermissiveVerifier struct{}

func (PermissiveVerifier) Verify(uid, paste string) bool {
	return uid != "" && paste != ""
}

// Engine is the subset of *engine.Engine the registry needs to materialize
// a joined or respawned player's snake.
type Engine interface {
	AddPlayer(id model.PlayerID) (model.FullRecord, model.Direction)
}

// Store is the subset of *store.Store the registry needs to insert a bare
// Player entry before handing it to the engine.
type Store interface {
	Lock()
	Unlock()
	World() *model.World
}

var colorPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Registry holds the two unique indices named in spec.md §4.4: loginKey →
// uid, and sessionToken → playerId. uid → active session is tracked too, to
// enforce invariant 6 ("a given uid has at most one active session").
type Registry struct {
	mu sync.Mutex

	verifier IdentityVerifier
	store    Store
	engine   Engine
	events   logging.Publisher

	nextPlayerNum atomic.Uint64

	loginKeys     map[string]string             // loginKey -> uid
	activeUID     map[string]model.PlayerID      // uid -> playerId (enforces invariant 6)
	tokens        map[string]model.PlayerID      // sessionToken -> playerId
	colorForUID   map[string]string
}

// New constructs a registry backed by store and engine. verifier may be nil,
// in which case PermissiveVerifier is used. events may be nil, in which case
// join events are dropped rather than published.
func New(store Store, engine Engine, verifier IdentityVerifier, events logging.Publisher) *Registry {
	if verifier == nil {
		verifier = PermissiveVerifier{}
	}
	if events == nil {
		events = logging.NopPublisher()
	}
	return &Registry{
		verifier:    verifier,
		store:       store,
		engine:      engine,
		events:      events,
		loginKeys:   make(map[string]string),
		activeUID:   make(map[string]model.PlayerID),
		tokens:      make(map[string]model.PlayerID),
		colorForUID: make(map[string]string),
	}
}

// Login verifies uid/paste via the identity collaborator and, on success,
// mints and returns a fresh opaque login key.
func (r *Registry) Login(uid, paste string) (string, error) {
	if uid == "" {
		return "", apperr.InvalidRequest("uid is required")
	}
	if !r.verifier.Verify(uid, paste) {
		return "", apperr.Unauthorized("identity verification failed")
	}
	key := randomToken()

	r.mu.Lock()
	r.loginKeys[key] = uid
	r.mu.Unlock()
	return key, nil
}

// JoinResult is returned by Join and Respawn.
type JoinResult struct {
	Token           string
	PlayerID        model.PlayerID
	InitialDirection model.Direction
}

// Join resolves a login key to a uid, enforces the one-active-session
// invariant, allocates a playerId and session token, and asks the engine to
// place a new snake for the player (spec.md §4.4).
func (r *Registry) Join(key, name, color string) (JoinResult, error) {
	r.mu.Lock()
	uid, ok := r.loginKeys[key]
	if !ok {
		r.mu.Unlock()
		return JoinResult{}, apperr.Unauthorized("unknown login key")
	}
	if _, active := r.activeUID[uid]; active {
		r.mu.Unlock()
		return JoinResult{}, apperr.Conflict("uid already has an active session")
	}
	delete(r.loginKeys, key)

	playerID := r.allocatePlayerID()
	token := randomToken()
	if color == "" {
		color = r.assignColorLocked(uid)
	} else {
		r.colorForUID[uid] = color
	}
	if name == "" {
		name = string(playerID)
	}

	r.activeUID[uid] = playerID
	r.tokens[token] = playerID
	r.mu.Unlock()

	r.insertPlayer(playerID, uid, name, color)
	rec, facing := r.engine.AddPlayer(playerID)

	lifecycle.PlayerJoined(context.Background(), r.events, r.currentRound(),
		logging.EntityRef{ID: string(playerID), Kind: logging.EntityKindPlayer},
		lifecycle.PlayerJoinedPayload{Spawn: rec.Head}, nil)

	return JoinResult{Token: token, PlayerID: playerID, InitialDirection: facing}, nil
}

// Respawn is Join's inner half (spec.md §4.4): same identity, a fresh safe
// spawn point, invincibility reset. The caller must already hold a valid
// session token for playerID.
func (r *Registry) Respawn(token string) (JoinResult, error) {
	r.mu.Lock()
	playerID, ok := r.tokens[token]
	r.mu.Unlock()
	if !ok {
		return JoinResult{}, apperr.Unauthorized("unknown session token")
	}

	r.store.Lock()
	p, exists := r.store.World().Players[playerID]
	r.store.Unlock()
	if !exists {
		return JoinResult{}, apperr.NotFound("player record missing")
	}
	if p.InGame {
		return JoinResult{}, apperr.Conflict("player already in game")
	}

	rec, facing := r.engine.AddPlayer(playerID)

	lifecycle.PlayerJoined(context.Background(), r.events, r.currentRound(),
		logging.EntityRef{ID: string(playerID), Kind: logging.EntityKindPlayer},
		lifecycle.PlayerJoinedPayload{Spawn: rec.Head}, nil)

	return JoinResult{Token: token, PlayerID: playerID, InitialDirection: facing}, nil
}

// PlayerForToken resolves a session token to a playerId.
func (r *Registry) PlayerForToken(token string) (model.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.tokens[token]
	return id, ok
}

func (r *Registry) currentRound() uint64 {
	r.store.Lock()
	defer r.store.Unlock()
	return r.store.World().Round
}

func (r *Registry) allocatePlayerID() model.PlayerID {
	n := r.nextPlayerNum.Add(1)
	return model.PlayerID(fmt.Sprintf("player-%d", n))
}

func (r *Registry) assignColorLocked(uid string) string {
	if c, ok := r.colorForUID[uid]; ok {
		return c
	}
	c := colorPalette[len(r.colorForUID)%len(colorPalette)]
	r.colorForUID[uid] = c
	return c
}

func (r *Registry) insertPlayer(id model.PlayerID, uid, name, color string) {
	r.store.Lock()
	defer r.store.Unlock()
	r.store.World().Players[id] = &model.Player{ID: id, UID: uid, Name: name, Color: color}
}

func randomToken() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is a process-level emergency; a zero-valued
		// token is still unique per call site in practice, but surface the
		// failure loudly rather than silently degrading security.
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}
