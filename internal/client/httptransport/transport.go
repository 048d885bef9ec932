// Package httptransport implements client.Transport over plain net/http:
// no HTTP client library appears anywhere in the retrieved examples, so
// this talks JSON directly against the routes in internal/httpapi.
package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"snakearena/internal/client"
	"snakearena/internal/model"
)

// Transport is a net/http-backed client.Transport against one server base
// URL. It keeps a local full-player cache so a delta response (which only
// carries simplified, changed, and removed records) can be merged into the
// same client.State shape a full map fetch returns.
type Transport struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	width   int
	height  int
	sized   bool
	self    model.PlayerID
	players map[model.PlayerID]model.FullRecord
	foods   map[model.Point]struct{}
}

// New builds a Transport. baseURL has no trailing slash, e.g.
// "http://localhost:8080".
func New(baseURL string) *Transport {
	return &Transport{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		players: make(map[model.PlayerID]model.FullRecord),
		foods:   make(map[model.Point]struct{}),
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (t *Transport) call(method, path string, body any, out any) (time.Time, error) {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return time.Time{}, err
		}
	}
	req, err := http.NewRequest(method, t.baseURL+path, &reqBody)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	sentAt := time.Now()
	if serverDate := resp.Header.Get("Date"); serverDate != "" {
		if parsed, parseErr := http.ParseTime(serverDate); parseErr == nil {
			sentAt = parsed
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return sentAt, err
	}
	if env.Code != 0 {
		return sentAt, fmt.Errorf("server error %d: %s", env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return sentAt, err
		}
	}
	return sentAt, nil
}

func (t *Transport) ensureMapSize() error {
	t.mu.Lock()
	sized := t.sized
	t.mu.Unlock()
	if sized {
		return nil
	}
	var status struct {
		MapSize struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"map_size"`
	}
	if _, err := t.call(http.MethodGet, "/api/status", nil, &status); err != nil {
		return err
	}
	t.mu.Lock()
	t.width, t.height, t.sized = status.MapSize.Width, status.MapSize.Height, true
	t.mu.Unlock()
	return nil
}

func (t *Transport) Login(uid, paste string) (string, time.Time, error) {
	var data struct {
		Key string `json:"key"`
	}
	now, err := t.call(http.MethodPost, "/api/game/login", map[string]string{"uid": uid, "paste": paste}, &data)
	return data.Key, now, err
}

func (t *Transport) Join(key, name, color string) (string, model.PlayerID, model.Direction, client.State, time.Time, error) {
	var data struct {
		Token            string         `json:"token"`
		ID               model.PlayerID `json:"id"`
		InitialDirection model.Direction `json:"initial_direction"`
		MapState         wireMapState   `json:"map_state"`
	}
	now, err := t.call(http.MethodPost, "/api/game/join", map[string]string{"key": key, "name": name, "color": color}, &data)
	if err != nil {
		return "", "", "", client.State{}, now, err
	}
	if err := t.ensureMapSize(); err != nil {
		return "", "", "", client.State{}, now, err
	}
	state := t.resetFromFull(data.MapState, data.ID)
	return data.Token, data.ID, data.InitialDirection, state, now, nil
}

func (t *Transport) Respawn(token string) (model.Direction, client.State, time.Time, error) {
	var data struct {
		ID               model.PlayerID `json:"id"`
		InitialDirection model.Direction `json:"initial_direction"`
		MapState         wireMapState   `json:"map_state"`
	}
	now, err := t.call(http.MethodPost, "/api/game/respawn", map[string]string{"token": token}, &data)
	if err != nil {
		return "", client.State{}, now, err
	}
	if err := t.ensureMapSize(); err != nil {
		return "", client.State{}, now, err
	}
	state := t.resetFromFull(data.MapState, data.ID)
	return data.InitialDirection, state, now, nil
}

func (t *Transport) FetchMap() (client.State, time.Time, error) {
	if err := t.ensureMapSize(); err != nil {
		return client.State{}, time.Time{}, err
	}
	var data wireMapState
	now, err := t.call(http.MethodGet, "/api/game/map", nil, &data)
	if err != nil {
		return client.State{}, now, err
	}
	t.mu.Lock()
	self := t.self
	t.mu.Unlock()
	return t.resetFromFull(data, self), now, nil
}

func (t *Transport) FetchDelta() (client.State, bool, time.Time, error) {
	if err := t.ensureMapSize(); err != nil {
		return client.State{}, false, time.Time{}, err
	}
	var data wireDelta
	now, err := t.call(http.MethodGet, "/api/game/map/delta", nil, &data)
	if err != nil {
		return client.State{}, false, now, err
	}
	return t.applyDelta(data), true, now, nil
}

func (t *Transport) Move(token string, dir model.Direction) error {
	_, err := t.call(http.MethodPost, "/api/game/move", map[string]string{"token": token, "direction": string(dir)}, nil)
	return err
}

type wireMapState struct {
	Round                uint64             `json:"round"`
	NextRoundTimestampMs int64              `json:"next_round_timestamp"`
	Players              []model.FullRecord `json:"players"`
	Foods                []model.Point      `json:"foods"`
}

type wireDelta struct {
	Round                uint64             `json:"round"`
	NextRoundTimestampMs int64              `json:"next_round_timestamp"`
	JoinedPlayers        []model.FullRecord `json:"joined_players"`
	DiedPlayers          []model.PlayerID   `json:"died_players"`
	Players              []model.Simplified `json:"players"`
	AddedFoods           []model.Point      `json:"added_foods"`
	RemovedFoods         []model.Point      `json:"removed_foods"`
}

func (t *Transport) resetFromFull(w wireMapState, self model.PlayerID) client.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self = self
	t.players = make(map[model.PlayerID]model.FullRecord, len(w.Players))
	for _, p := range w.Players {
		t.players[p.ID] = p
	}
	t.foods = make(map[model.Point]struct{}, len(w.Foods))
	for _, f := range w.Foods {
		t.foods[f] = struct{}{}
	}
	return t.snapshotLocked(w.Round, w.NextRoundTimestampMs)
}

func (t *Transport) applyDelta(d wireDelta) client.State {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, joined := range d.JoinedPlayers {
		t.players[joined.ID] = joined
	}
	for _, died := range d.DiedPlayers {
		delete(t.players, died)
	}
	for _, simplified := range d.Players {
		rec, ok := t.players[simplified.ID]
		if !ok {
			continue
		}
		rec.Head = simplified.Head
		rec.Blocks = append([]model.Point{simplified.Head}, rec.Blocks...)
		if len(rec.Blocks) > simplified.Length {
			rec.Blocks = rec.Blocks[:simplified.Length]
		}
		rec.Length = simplified.Length
		rec.InvincibleRounds = simplified.InvincibleRounds
		t.players[simplified.ID] = rec
	}
	for _, f := range d.AddedFoods {
		t.foods[f] = struct{}{}
	}
	for _, f := range d.RemovedFoods {
		delete(t.foods, f)
	}
	return t.snapshotLocked(d.Round, d.NextRoundTimestampMs)
}

// snapshotLocked must be called with t.mu held.
func (t *Transport) snapshotLocked(round uint64, nextRoundTimestampMs int64) client.State {
	players := make([]model.FullRecord, 0, len(t.players))
	inGame := false
	for id, p := range t.players {
		players = append(players, p)
		if id == t.self {
			inGame = true
		}
	}
	foods := make([]model.Point, 0, len(t.foods))
	for f := range t.foods {
		foods = append(foods, f)
	}
	return client.State{
		Round:              round,
		NextRoundTimestamp: nextRoundTimestampMs,
		Width:              t.width,
		Height:             t.height,
		Players:            players,
		Foods:              foods,
		Self:               t.self,
		SelfInGame:         inGame,
	}
}
