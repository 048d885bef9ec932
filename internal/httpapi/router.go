// Package httpapi implements the request surface of spec.md §4.6 on top of
// gin-gonic/gin, grounded on Hoshinonyaruko-snake-in-im/api/api.go's
// gin.HandlerFunc-per-route style. Every route answers in the {code,msg,
// data} envelope from spec.md §6; panics are recovered into a 500 envelope
// rather than crashing a request goroutine.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"snakearena/internal/apperr"
	"snakearena/internal/leaderboard"
	"snakearena/internal/model"
	"snakearena/internal/observability"
	"snakearena/internal/session"
	"snakearena/internal/store"
)

// Engine is the subset of *engine.Engine the request surface needs.
type Engine interface {
	SubmitCommand(id model.PlayerID, dir model.Direction) error
}

// Metrics exposes a snapshot of named counters for GET /api/metrics.
type Metrics interface {
	Snapshot() map[string]uint64
}

// Leaderboard is the subset of *leaderboard.Store the request surface needs.
type Leaderboard interface {
	Query(queryType leaderboard.QueryType, limit, offset int, startTime, endTime int64) ([]leaderboard.Entry, error)
}

// Status is returned by GET /api/status.
type Status struct {
	PlayerCount int    `json:"player_count"`
	MapSize     MapSize `json:"map_size"`
	RoundTimeMs int64  `json:"round_time"`
}

type MapSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Deps bundles every collaborator the router dispatches to.
type Deps struct {
	Store       *store.Store
	Engine      Engine
	Registry    *session.Registry
	Leaderboard Leaderboard
	Metrics     Metrics
	TickPeriod  time.Duration
	MapWidth    int
	MapHeight   int
	Observability observability.Config
}

// NewRouter builds a gin.Engine with every route from spec.md §4.6 wired to
// deps. A recovery middleware answers any handler panic with a 500 envelope,
// and every handler passes its returned errors through fail, so neither ends
// in a raw HTTP failure.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Code: http.StatusInternalServerError, Msg: "internal error"})
	}))

	h := &handlers{deps: deps}

	api := r.Group("/api")
	game := api.Group("/game")
	game.POST("/login", h.login)
	game.POST("/join", h.join)
	game.POST("/respawn", h.respawn)
	game.GET("/map", h.mapState)
	game.GET("/map/delta", h.delta)
	game.POST("/move", h.move)

	api.GET("/status", h.status)
	api.GET("/leaderboard", h.leaderboardQuery)
	api.GET("/metrics", h.metrics)

	deps.Observability.Mount(func(pattern string, handler http.HandlerFunc) {
		if strings.HasSuffix(pattern, "/") {
			// A trailing slash is ServeMux's subtree-match convention; gin
			// needs an explicit wildcard to dispatch the same sub-paths to
			// pprof.Index, which does its own suffix-based lookup.
			r.Any(pattern+"*rest", gin.WrapF(handler))
			return
		}
		r.Any(pattern, gin.WrapF(handler))
	})

	return r
}

type handlers struct {
	deps Deps
}

type loginRequest struct {
	UID   string `json:"uid" binding:"required"`
	Paste string `json:"paste"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.InvalidRequest(err.Error()))
		return
	}
	key, err := h.deps.Registry.Login(req.UID, req.Paste)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"key": key})
}

type joinRequest struct {
	Key   string `json:"key" binding:"required"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *handlers) join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.InvalidRequest(err.Error()))
		return
	}
	result, err := h.deps.Registry.Join(req.Key, req.Name, req.Color)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"token":             result.Token,
		"id":                result.PlayerID,
		"initial_direction": result.InitialDirection,
		"map_state":         h.deps.Store.Snapshot(),
	})
}

type respawnRequest struct {
	Token string `json:"token" binding:"required"`
}

// respawn lets an already-logged-in, currently-dead player re-enter the
// game on their existing token, per spec.md §4.7's auto-respawn step. It
// never touches the login-key/uid bookkeeping join does, so it works for
// as long as the token is valid regardless of how long ago the uid joined.
func (h *handlers) respawn(c *gin.Context) {
	var req respawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.InvalidRequest(err.Error()))
		return
	}
	result, err := h.deps.Registry.Respawn(req.Token)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"token":             result.Token,
		"id":                result.PlayerID,
		"initial_direction": result.InitialDirection,
		"map_state":         h.deps.Store.Snapshot(),
	})
}

func (h *handlers) mapState(c *gin.Context) {
	ok(c, h.deps.Store.Snapshot())
}

func (h *handlers) delta(c *gin.Context) {
	d, exists := h.deps.Store.Delta()
	if !exists {
		ok(c, h.deps.Store.Snapshot())
		return
	}
	ok(c, d)
}

type moveRequest struct {
	Token     string `json:"token" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *handlers) move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.InvalidRequest(err.Error()))
		return
	}
	dir, valid := model.ParseDirection(req.Direction)
	if !valid {
		fail(c, apperr.InvalidRequest("unknown direction "+req.Direction))
		return
	}
	playerID, found := h.deps.Registry.PlayerForToken(req.Token)
	if !found {
		fail(c, apperr.Unauthorized("unknown session token"))
		return
	}
	if !h.deps.Store.PlayerInGame(playerID) {
		fail(c, apperr.NotFound("player not in game"))
		return
	}
	if err := h.deps.Engine.SubmitCommand(playerID, dir); err != nil {
		fail(c, apperr.DuplicateCommand())
		return
	}
	ok(c, gin.H{})
}

func (h *handlers) status(c *gin.Context) {
	snap := h.deps.Store.Snapshot()
	ok(c, Status{
		PlayerCount: len(snap.Players),
		MapSize:     MapSize{Width: h.deps.MapWidth, Height: h.deps.MapHeight},
		RoundTimeMs: h.deps.TickPeriod.Milliseconds(),
	})
}

func (h *handlers) leaderboardQuery(c *gin.Context) {
	qt := leaderboard.QueryType(c.DefaultQuery("type", string(leaderboard.QueryKD)))
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	startTime := queryInt64(c, "start_time", 0)
	endTime := queryInt64(c, "end_time", 0)

	entries, err := h.deps.Leaderboard.Query(qt, limit, offset, startTime, endTime)
	if err != nil {
		fail(c, apperr.Internal(err.Error()))
		return
	}
	ok(c, gin.H{"entries": entries, "limit": limit, "offset": offset})
}

func (h *handlers) metrics(c *gin.Context) {
	snap := h.deps.Metrics.Snapshot()
	format := c.DefaultQuery("format", "json")
	if format == "prometheus" {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, renderPrometheus(snap))
		return
	}
	ok(c, snap)
}

func renderPrometheus(snap map[string]uint64) string {
	var b []byte
	for k, v := range snap {
		b = append(b, k...)
		b = append(b, ' ')
		b = strconv.AppendUint(b, v, 10)
		b = append(b, '\n')
	}
	return string(b)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(c *gin.Context, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
