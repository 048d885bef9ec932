// Package leaderboard implements the persisted leaderboard collaborator
// named in spec.md §6: a table keyed by (uid, seasonId) with columns
// {name, now_length, max_length, kills, deaths, games_played, total_food,
// last_round, timestamp}, updated per-event (on food, on kill, on death, on
// game end). Grounded on Hoshinonyaruko-snake-in-im/sqlite/sql.go's
// executeSQL/InitializeDatabase pattern and database/sql + mattn/go-sqlite3.
package leaderboard

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS leaderboard (
	uid TEXT NOT NULL,
	season_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	now_length INTEGER NOT NULL DEFAULT 0,
	max_length INTEGER NOT NULL DEFAULT 0,
	kills INTEGER NOT NULL DEFAULT 0,
	deaths INTEGER NOT NULL DEFAULT 0,
	games_played INTEGER NOT NULL DEFAULT 0,
	total_food INTEGER NOT NULL DEFAULT 0,
	last_round INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (uid, season_id)
);
`

// Store is a sqlite-backed leaderboard. It implements engine.LeaderboardSink
// so the tick engine can report events without importing this package.
type Store struct {
	db       *sql.DB
	seasonID string
}

// Open opens (creating if necessary) a sqlite database at dsn and ensures
// the leaderboard table exists. seasonID scopes every row written by this
// Store; spec.md §6 keys the leaderboard by (uid, seasonId).
func Open(dsn, seasonID string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: open %q: %w", dsn, err)
	}
	// sqlite3 serializes writes anyway; one connection avoids "database is
	// locked" errors under concurrent handlers and keeps an in-memory dsn
	// (used by tests) from spawning a second, empty in-memory database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("leaderboard: create table: %w", err)
	}
	return &Store{db: db, seasonID: seasonID}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsertRow(uid, name string) {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO leaderboard (uid, season_id, name, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(uid, season_id) DO UPDATE SET
		   name = CASE WHEN excluded.name != '' THEN excluded.name ELSE leaderboard.name END,
		   timestamp = excluded.timestamp`,
		uid, s.seasonID, name, now,
	)
	if err != nil {
		// Best-effort: leaderboard writes must never block gameplay.
		return
	}
}

// RecordJoin ensures a row exists for uid so later aggregate queries include
// players who have not yet scored an event this season.
func (s *Store) RecordJoin(uid, name string) {
	s.upsertRow(uid, name)
}

// RecordFood increments total_food and sets now_length to the snake's
// current length, per spec.md §8: a food-eaten event updates both columns
// for the acting uid.
func (s *Store) RecordFood(uid string, currentLength int) {
	s.upsertRow(uid, "")
	s.db.Exec(
		`UPDATE leaderboard SET total_food = total_food + 1, now_length = ?, timestamp = ? WHERE uid = ? AND season_id = ?`,
		currentLength, time.Now().Unix(), uid, s.seasonID,
	)
}

// RecordKill increments kills for killerUID.
func (s *Store) RecordKill(killerUID string) {
	s.upsertRow(killerUID, "")
	s.db.Exec(
		`UPDATE leaderboard SET kills = kills + 1, timestamp = ? WHERE uid = ? AND season_id = ?`,
		time.Now().Unix(), killerUID, s.seasonID,
	)
}

// RecordDeath increments deaths and games_played for uid, and raises
// max_length if finalLength exceeds the stored maximum.
func (s *Store) RecordDeath(uid string, finalLength int) {
	s.upsertRow(uid, "")
	s.db.Exec(
		`UPDATE leaderboard SET
			deaths = deaths + 1,
			games_played = games_played + 1,
			now_length = ?,
			max_length = CASE WHEN ? > max_length THEN ? ELSE max_length END,
			timestamp = ?
		 WHERE uid = ? AND season_id = ?`,
		finalLength, finalLength, finalLength, time.Now().Unix(), uid, s.seasonID,
	)
}

// Entry is one row of a leaderboard query response.
type Entry struct {
	UID            string  `json:"uid"`
	Name           string  `json:"name"`
	NowLength      int     `json:"now_length"`
	MaxLength      int     `json:"max_length"`
	Kills          int     `json:"kills"`
	Deaths         int     `json:"deaths"`
	GamesPlayed    int     `json:"games_played"`
	TotalFood      int     `json:"total_food"`
	LastRound      int     `json:"last_round"`
	Timestamp      int64   `json:"timestamp"`
	KD             float64 `json:"kd,omitempty"`
	AvgLengthGame  float64 `json:"avg_length_per_game,omitempty"`
}

// QueryType selects the ranking column for GET /api/leaderboard.
type QueryType string

const (
	QueryKD                  QueryType = "kd"
	QueryMaxLength           QueryType = "max_length"
	QueryAvgLengthPerGame    QueryType = "avg_length_per_game"
)

// Query returns entries ranked by queryType, paged by limit/offset, scoped
// to the season this Store was opened with. startTime/endTime, if non-zero,
// bound the rows by their last timestamp (unix seconds).
func (s *Store) Query(queryType QueryType, limit, offset int, startTime, endTime int64) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "season_id = ?"
	args := []any{s.seasonID}
	if startTime > 0 {
		where += " AND timestamp >= ?"
		args = append(args, startTime)
	}
	if endTime > 0 {
		where += " AND timestamp <= ?"
		args = append(args, endTime)
	}
	args = append(args, limit, offset)

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT uid, name, now_length, max_length, kills, deaths, games_played, total_food, last_round, timestamp
		             FROM leaderboard WHERE %s
		             ORDER BY %s DESC LIMIT ? OFFSET ?`, where, orderExpr(queryType)),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UID, &e.Name, &e.NowLength, &e.MaxLength, &e.Kills, &e.Deaths, &e.GamesPlayed, &e.TotalFood, &e.LastRound, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.Deaths > 0 {
			e.KD = float64(e.Kills) / float64(e.Deaths)
		} else {
			e.KD = float64(e.Kills)
		}
		if e.GamesPlayed > 0 {
			e.AvgLengthGame = initialSnakeLength + float64(e.TotalFood)/float64(e.GamesPlayed)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// initialSnakeLength is the length every snake spawns with (engine.Config's
// default InitialLength), the base term of the average-length-per-game
// formula below.
const initialSnakeLength = 3.0

func orderExpr(queryType QueryType) string {
	switch queryType {
	case QueryMaxLength:
		return "max_length"
	case QueryAvgLengthPerGame:
		return fmt.Sprintf("%g + CAST(total_food AS REAL) / MAX(games_played, 1)", initialSnakeLength)
	default:
		return "CAST(kills AS REAL) / MAX(deaths, 1)"
	}
}
