package leaderboard

import "testing"

func TestFoodEventIncrementsTotalFoodAndNowLength(t *testing.T) {
	s, err := Open(":memory:", "season1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.RecordJoin("uid1", "Alice")
	s.RecordFood("uid1", 4)
	s.RecordFood("uid1", 5)

	entries, err := s.Query(QueryKD, 10, 0, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if entries[0].TotalFood != 2 {
		t.Fatalf("want total_food 2, got %d", entries[0].TotalFood)
	}
	if entries[0].NowLength != 5 {
		t.Fatalf("want now_length to track the most recent event's length (5), got %d", entries[0].NowLength)
	}
}

func TestAvgLengthPerGameUsesInitialLengthPlusAverageFood(t *testing.T) {
	s, err := Open(":memory:", "season1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.RecordJoin("uid1", "Alice")
	s.RecordFood("uid1", 4)
	s.RecordDeath("uid1", 4) // game 1: ate 1 food, ended at length 4
	s.RecordFood("uid1", 6)
	s.RecordFood("uid1", 7)
	s.RecordDeath("uid1", 7) // game 2: ate 2 food, ended at length 7

	entries, err := s.Query(QueryAvgLengthPerGame, 10, 0, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	// total_food=3 across games_played=2: 3.0 (initial length) + 3.0/2 = 4.5
	want := 4.5
	if entries[0].AvgLengthGame != want {
		t.Fatalf("want avg_length_per_game %v, got %v", want, entries[0].AvgLengthGame)
	}
}

func TestDeathEventIncrementsDeathsAndRaisesMaxLengthOnlyWhenExceeded(t *testing.T) {
	s, err := Open(":memory:", "season1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.RecordJoin("uid1", "Alice")
	s.RecordDeath("uid1", 10)
	s.RecordDeath("uid1", 5) // shorter game: max_length must stay at 10

	entries, err := s.Query(QueryMaxLength, 10, 0, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if entries[0].Deaths != 2 {
		t.Fatalf("want deaths 2, got %d", entries[0].Deaths)
	}
	if entries[0].GamesPlayed != 2 {
		t.Fatalf("want games_played 2, got %d", entries[0].GamesPlayed)
	}
	if entries[0].MaxLength != 10 {
		t.Fatalf("want max_length to stay at 10, got %d", entries[0].MaxLength)
	}
}

func TestKillEventIncrementsKillsForKiller(t *testing.T) {
	s, err := Open(":memory:", "season1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.RecordJoin("killer", "Bob")
	s.RecordKill("killer")
	s.RecordDeath("killer", 4)

	entries, err := s.Query(QueryKD, 10, 0, 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if entries[0].Kills != 1 || entries[0].Deaths != 1 {
		t.Fatalf("want kills=1 deaths=1, got kills=%d deaths=%d", entries[0].Kills, entries[0].Deaths)
	}
	if entries[0].KD != 1.0 {
		t.Fatalf("want kd=1.0, got %v", entries[0].KD)
	}
}
