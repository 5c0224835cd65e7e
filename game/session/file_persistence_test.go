package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

func TestFilePersistence(t *testing.T) {
	persistence, err := NewFilePersistence(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	ctx := context.Background()

	record := &service.GameRecord{
		GameID:    "3f1c2b9e-0000-4000-8000-000000000001",
		RoomID:    "ab12",
		RulesName: "classic",
		Winner:    engine.FactionCitizens,
		Rounds:    3,
		Players: []engine.Player{
			{ID: "p1", Name: "Ana", Role: engine.RoleMafia},
			{ID: "p2", Name: "Ben", Role: engine.RoleDoctor, Alive: true},
		},
		StartedAt: time.UnixMilli(1_700_000_000_000).UTC(),
		EndedAt:   time.UnixMilli(1_700_000_600_000).UTC(),
	}

	t.Run("save and load", func(t *testing.T) {
		if err := persistence.SaveResult(ctx, record); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
		loaded, err := persistence.GetResult(ctx, record.GameID)
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if loaded.Winner != record.Winner || loaded.Rounds != 3 || len(loaded.Players) != 2 {
			t.Errorf("Loaded record differs: %+v", loaded)
		}
		if loaded.Players[0].Role != engine.RoleMafia {
			t.Error("Roles should be stored revealed")
		}
		if !loaded.EndedAt.Equal(record.EndedAt) {
			t.Errorf("Expected ended_at %v, got %v", record.EndedAt, loaded.EndedAt)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		ids, err := persistence.ListAll()
		if err != nil || len(ids) != 1 || ids[0] != record.GameID {
			t.Fatalf("Expected one stored id, got %v (%v)", ids, err)
		}
		if err := persistence.Delete(record.GameID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := persistence.GetResult(ctx, record.GameID); engine.ReasonOf(err) != engine.ReasonNotFound {
			t.Errorf("Expected NOT_FOUND after delete, got %v", err)
		}
	})

	t.Run("rejects path-like ids", func(t *testing.T) {
		if err := persistence.SaveResult(ctx, &service.GameRecord{GameID: "../escape"}); err == nil {
			t.Error("Expected a path-like id to be refused")
		}
		if _, err := persistence.GetResult(ctx, "../escape"); engine.ReasonOf(err) != engine.ReasonNotFound {
			t.Errorf("Expected NOT_FOUND, got %v", err)
		}
	})
}

func TestFilePersistence_ListAndRetention(t *testing.T) {
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000).UTC()
	result := func(n int) *service.GameRecord {
		return &service.GameRecord{
			GameID:  fmt.Sprintf("game-%d", n),
			Winner:  engine.FactionMafia,
			EndedAt: base.Add(time.Duration(n) * time.Minute),
		}
	}

	t.Run("newest first with limit", func(t *testing.T) {
		persistence, err := NewFilePersistence(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to create file persistence: %v", err)
		}
		for _, n := range []int{2, 1, 3} {
			if err := persistence.SaveResult(ctx, result(n)); err != nil {
				t.Fatalf("SaveResult failed: %v", err)
			}
		}

		records, err := persistence.ListResults(ctx, 2)
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(records) != 2 || records[0].GameID != "game-3" || records[1].GameID != "game-2" {
			t.Errorf("Expected game-3, game-2; got %v", gameIDs(records))
		}

		all, _ := persistence.ListResults(ctx, 0)
		if len(all) != 3 {
			t.Errorf("Expected all 3 results without a limit, got %d", len(all))
		}
	})

	t.Run("retention drops the oldest", func(t *testing.T) {
		persistence, err := NewFilePersistence(t.TempDir(), WithRetention(2))
		if err != nil {
			t.Fatalf("Failed to create file persistence: %v", err)
		}
		for n := 1; n <= 4; n++ {
			if err := persistence.SaveResult(ctx, result(n)); err != nil {
				t.Fatalf("SaveResult failed: %v", err)
			}
		}

		ids, _ := persistence.ListAll()
		if len(ids) != 2 || ids[0] != "game-3" || ids[1] != "game-4" {
			t.Errorf("Expected game-3 and game-4 kept, got %v", ids)
		}
		if _, err := persistence.GetResult(ctx, "game-1"); engine.ReasonOf(err) != engine.ReasonNotFound {
			t.Errorf("Expected game-1 pruned, got %v", err)
		}
	})
}

func gameIDs(records []*service.GameRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.GameID
	}
	return ids
}
