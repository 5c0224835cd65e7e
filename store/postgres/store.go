// Package postgres persists finished games and serves the chat suggestion
// library from PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/config"
	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id    TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL,
		rules      TEXT NOT NULL,
		winner     TEXT NOT NULL DEFAULT '',
		aborted    BOOLEAN NOT NULL DEFAULT FALSE,
		rounds     INTEGER NOT NULL DEFAULT 0,
		players    JSONB NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS game_results_ended_at_idx ON game_results (ended_at DESC)`,
	`CREATE TABLE IF NOT EXISTS suggestions (
		id       SERIAL PRIMARY KEY,
		role     TEXT NOT NULL,
		phase    TEXT NOT NULL,
		text     TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (role, phase, text)
	)`,
}

// Store implements service.ResultStore and service.SuggestionSource
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveResult inserts or replaces the result of a game
func (s *Store) SaveResult(ctx context.Context, record *service.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_results (game_id, room_id, rules, winner, aborted, rounds, players, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO UPDATE SET
			winner = EXCLUDED.winner,
			aborted = EXCLUDED.aborted,
			rounds = EXCLUDED.rounds,
			players = EXCLUDED.players,
			ended_at = EXCLUDED.ended_at`,
		record.GameID, record.RoomID, record.RulesName, string(record.Winner), record.Aborted,
		record.Rounds, players, record.StartedAt, record.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", record.GameID, err)
	}
	return nil
}

// GetResult loads the result of a game
func (s *Store) GetResult(ctx context.Context, gameID string) (*service.GameRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT game_id, room_id, rules, winner, aborted, rounds, players, started_at, ended_at
		FROM game_results WHERE game_id = $1`, gameID)

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", gameID, err)
	}
	return record, nil
}

// ListResults returns up to limit finished games, newest first. A limit of
// zero or less returns all of them.
func (s *Store) ListResults(ctx context.Context, limit int) ([]*service.GameRecord, error) {
	var lim *int // LIMIT NULL is no limit
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, room_id, rules, winner, aborted, rounds, players, started_at, ended_at
		FROM game_results ORDER BY ended_at DESC LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var records []*service.GameRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SeedSuggestions inserts the library entries that are not stored yet
func (s *Store) SeedSuggestions(ctx context.Context, entries []config.Suggestion) error {
	batch := &pgx.Batch{}
	for i, e := range entries {
		batch.Queue(`
			INSERT INTO suggestions (role, phase, text, position) VALUES ($1, $2, $3, $4)
			ON CONFLICT (role, phase, text) DO NOTHING`,
			string(e.Role), string(e.Phase), e.Text, i)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	inserted := int64(0)
	for range entries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("failed to seed suggestions: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	log.Debug().Int64("inserted", inserted).Int("entries", len(entries)).Msg("suggestions seeded")
	return nil
}

// Suggestions returns the lines for role in phase in library order
func (s *Store) Suggestions(ctx context.Context, role engine.Role, phase engine.Phase) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT text FROM suggestions WHERE role = $1 AND phase = $2 ORDER BY position, id`,
		string(role), string(phase))
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}

	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

func scanRecord(row pgx.Row) (*service.GameRecord, error) {
	var (
		record  service.GameRecord
		winner  string
		players []byte
	)
	err := row.Scan(&record.GameID, &record.RoomID, &record.RulesName, &winner, &record.Aborted,
		&record.Rounds, &players, &record.StartedAt, &record.EndedAt)
	if err != nil {
		return nil, err
	}
	record.Winner = engine.Faction(winner)
	if err := json.Unmarshal(players, &record.Players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return &record, nil
}
