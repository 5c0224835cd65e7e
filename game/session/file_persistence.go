package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

// FilePersistence stores finished game results as JSON files, one per game
type FilePersistence struct {
	resultsDir string
	keep       int
}

// FileOption configures a FilePersistence
type FileOption func(*FilePersistence)

// WithRetention keeps only the newest keep results; zero keeps everything
func WithRetention(keep int) FileOption {
	return func(fp *FilePersistence) { fp.keep = keep }
}

// NewFilePersistence creates a file-based result store in resultsDir
func NewFilePersistence(resultsDir string, opts ...FileOption) (*FilePersistence, error) {
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	fp := &FilePersistence{resultsDir: resultsDir}
	for _, opt := range opts {
		opt(fp)
	}
	return fp, nil
}

// SaveResult writes a game record
func (fp *FilePersistence) SaveResult(ctx context.Context, record *service.GameRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if !validFileID(record.GameID) {
		return fmt.Errorf("invalid game id %q", record.GameID)
	}

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}

	// Write through a temp file so readers never see a partial record
	filePath := fp.getFilePath(record.GameID)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write game record: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to write game record: %w", err)
	}

	if fp.keep > 0 {
		return fp.prune(ctx)
	}
	return nil
}

// GetResult reads a game record
func (fp *FilePersistence) GetResult(ctx context.Context, gameID string) (*service.GameRecord, error) {
	if !validFileID(gameID) {
		return nil, &engine.NotFoundError{Kind: "result", ID: gameID}
	}

	jsonData, err := os.ReadFile(fp.getFilePath(gameID))
	if os.IsNotExist(err) {
		return nil, &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game record: %w", err)
	}

	var record service.GameRecord
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game record: %w", err)
	}
	return &record, nil
}

// ListAll returns the ids of all stored results
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a stored result
func (fp *FilePersistence) Delete(gameID string) error {
	if !validFileID(gameID) {
		return &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	err := os.Remove(fp.getFilePath(gameID))
	if os.IsNotExist(err) {
		return &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	return err
}

// ListResults returns up to limit stored results, newest first. A limit
// of zero or less returns all of them.
func (fp *FilePersistence) ListResults(ctx context.Context, limit int) ([]*service.GameRecord, error) {
	ids, err := fp.ListAll()
	if err != nil {
		return nil, err
	}

	records := make([]*service.GameRecord, 0, len(ids))
	for _, id := range ids {
		record, err := fp.GetResult(ctx, id)
		if err != nil {
			log.Warn().Str("game_id", id).Err(err).Msg("skipping unreadable result")
			continue
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// prune deletes the oldest results beyond the retention limit
func (fp *FilePersistence) prune(ctx context.Context) error {
	records, err := fp.ListResults(ctx, 0)
	if err != nil {
		return err
	}
	for _, record := range records[min(fp.keep, len(records)):] {
		// a concurrent save may have pruned it already
		if err := fp.Delete(record.GameID); err != nil && engine.ReasonOf(err) != engine.ReasonNotFound {
			return err
		}
	}
	return nil
}

// getFilePath returns the full file path for a game id
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.resultsDir, fmt.Sprintf("%s.json", id))
}

func validFileID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}
