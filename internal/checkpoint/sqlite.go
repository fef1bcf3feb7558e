package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore persists the sync state in an embedded SQLite database, one
// row per chain. Save replaces the whole state inside a single transaction,
// which gives the same all-or-nothing visibility as FileStore's rename.
//
// Useful when the checkpoint should live next to other operational state or
// when the pretty-printed JSON file would grow unwieldy.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite creates (or opens) a checkpoint database at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping checkpoint database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{conn: conn, path: path}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS chain_state (
		chain_id       TEXT PRIMARY KEY,
		last_watermark TEXT NOT NULL,
		record_hashes  TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create checkpoint schema: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Load implements Store.Load.
func (s *SQLiteStore) Load(ctx context.Context) (*SyncState, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT chain_id, last_watermark, record_hashes FROM chain_state")
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint state: %w", err)
	}
	defer rows.Close()

	state := NewSyncState()
	for rows.Next() {
		var chainID, watermark, hashesJSON string
		if err := rows.Scan(&chainID, &watermark, &hashesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		hashes := make(map[string]string)
		if err := json.Unmarshal([]byte(hashesJSON), &hashes); err != nil {
			return nil, fmt.Errorf("failed to parse hashes for chain %s: %w", chainID, err)
		}
		state.Chains[chainID] = &PartitionState{
			LastWatermark: watermark,
			RecordHashes:  hashes,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}

	// An empty table is the genesis signal, same as a missing file.
	if len(state.Chains) == 0 {
		return nil, nil
	}
	return state, nil
}

// Save implements Store.Save.
func (s *SQLiteStore) Save(ctx context.Context, state *SyncState) error {
	if _, err := state.MarshalJSON(); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chain_state"); err != nil {
		return fmt.Errorf("failed to clear previous checkpoint state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for chainID, ps := range state.Chains {
		hashesJSON, err := json.Marshal(ps.RecordHashes)
		if err != nil {
			return fmt.Errorf("failed to marshal hashes for chain %s: %w", chainID, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO chain_state (chain_id, last_watermark, record_hashes, updated_at) VALUES (?, ?, ?, ?)",
			chainID, ps.LastWatermark, string(hashesJSON), now)
		if err != nil {
			return fmt.Errorf("failed to insert state for chain %s: %w", chainID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Clear implements Store.Clear.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM chain_state"); err != nil {
		return fmt.Errorf("failed to clear checkpoint state: %w", err)
	}
	return nil
}
