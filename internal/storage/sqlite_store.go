package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"quest-server/internal/models"
)

var _ SessionStore = (*SQLiteStore)(nil)

const (
	createSessionTableQuery = `
CREATE TABLE IF NOT EXISTS session_records (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`
	loadSessionQuery   = `SELECT payload FROM session_records WHERE key = ?`
	upsertSessionQuery = `
INSERT INTO session_records (key, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	deleteSessionQuery = `DELETE FROM session_records WHERE key = ?`
)

// SQLiteStore хранит записи сессий в локальном файле SQLite.
type SQLiteStore struct {
	db     *sql.DB
	codec  *Codec
	logger *zap.Logger
}

// OpenSQLiteStore открывает (или создает) базу по пути path. ":memory:" допустим для тестов.
func OpenSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if _, err := db.Exec(createSessionTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, codec: MustCodec(), logger: logger.Named("SQLiteSessionStore")}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, wallet string) (*models.SessionRecord, error) {
	key := models.StorageKey(wallet)
	var payload []byte
	if err := s.db.QueryRowContext(ctx, loadSessionQuery, key).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite load %s: %w", key, err)
	}
	rec, err := s.codec.Decode(payload)
	if err != nil {
		s.logger.Warn("Corrupt session record", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, wallet string, rec *models.SessionRecord) error {
	key := models.StorageKey(wallet)
	payload, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertSessionQuery, key, payload, time.Now().Unix()); err != nil {
		return fmt.Errorf("sqlite save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, wallet string) error {
	key := models.StorageKey(wallet)
	if _, err := s.db.ExecContext(ctx, deleteSessionQuery, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
