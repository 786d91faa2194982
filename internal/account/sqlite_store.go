package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"WaveSentinel/internal/model"
)

// SQLiteStore keeps account documents as JSON in a trader_storage table,
// one row per account id.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS trader_storage (
		id             TEXT PRIMARY KEY,
		portfolio_data TEXT NOT NULL,
		updated_at     INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("[INFO] sqlite account store opened: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*model.AccountDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT portfolio_data FROM trader_storage WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewAccountDocument(model.DefaultCapital), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	var doc model.AccountDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse account %s: %w", id, err)
	}
	doc.Normalize()
	return &doc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, doc *model.AccountDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO trader_storage (id, portfolio_data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET portfolio_data = excluded.portfolio_data, updated_at = excluded.updated_at`,
		id, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite account store")
	return s.db.Close()
}
