package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every collection in one documents table and queries
// fields with json_extract.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Parent directories
// are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes transactions, which is what makes
	// CreateUnique's check-then-insert atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying document: %w", classifySQL(err))
	}
	return &Document{ID: id, Data: json.RawMessage(data)}, nil
}

func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("setting document: %w", classifySQL(err))
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkFields(fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	var setArgs []string
	var args []any
	for field, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", field, err)
		}
		setArgs = append(setArgs, "'$."+field+"'", "json(?)")
		args = append(args, string(raw))
	}
	args = append(args, collection, id)

	query := fmt.Sprintf(`UPDATE documents SET data = json_set(data, %s) WHERE collection = ? AND id = ?`,
		strings.Join(setArgs, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", classifySQL(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", classifySQL(err))
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := checkField(filter.Field); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT id, data FROM documents
		WHERE collection = ? AND json_extract(data, '$.` + filter.Field + `') = ?
		ORDER BY id
		LIMIT ?`
	return s.scan(ctx, query, collection, filter.Value, limit)
}

func (s *SQLiteStore) All(ctx context.Context, collection string) ([]Document, error) {
	return s.scan(ctx, `SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
}

func (s *SQLiteStore) CreateUnique(ctx context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error) {
	if err := checkField(unique.Field); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", classifySQL(err))
	}
	defer tx.Rollback() //nolint:errcheck

	var valueTaken, idTaken bool
	err = tx.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM documents WHERE collection = ? AND json_extract(data, '$.`+unique.Field+`') = ?),
			EXISTS(SELECT 1 FROM documents WHERE collection = ? AND id = ?)`,
		collection, unique.Value, collection, id,
	).Scan(&valueTaken, &idTaken)
	if err != nil {
		return "", fmt.Errorf("checking uniqueness: %w", classifySQL(err))
	}
	if valueTaken {
		return "", ErrConflict
	}
	if idTaken {
		return "", ErrDuplicateID
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))`,
		collection, id, string(data),
	); err != nil {
		return "", fmt.Errorf("inserting document: %w", classifySQL(err))
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", classifySQL(err))
	}
	return id, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classifySQL(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", classifySQL(err))
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", classifySQL(err))
	}
	return docs, nil
}

func classifySQL(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
