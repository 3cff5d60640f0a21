package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents in a JSONB table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore parses the database URL, establishes a connection pool and
// creates the documents table if it does not exist.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying document: %w", classifyPg(err))
	}
	return &Document{ID: id, Data: data}, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("setting document: %w", classifyPg(err))
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := checkFields(fields); err != nil {
		return err
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE documents SET data = data || $3::jsonb
		WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("updating document: %w", classifyPg(err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", classifyPg(err))
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := checkField(filter.Field); err != nil {
		return nil, err
	}

	query := `
		SELECT id, data FROM documents
		WHERE collection = $1 AND data->>$2 = $3
		ORDER BY id`
	args := []any{collection, filter.Field, filter.Value}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	return s.scan(ctx, query, args...)
}

func (s *PostgresStore) All(ctx context.Context, collection string) ([]Document, error) {
	return s.scan(ctx, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`, collection)
}

// CreateUnique serializes writers on the (collection, field, value) key with a
// transaction-scoped advisory lock before checking and inserting.
func (s *PostgresStore) CreateUnique(ctx context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error) {
	if err := checkField(unique.Field); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", classifyPg(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lockKey := collection + "/" + unique.Field + "=" + unique.Value
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return "", fmt.Errorf("acquiring lock: %w", classifyPg(err))
	}

	var valueTaken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND data->>$2 = $3)`,
		collection, unique.Field, unique.Value,
	).Scan(&valueTaken)
	if err != nil {
		return "", fmt.Errorf("checking uniqueness: %w", classifyPg(err))
	}
	if valueTaken {
		return "", ErrConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(data))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateID
		}
		return "", fmt.Errorf("inserting document: %w", classifyPg(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing transaction: %w", classifyPg(err))
	}
	return id, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classifyPg(err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) scan(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", classifyPg(err))
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		var data []byte
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		d.Data = data
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", classifyPg(err))
	}
	return docs, nil
}

func classifyPg(err error) error {
	var connErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
