package cockroach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexportal-backend/internal/repository/docstore"
)

const (
	pgUniqueViolation     = "23505"
	pgSerializationFailed = "40001"

	maxTxAttempts = 3
)

// schema stores every collection in one JSONB table. The partial unique
// index gives conversations their (clientId, caseId) key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data JSONB NOT NULL,
		version INT8 NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documents_conversation_key
		ON documents ((data->>'clientId'), (data->>'caseId'))
		WHERE collection = 'conversations'`,
	`CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data)`,
}

// DocumentStore is a docstore.Store over a JSONB documents table
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a new document store
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// EnsureSchema creates the documents table and its indexes
func (r *DocumentStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Get loads one document
func (r *DocumentStore) Get(ctx context.Context, collection, id string, dst any) error {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if err != nil {
		return translate(err)
	}
	return decode(data, dst)
}

// Query loads every matching document in creation order
func (r *DocumentStore) Query(ctx context.Context, collection string, filters []docstore.Filter, dst any) error {
	containment, err := containmentOf(filters)
	if err != nil {
		return err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT data FROM documents
		WHERE collection = $1 AND data @> $2::JSONB
		ORDER BY created_at, id`,
		collection, containment,
	)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		docs = append(docs, data)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}

	list, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to collect %s: %w", collection, err)
	}
	return decode(list, dst)
}

// Create inserts a new document
func (r *DocumentStore) Create(ctx context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, payload,
	)
	return translate(err)
}

// Update overwrites top-level fields of an existing document
func (r *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE documents
		SET data = data || $3::JSONB, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, payload,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Set writes a whole document, creating it if needed
func (r *DocumentStore) Set(ctx context.Context, collection, id string, data any, merge bool) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	update := `excluded.data`
	if merge {
		update = `documents.data || excluded.data`
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = `+update+`, version = documents.version + 1, updated_at = now()`,
		collection, id, payload,
	)
	return translate(err)
}

// FindOrCreate inserts unless a unique index already holds the key, then
// reads back whichever document owns it
func (r *DocumentStore) FindOrCreate(ctx context.Context, collection string, key []docstore.Filter, id string, data any, dst any) (bool, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("failed to encode document: %w", err)
	}
	containment, err := containmentOf(key)
	if err != nil {
		return false, err
	}

	var existing []byte
	err = r.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND data @> $2::JSONB ORDER BY created_at LIMIT 1`,
		collection, containment,
	).Scan(&existing)
	if err == nil {
		return false, decode(existing, dst)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, translate(err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		collection, id, payload,
	)
	if err != nil {
		return false, translate(err)
	}
	created := tag.RowsAffected() == 1

	err = r.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND data @> $2::JSONB ORDER BY created_at LIMIT 1`,
		collection, containment,
	).Scan(&existing)
	if err != nil {
		return false, translate(err)
	}
	return created, decode(existing, dst)
}

// Mutate locks the row with SELECT ... FOR UPDATE for the read-modify-write
func (r *DocumentStore) Mutate(ctx context.Context, collection, id string, dst any, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.mutateOnce(ctx, collection, id, dst, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", docstore.ErrContention, err)
}

func (r *DocumentStore) mutateOnce(ctx context.Context, collection, id string, dst any, fn func() error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&data)
	if err != nil {
		return translate(err)
	}
	if err := decode(data, dst); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}

	payload, err := json.Marshal(dst)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE documents SET data = $3, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, payload,
	)
	if err != nil {
		return translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

// containmentOf renders equality filters as a JSONB containment document
func containmentOf(filters []docstore.Filter) ([]byte, error) {
	doc := make(map[string]any, len(filters))
	for _, f := range filters {
		doc[f.Field] = f.Value
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}
	return payload, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return docstore.ErrAlreadyExists
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailed
}
