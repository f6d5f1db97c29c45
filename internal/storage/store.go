package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by Store.Load when no document with the
// given id and kind exists.
var ErrNotFound = errors.New("storage: document not found")

// Store is a typed view over the documents table for one document
// kind. T must be JSON-serializable; this is the only place in the
// server that knows the shape of persisted character/account state.
type Store[T any] struct {
	db   *DB
	kind string
}

// NewStore creates a Store for documents of the given kind, e.g.
// "character" or "account".
func NewStore[T any](db *DB, kind string) *Store[T] {
	return &Store[T]{db: db, kind: kind}
}

// Load fetches the document with the given id and kind and unmarshals
// it into T. Returns ErrNotFound if no such document exists.
func (s *Store[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T
	var raw []byte
	err := s.db.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE id = $1 AND kind = $2`,
		id, s.kind,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("loading %s document %q: %w", s.kind, id, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("decoding %s document %q: %w", s.kind, id, err)
	}
	return value, nil
}

// Save upserts the document with the given id, owning account, and
// value.
func (s *Store[T]) Save(ctx context.Context, id, ownerAccount string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s document %q: %w", s.kind, id, err)
	}

	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO documents (id, kind, owner_account, data, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO UPDATE SET data = $4, updated_at = now()`,
		id, s.kind, ownerAccount, raw,
	)
	if err != nil {
		return fmt.Errorf("saving %s document %q: %w", s.kind, id, err)
	}
	return nil
}

// Delete removes the document with the given id and kind. Deleting a
// document that does not exist is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	_, err := s.db.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND kind = $2`, id, s.kind,
	)
	if err != nil {
		return fmt.Errorf("deleting %s document %q: %w", s.kind, id, err)
	}
	return nil
}

// ListByOwner returns every document id of this kind owned by
// ownerAccount.
func (s *Store[T]) ListByOwner(ctx context.Context, ownerAccount string) ([]string, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT id FROM documents WHERE kind = $1 AND owner_account = $2`,
		s.kind, ownerAccount,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s documents for %q: %w", s.kind, ownerAccount, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning %s document id: %w", s.kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
