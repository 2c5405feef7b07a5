// Package ledger persists forwards that failed delivery so they can be
// replayed once the remote side recovers.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one failed forward awaiting replay.
type Record struct {
	ID          string
	Direction   string
	IdentityKey string
	Payload     map[string]any
	Cause       string
	CreatedAt   time.Time
}

// Store persists records in the failed_forwards table.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a ledger store on the given pool.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("component", "ledger")),
	}
}

// Append records one failed forward.
func (s *Store) Append(ctx context.Context, direction, identityKey string, payload map[string]any, cause string) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO failed_forwards (id, direction, identity_key, payload, cause, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), direction, identityKey, encoded, cause, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	s.logger.Info("forward ledgered",
		slog.String("direction", direction),
		slog.String("identity_key", identityKey),
	)
	return nil
}

// Consume hands the oldest pending record to fn inside a transaction and
// deletes it when fn succeeds. A failing fn leaves the record in place for
// the next pass. Competing consumers skip rows another transaction holds.
// The first return reports whether a record was found.
func (s *Store) Consume(ctx context.Context, fn func(ctx context.Context, record Record) error) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`SELECT id, direction, identity_key, payload, cause, created_at
		 FROM failed_forwards
		 ORDER BY created_at
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	)
	var record Record
	var encoded []byte
	if err := row.Scan(&record.ID, &record.Direction, &record.IdentityKey, &encoded, &record.Cause, &record.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select pending: %w", err)
	}
	if len(encoded) > 0 {
		if err := json.Unmarshal(encoded, &record.Payload); err != nil {
			return true, fmt.Errorf("decode payload %s: %w", record.ID, err)
		}
	}

	if err := fn(ctx, record); err != nil {
		return true, fmt.Errorf("replay %s: %w", record.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM failed_forwards WHERE id = $1`, record.ID); err != nil {
		return true, fmt.Errorf("delete record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return true, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Pending returns the number of records awaiting replay.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM failed_forwards`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}
