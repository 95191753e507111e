package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStoreUnavailable is returned when the store has no database pool.
	ErrStoreUnavailable = errors.New("queue: store unavailable")
	// ErrDLQNotFound is returned when the dead letter entry does not exist.
	ErrDLQNotFound = errors.New("queue: dead letter entry not found")
)

// DLQEntry is a job that exhausted its attempts.
type DLQEntry struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Key      string    `json:"key,omitempty"`
	Payload  []byte    `json:"payload"`
	Attempts int       `json:"attempts"`
	LastErr  string    `json:"lastError"`
	FailedAt time.Time `json:"failedAt"`
}

// Store persists dead letter entries for inspection and replay.
type Store interface {
	InsertDLQ(ctx context.Context, entry DLQEntry) (uuid.UUID, error)
	GetDLQ(ctx context.Context, id uuid.UUID) (DLQEntry, error)
	ListDLQ(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error)
	DeleteDLQ(ctx context.Context, id uuid.UUID) error
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) InsertDLQ(ctx context.Context, entry DLQEntry) (uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return uuid.Nil, ErrStoreUnavailable
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_dlq (kind, key, payload, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		entry.Kind, entry.Key, entry.Payload, entry.Attempts, entry.LastErr,
	).Scan(&id)
	return id, err
}

func (s *pgStore) GetDLQ(ctx context.Context, id uuid.UUID) (DLQEntry, error) {
	if s == nil || s.pool == nil {
		return DLQEntry{}, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, key, payload, attempts, last_error, failed_at
		FROM queue_dlq
		WHERE id = $1`,
		id,
	)
	var entry DLQEntry
	err := row.Scan(&entry.ID, &entry.Kind, &entry.Key, &entry.Payload, &entry.Attempts, &entry.LastErr, &entry.FailedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DLQEntry{}, ErrDLQNotFound
	}
	return entry, err
}

func (s *pgStore) ListDLQ(ctx context.Context, kind string, limit, offset int) ([]DLQEntry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, key, payload, attempts, last_error, failed_at
		FROM queue_dlq
		WHERE ($1 = '' OR kind = $1)
		ORDER BY failed_at DESC
		LIMIT $2 OFFSET $3`,
		kind, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DLQEntry
	for rows.Next() {
		var entry DLQEntry
		if err := rows.Scan(&entry.ID, &entry.Kind, &entry.Key, &entry.Payload, &entry.Attempts, &entry.LastErr, &entry.FailedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *pgStore) DeleteDLQ(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM queue_dlq WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDLQNotFound
	}
	return nil
}
