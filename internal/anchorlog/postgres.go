package anchorlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to
// serialise concurrent Append calls. The value is arbitrary but must be
// consistent across all service instances.
const advisoryLockKey = int64(1_424_882_119)

// PostgresLog persists the anchored-fingerprint chain to PostgreSQL.
// It implements the Log interface.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLog creates a PostgresLog backed by the given connection pool.
func NewPostgresLog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

// Append implements Log. It acquires a PostgreSQL advisory lock, reads the
// chain tail, computes the new entry hash, and inserts it — all within a
// single transaction.
func (l *PostgresLog) Append(ctx context.Context, fingerprint string, contentSize int64) (*Entry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory lock.
	// The lock is released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prevIdx int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM anchor_log ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return nil, fmt.Errorf("read log tail: %w", err)
	}

	entry := &Entry{
		Index: prevIdx + 1,
		// timestamptz keeps microseconds; hashing a finer timestamp would
		// break Verify after the round trip.
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond),
		Fingerprint: fingerprint,
		ContentSize: contentSize,
		PrevHash:    prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO anchor_log (idx, timestamp, fingerprint, content_size, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Index, entry.Timestamp, entry.Fingerprint,
		entry.ContentSize, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert log entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit log tx: %w", err)
	}

	l.logger.Debug("anchor log entry appended",
		zap.Int("idx", entry.Index),
		zap.String("fingerprint", entry.Fingerprint),
	)
	return entry, nil
}

// Get implements Log.
func (l *PostgresLog) Get(ctx context.Context, index int) (*Entry, error) {
	entry := &Entry{}
	if err := l.pool.QueryRow(ctx,
		`SELECT idx, timestamp, fingerprint, content_size, prev_hash, hash
		 FROM anchor_log WHERE idx = $1`, index,
	).Scan(
		&entry.Index, &entry.Timestamp, &entry.Fingerprint,
		&entry.ContentSize, &entry.PrevHash, &entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("get log entry %d: %w", index, err)
	}
	return entry, nil
}

// Len implements Log.
func (l *PostgresLog) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM anchor_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count log entries: %w", err)
	}
	return n, nil
}

// Verify implements Log. It streams all rows ordered by idx and validates
// the hash chain. O(n) in log length; may be slow for very large logs.
func (l *PostgresLog) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT idx, timestamp, fingerprint, content_size, prev_hash, hash
		 FROM anchor_log ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	for rows.Next() {
		curr := &Entry{}
		if err := rows.Scan(
			&curr.Index, &curr.Timestamp, &curr.Fingerprint,
			&curr.ContentSize, &curr.PrevHash, &curr.Hash,
		); err != nil {
			return fmt.Errorf("scan log row: %w", err)
		}

		if prev == nil {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			prev = curr
			continue
		}

		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
		prev = curr
	}
	return rows.Err()
}

// Root implements Log.
func (l *PostgresLog) Root(ctx context.Context) (string, error) {
	var hash string
	if err := l.pool.QueryRow(ctx,
		"SELECT hash FROM anchor_log ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get log root: %w", err)
	}
	return hash, nil
}
