package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists snapshots in the ledger_snapshots table created by
// migrations/001_ledger_snapshots.up.sql.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Save implements Store.
func (p *PostgresStore) Save(ctx context.Context, s *Snapshot) error {
	blocks, err := json.Marshal(s.Blocks)
	if err != nil {
		return fmt.Errorf("marshal snapshot blocks: %w", err)
	}

	if _, err := p.pool.Exec(ctx,
		`INSERT INTO ledger_snapshots (id, taken_at, difficulty, tip_hash, block_count, blocks)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   taken_at = EXCLUDED.taken_at, difficulty = EXCLUDED.difficulty,
		   tip_hash = EXCLUDED.tip_hash, block_count = EXCLUDED.block_count,
		   blocks = EXCLUDED.blocks`,
		s.ID, s.TakenAt, s.Difficulty, s.TipHash, len(s.Blocks), blocks,
	); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", s.ID, err)
	}

	p.logger.Info("snapshot saved",
		zap.String("id", s.ID),
		zap.Int("blocks", len(s.Blocks)),
		zap.String("backend", "postgres"),
	)
	return nil
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	return p.scanOne(ctx,
		`SELECT id, taken_at, difficulty, tip_hash, blocks
		 FROM ledger_snapshots WHERE id = $1`, id)
}

// Latest implements Store.
func (p *PostgresStore) Latest(ctx context.Context) (*Snapshot, error) {
	return p.scanOne(ctx,
		`SELECT id, taken_at, difficulty, tip_hash, blocks
		 FROM ledger_snapshots ORDER BY taken_at DESC LIMIT 1`)
}

func (p *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*Snapshot, error) {
	var (
		s      Snapshot
		blocks []byte
	)
	err := p.pool.QueryRow(ctx, query, args...).Scan(&s.ID, &s.TakenAt, &s.Difficulty, &s.TipHash, &blocks)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if err := json.Unmarshal(blocks, &s.Blocks); err != nil {
		return nil, fmt.Errorf("decode snapshot %s blocks: %w", s.ID, err)
	}
	s.TakenAt = s.TakenAt.UTC()
	return &s, nil
}

// List implements Store.
func (p *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, taken_at, difficulty, tip_hash, block_count
		 FROM ledger_snapshots ORDER BY taken_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.TakenAt, &s.Difficulty, &s.TipHash, &s.BlockCount); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
