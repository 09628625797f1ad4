// Package snapshot captures the ledger at a point in time and keeps those
// captures in a durable store. A restored snapshot is re-verified before it is
// trusted, so a store that has been edited behind our back is detected.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

// ErrNotFound is returned when no snapshot matches the request.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a complete copy of the ledger's blocks.
type Snapshot struct {
	ID         string        `json:"id"`
	TakenAt    time.Time     `json:"taken_at"`
	Difficulty int           `json:"difficulty"`
	TipHash    string        `json:"tip_hash"`
	Blocks     []chain.Block `json:"blocks"`
}

// Summary describes a snapshot without its blocks.
type Summary struct {
	ID         string    `json:"id"`
	TakenAt    time.Time `json:"taken_at"`
	Difficulty int       `json:"difficulty"`
	TipHash    string    `json:"tip_hash"`
	BlockCount int       `json:"block_count"`
}

// Summary returns the block-free description of s.
func (s *Snapshot) Summary() Summary {
	return Summary{
		ID:         s.ID,
		TakenAt:    s.TakenAt,
		Difficulty: s.Difficulty,
		TipHash:    s.TipHash,
		BlockCount: len(s.Blocks),
	}
}

// Store persists snapshots.
type Store interface {
	// Save stores s. Saving an ID twice replaces the earlier snapshot.
	Save(ctx context.Context, s *Snapshot) error

	// Get returns the snapshot with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Latest returns the most recently taken snapshot or ErrNotFound.
	Latest(ctx context.Context) (*Snapshot, error)

	// List returns up to limit summaries, newest first.
	List(ctx context.Context, limit int) ([]Summary, error)
}

// newestFirst sorts summaries by TakenAt descending and keeps at most limit.
func newestFirst(out []Summary, limit int) []Summary {
	slices.SortFunc(out, func(a, b Summary) int { return b.TakenAt.Compare(a.TakenAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Source is what Take reads from. *chain.Ledger satisfies it.
type Source interface {
	Blocks() []chain.Block
	Difficulty() int
}

// Take copies the current state of l.
func Take(l Source, takenAt time.Time) *Snapshot {
	blocks := l.Blocks()
	return &Snapshot{
		ID:         uuid.NewString(),
		TakenAt:    takenAt.UTC(),
		Difficulty: l.Difficulty(),
		TipHash:    blocks[len(blocks)-1].Hash,
		Blocks:     blocks,
	}
}

// Restore rebuilds a ledger from s, verifying every block on the way.
func Restore(s *Snapshot, opts ...chain.Option) (*chain.Ledger, error) {
	l, err := chain.Restore(s.Difficulty, s.Blocks, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", s.ID, err)
	}
	if s.TipHash != "" && l.TipHash() != s.TipHash {
		return nil, fmt.Errorf("restore snapshot %s: %w: tip hash %s does not match recorded %s",
			s.ID, chain.ErrInvalidSnapshot, l.TipHash(), s.TipHash)
	}
	return l, nil
}

// Verify reports whether s restores to a valid ledger.
func Verify(s *Snapshot) error {
	_, err := Restore(s)
	return err
}

// CompareWith reports whether live still extends s: every block in s must be
// present in live with the same hash.
func CompareWith(s *Snapshot, live *chain.Ledger) error {
	if live.Len() < len(s.Blocks) {
		return fmt.Errorf("%w: live ledger has %d blocks, snapshot has %d",
			chain.ErrInvalidSnapshot, live.Len(), len(s.Blocks))
	}
	for _, b := range s.Blocks {
		got, ok := live.Block(b.Index)
		if !ok || got.Hash != b.Hash {
			return fmt.Errorf("%w: block %d differs from live ledger", chain.ErrInvalidSnapshot, b.Index)
		}
	}
	return nil
}
