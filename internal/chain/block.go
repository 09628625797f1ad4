package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenesisPreviousHash is the parent link recorded by the genesis block.
const GenesisPreviousHash = "0"

// TimestampLayout is the canonical textual form of a block timestamp.
// Timestamps are always rendered in UTC so the form sorts lexically.
const TimestampLayout = time.RFC3339Nano

// ctxCheckInterval is how many nonces MineContext tries between context checks.
const ctxCheckInterval = 1024

// Block is a single hash-sealed record in the ledger.
type Block struct {
	Index        int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      Payload   `json:"payload"`
	PreviousHash string    `json:"previous_hash"`
	Nonce        uint64    `json:"nonce"`
	Hash         string    `json:"hash"`
	MerkleRoot   string    `json:"merkle_root"`
}

// NewBlock builds a block and seals it with a hash computed from the supplied
// fields. The block is not mined.
func NewBlock(index int, timestamp time.Time, payload Payload, previousHash string, nonce uint64) (*Block, error) {
	if index < 0 {
		return nil, fmt.Errorf("block index %d is negative", index)
	}
	b := &Block{
		Index:        index,
		Timestamp:    timestamp,
		Payload:      payload.Clone(),
		PreviousHash: previousHash,
		Nonce:        nonce,
	}
	root, err := merkleRoot(b.Payload)
	if err != nil {
		return nil, err
	}
	b.MerkleRoot = root
	if err := b.rehash(); err != nil {
		return nil, err
	}
	return b, nil
}

// FormatTimestamp returns the canonical string form of t.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ComputeHash returns the SHA-256 digest of the block's current fields:
// index, timestamp, canonical payload, previous hash and nonce, in that order.
func (b *Block) ComputeHash() (string, error) {
	canon, err := b.Payload.Canonical()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(b.Index)))
	h.Write([]byte(FormatTimestamp(b.Timestamp)))
	h.Write(canon)
	h.Write([]byte(b.PreviousHash))
	h.Write([]byte(strconv.FormatUint(b.Nonce, 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b *Block) rehash() error {
	hash, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = hash
	return nil
}

// Mine searches nonces upward from the current one until the hash satisfies
// difficulty. It does not return until it succeeds. On a block that is already
// finalized it changes nothing.
func (b *Block) Mine(difficulty int) {
	// A context that never ends and no attempt cap cannot produce an error
	// other than a malformed payload, which NewBlock has already rejected.
	if err := b.MineContext(context.Background(), difficulty, 0); err != nil {
		panic(fmt.Sprintf("chain: mining block %d: %v", b.Index, err))
	}
}

// MineContext is Mine with an optional bound. It stops with ErrMiningCanceled
// when ctx ends and with ErrAttemptsExhausted after maxAttempts nonce
// increments (0 means unbounded). On failure the block keeps the last nonce
// and hash it tried, so it is not finalized.
func (b *Block) MineContext(ctx context.Context, difficulty int, maxAttempts uint64) error {
	if difficulty < 0 {
		return fmt.Errorf("difficulty %d is negative", difficulty)
	}
	// Fields may have changed since the hash was last sealed.
	if err := b.rehash(); err != nil {
		return err
	}

	var attempts uint64
	for !MeetsDifficulty(b.Hash, difficulty) {
		if maxAttempts > 0 && attempts >= maxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, attempts)
		}
		if attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrMiningCanceled, err)
			}
		}
		b.Nonce++
		attempts++
		if err := b.rehash(); err != nil {
			return err
		}
	}
	return nil
}

// Finalized reports whether the stored hash matches the block's fields and
// satisfies difficulty.
func (b *Block) Finalized(difficulty int) bool {
	hash, err := b.ComputeHash()
	if err != nil {
		return false
	}
	return hash == b.Hash && MeetsDifficulty(hash, difficulty)
}

// MeetsDifficulty reports whether hash starts with difficulty '0' characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}

// clone returns a deep copy of b.
func (b *Block) clone() Block {
	out := *b
	out.Payload = b.Payload.Clone()
	return out
}

// merkleRoot digests the canonical payload alone. A block carries a single
// payload, so this stands in for a tree over many transactions.
func merkleRoot(p Payload) (string, error) {
	canon, err := p.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
