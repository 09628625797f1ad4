package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxDifficulty is the length of a hex-encoded SHA-256 digest. Higher
// difficulties can never be satisfied.
const MaxDifficulty = 64

// GenesisPatentID identifies the sentinel record held by the genesis block.
const GenesisPatentID = "GENESIS-000"

// Ledger is the append-only, proof-of-work chain of blocks. It is safe for
// concurrent use: appends are serialized and readers never observe a
// half-finished append.
type Ledger struct {
	mu          sync.RWMutex
	blocks      []*Block
	difficulty  int
	maxAttempts uint64
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for the genesis timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for ledger events.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMaxAttempts caps the nonce search of every append. Zero means unbounded.
func WithMaxAttempts(n uint64) Option {
	return func(l *Ledger) { l.maxAttempts = n }
}

func newLedger(difficulty int, opts []Option) (*Ledger, error) {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("difficulty must be between 0 and %d, got %d", MaxDifficulty, difficulty)
	}
	l := &Ledger{
		difficulty: difficulty,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// New creates a Ledger and mines its genesis block at difficulty.
func New(difficulty int, opts ...Option) (*Ledger, error) {
	l, err := newLedger(difficulty, opts)
	if err != nil {
		return nil, err
	}

	ts := l.now().UTC()
	genesis, err := NewBlock(0, ts, genesisPayload(ts), GenesisPreviousHash, 0)
	if err != nil {
		return nil, fmt.Errorf("build genesis block: %w", err)
	}
	genesis.Mine(l.difficulty)
	l.blocks = append(l.blocks, genesis)

	l.logger.Debug("genesis block mined",
		zap.Int("difficulty", l.difficulty),
		zap.Uint64("nonce", genesis.Nonce),
		zap.String("hash", genesis.Hash),
	)
	return l, nil
}

// genesisPayload is the fixed system-authored record held by block 0.
func genesisPayload(ts time.Time) Payload {
	return Payload{
		"title":            String("Genesis Block"),
		"description":      String("First block in the patent blockchain"),
		"doc_hash":         String(""),
		"patent_type":      String("Genesis"),
		"is_on_blockchain": Bool(true),
		"patent_id":        String(GenesisPatentID),
		"inventor":         String("System"),
		"status":           String("Active"),
		"priority":         String("Normal"),
		"timestamp":        String(FormatTimestamp(ts)),
	}
}

// Restore rebuilds a ledger from a sequence of blocks, such as a snapshot.
// The blocks must start at a genesis block whose hash matches its contents,
// be numbered consecutively, carry the merkle root of their payload, satisfy
// difficulty and pass Verify.
func Restore(difficulty int, blocks []Block, opts ...Option) (*Ledger, error) {
	l, err := newLedger(difficulty, opts)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks", ErrInvalidSnapshot)
	}
	if blocks[0].PreviousHash != GenesisPreviousHash {
		return nil, fmt.Errorf("%w: first block is not a genesis block", ErrInvalidSnapshot)
	}

	l.blocks = make([]*Block, 0, len(blocks))
	for i := range blocks {
		b := blocks[i].clone()
		if b.Index != i {
			return nil, fmt.Errorf("%w: block at position %d has index %d", ErrInvalidSnapshot, i, b.Index)
		}
		if !MeetsDifficulty(b.Hash, difficulty) {
			return nil, fmt.Errorf("%w: block %d does not meet difficulty %d", ErrInvalidSnapshot, i, difficulty)
		}
		root, err := merkleRoot(b.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrInvalidSnapshot, i, err)
		}
		if root != b.MerkleRoot {
			return nil, fmt.Errorf("%w: block %d merkle root does not match its payload", ErrInvalidSnapshot, i)
		}
		l.blocks = append(l.blocks, &b)
	}
	// Verify starts after genesis, so the genesis hash is checked here.
	if got, err := l.blocks[0].ComputeHash(); err != nil || got != l.blocks[0].Hash {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, &ValidationError{Index: 0, Err: ErrTamperedBlock})
	}
	if err := l.verifyLocked(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	l.logger.Info("ledger restored",
		zap.Int("blocks", len(l.blocks)),
		zap.String("tip", l.tipLocked().Hash),
	)
	return l, nil
}

// Difficulty returns the number of leading zero hex digits every block needs.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

func (l *Ledger) tipLocked() *Block {
	return l.blocks[len(l.blocks)-1]
}

// Tip returns a copy of the most recently appended block.
func (l *Ledger) Tip() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tipLocked().clone()
}

// TipHash returns the hash new blocks will link to.
func (l *Ledger) TipHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tipLocked().Hash
}

// Len returns the number of blocks, genesis included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Block returns a copy of the block at index.
func (l *Ledger) Block(index int) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.blocks) {
		return Block{}, false
	}
	return l.blocks[index].clone(), true
}

// Blocks returns copies of all blocks in chain order.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.clone()
	}
	return out
}

// Append notarizes payload in a new block. The ledger assigns the index and
// the previous hash, then mines the block before adding it. On error the chain
// is unchanged.
func (l *Ledger) Append(ctx context.Context, timestamp time.Time, payload Payload) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := NewBlock(len(l.blocks), timestamp, payload, l.tipLocked().Hash, 0)
	if err != nil {
		return Block{}, err
	}
	return l.pushLocked(ctx, b)
}

// AppendBlock adds a caller-built candidate. The candidate's previous hash is
// replaced with the current tip hash and its nonce is reset before mining, so
// whatever linkage the caller supplied is discarded. The candidate itself is
// not modified; the finalized copy is returned.
func (l *Ledger) AppendBlock(ctx context.Context, candidate *Block) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if candidate.Index != len(l.blocks) {
		return Block{}, fmt.Errorf("%w: got %d, want %d", ErrIndexMismatch, candidate.Index, len(l.blocks))
	}

	b := candidate.clone()
	b.PreviousHash = l.tipLocked().Hash
	b.Nonce = 0
	root, err := merkleRoot(b.Payload)
	if err != nil {
		return Block{}, err
	}
	b.MerkleRoot = root
	if err := b.rehash(); err != nil {
		return Block{}, err
	}
	return l.pushLocked(ctx, &b)
}

func (l *Ledger) pushLocked(ctx context.Context, b *Block) (Block, error) {
	start := time.Now()
	if err := b.MineContext(ctx, l.difficulty, l.maxAttempts); err != nil {
		l.logger.Warn("mining aborted",
			zap.Int("index", b.Index),
			zap.Uint64("nonce", b.Nonce),
			zap.Error(err),
		)
		return Block{}, err
	}
	l.blocks = append(l.blocks, b)

	l.logger.Debug("block appended",
		zap.Int("index", b.Index),
		zap.Uint64("nonce", b.Nonce),
		zap.String("hash", b.Hash),
		zap.Duration("mining_time", time.Since(start)),
	)
	return b.clone(), nil
}

// ValidationError locates the first integrity violation found by Verify.
type ValidationError struct {
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Verify walks the chain from block 1 and checks that every stored hash
// matches the block's fields and that every block links to its predecessor.
// It returns the first violation as a *ValidationError, or nil.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verifyLocked()
}

func (l *Ledger) verifyLocked() error {
	for i := 1; i < len(l.blocks); i++ {
		curr, prev := l.blocks[i], l.blocks[i-1]

		hash, err := curr.ComputeHash()
		if err != nil || hash != curr.Hash {
			return &ValidationError{Index: i, Err: ErrTamperedBlock}
		}
		if curr.PreviousHash != prev.Hash {
			return &ValidationError{Index: i, Err: ErrBrokenLinkage}
		}
	}
	return nil
}

// IsValid reports whether Verify finds no violation.
func (l *Ledger) IsValid() bool {
	return l.Verify() == nil
}

// Stats summarizes the chain.
type Stats struct {
	BlockCount              int     `json:"block_count"`
	RecordCount             int     `json:"record_count"`
	Valid                   bool    `json:"valid"`
	TotalNonce              uint64  `json:"total_nonce"`
	AvgBlockIntervalSeconds float64 `json:"avg_block_interval_seconds"`
	Difficulty              int     `json:"difficulty"`
	TipHash                 string  `json:"tip_hash"`
}

// Stats derives aggregate figures without modifying the ledger. Block
// intervals are taken between neighbours in chain order, whatever their
// timestamps say.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		BlockCount:  len(l.blocks),
		RecordCount: len(l.blocks) - 1,
		Valid:       l.verifyLocked() == nil,
		Difficulty:  l.difficulty,
		TipHash:     l.tipLocked().Hash,
	}
	for _, b := range l.blocks {
		s.TotalNonce += b.Nonce
	}
	if n := len(l.blocks); n > 1 {
		// Summed per pair in seconds; a Duration sum can overflow for
		// far-apart caller timestamps.
		var total float64
		for i := 1; i < n; i++ {
			total += l.blocks[i].Timestamp.Sub(l.blocks[i-1].Timestamp).Seconds()
		}
		s.AvgBlockIntervalSeconds = total / float64(n-1)
	}
	return s
}

// IsIntegrityError reports whether err came from Verify.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrTamperedBlock) || errors.Is(err, ErrBrokenLinkage)
}
