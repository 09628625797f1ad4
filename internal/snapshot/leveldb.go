package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

const (
	snapshotPrefix = "snapshot:"
	latestKey      = "snapshot-latest"
)

// LevelDBStore keeps snapshots in an embedded LevelDB database. Each snapshot
// is stored as JSON under "snapshot:<id>"; "snapshot-latest" names the newest.
type LevelDBStore struct {
	// mu serializes Save so the latest pointer is read and written atomically.
	mu     sync.Mutex
	db     *leveldb.DB
	logger *zap.Logger
}

// OpenLevelDB opens (or creates) a LevelDB store at path.
func OpenLevelDB(path string, logger *zap.Logger) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db, logger: logger}, nil
}

// NewLevelDBStore opens a LevelDB store over an arbitrary goleveldb storage,
// such as storage.NewMemStorage() in tests.
func NewLevelDBStore(stor storage.Storage, logger *zap.Logger) (*LevelDBStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDBStore{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// Save implements Store. The snapshot and the latest pointer are written in
// one batch.
func (s *LevelDBStore) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	batch.Put([]byte(snapshotPrefix+snap.ID), data)

	cur, err := s.latest()
	switch {
	case errors.Is(err, ErrNotFound):
		batch.Put([]byte(latestKey), []byte(snap.ID))
	case err != nil:
		return err
	case !snap.TakenAt.Before(cur.TakenAt):
		batch.Put([]byte(latestKey), []byte(snap.ID))
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}
	s.logger.Info("snapshot saved",
		zap.String("id", snap.ID),
		zap.Int("blocks", len(snap.Blocks)),
		zap.String("backend", "leveldb"),
	)
	return nil
}

// Get implements Store.
func (s *LevelDBStore) Get(_ context.Context, id string) (*Snapshot, error) {
	return s.get(id)
}

// Latest implements Store.
func (s *LevelDBStore) Latest(_ context.Context) (*Snapshot, error) {
	return s.latest()
}

func (s *LevelDBStore) latest() (*Snapshot, error) {
	id, err := s.db.Get([]byte(latestKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot pointer: %w", err)
	}
	return s.get(string(id))
}

func (s *LevelDBStore) get(id string) (*Snapshot, error) {
	data, err := s.db.Get([]byte(snapshotPrefix+id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// List implements Store. Every snapshot is decoded, which is fine for the
// handful kept by a single node.
func (s *LevelDBStore) List(_ context.Context, limit int) ([]Summary, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(snapshotPrefix)), nil)
	defer iter.Release()

	var out []Summary
	for iter.Next() {
		var snap Snapshot
		if err := json.Unmarshal(iter.Value(), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", iter.Key(), err)
		}
		out = append(out, snap.Summary())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return newestFirst(out, limit), nil
}
