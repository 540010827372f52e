// ./internal/state/level.go
package state

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/elys-network/crabfarm/internal/types"
)

var (
	keyParams       = []byte("params")
	keyEventSeq     = []byte("meta/event-seq")
	prefixPool      = []byte("p/")
	prefixPosition  = []byte("u/")
	prefixBalance   = []byte("b/")
	prefixEvent     = []byte("e/")
	prefixSnapshot  = []byte("s/")
	balanceKeySplit = "\x00"
)

// LevelStore is the embedded store backend.
type LevelStore struct {
	db *leveldb.DB

	mu       sync.Mutex
	eventSeq uint64
	snapSeq  uint64
}

var _ Store = (*LevelStore)(nil)

// OpenLevelStore opens (or creates) a leveldb database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	s, err := newLevelStore(db)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Opened leveldb store")
	return s, nil
}

// OpenMemLevelStore opens a leveldb database over in-memory storage.
func OpenMemLevelStore() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return newLevelStore(db)
}

func newLevelStore(db *leveldb.DB) (*LevelStore, error) {
	s := &LevelStore{db: db}
	raw, err := db.Get(keyEventSeq, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("failed to read event sequence: %w", err)
	default:
		s.eventSeq = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

func (s *LevelStore) Apply(_ context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := new(leveldb.Batch)
	if batch.Params != nil {
		if err := putJSON(b, keyParams, batch.Params); err != nil {
			return err
		}
	}
	for _, p := range batch.Pools {
		if err := putJSON(b, poolKey(p.ID), p); err != nil {
			return err
		}
	}
	for _, rec := range batch.Positions {
		if err := putJSON(b, positionKey(rec.PositionKey), rec.UserPosition); err != nil {
			return err
		}
	}
	for _, bal := range batch.Balances {
		b.Put(balanceKey(bal.Owner, bal.Denom), []byte(intString(bal.Amount)))
	}
	seq := s.eventSeq
	for _, ev := range batch.Events {
		seq++
		if err := putJSON(b, append(append([]byte{}, prefixEvent...), u64(seq)...), ev); err != nil {
			return err
		}
	}
	if seq != s.eventSeq {
		b.Put(keyEventSeq, u64(seq))
	}

	if err := s.db.Write(b, nil); err != nil {
		return fmt.Errorf("%w: leveldb batch: %w", types.ErrStoreWrite, err)
	}
	s.eventSeq = seq
	return nil
}

func (s *LevelStore) LoadParams(context.Context) (*types.FarmParams, error) {
	raw, err := s.db.Get(keyParams, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read params: %w", err)
	}
	var p types.FarmParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return &p, nil
}

func (s *LevelStore) LoadPools(context.Context) ([]types.Pool, error) {
	var pools []types.Pool
	err := s.scan(prefixPool, false, 0, func(_, value []byte) error {
		var p types.Pool
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("failed to unmarshal pool: %w", err)
		}
		pools = append(pools, p)
		return nil
	})
	return pools, err
}

func (s *LevelStore) LoadPositions(context.Context) ([]types.PositionRecord, error) {
	var out []types.PositionRecord
	err := s.scan(prefixPosition, false, 0, func(key, value []byte) error {
		rest := key[len(prefixPosition):]
		if len(rest) < 8 {
			return fmt.Errorf("malformed position key %x", key)
		}
		rec := types.PositionRecord{PositionKey: types.PositionKey{
			PoolID: types.PoolID(binary.BigEndian.Uint64(rest[:8])),
			User:   string(rest[8:]),
		}}
		if err := json.Unmarshal(value, &rec.UserPosition); err != nil {
			return fmt.Errorf("failed to unmarshal position: %w", err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *LevelStore) LoadBalances(context.Context) ([]types.Balance, error) {
	var out []types.Balance
	err := s.scan(prefixBalance, false, 0, func(key, value []byte) error {
		owner, denom, ok := strings.Cut(string(key[len(prefixBalance):]), balanceKeySplit)
		if !ok {
			return fmt.Errorf("malformed balance key %q", key)
		}
		amount, err := parseInt("amount", string(value))
		if err != nil {
			return err
		}
		out = append(out, types.Balance{Owner: owner, Denom: denom, Amount: amount})
		return nil
	})
	return out, err
}

func (s *LevelStore) RecentEvents(_ context.Context, limit int) ([]types.Event, error) {
	var out []types.Event
	err := s.scan(prefixEvent, true, clampLimit(limit), func(_, value []byte) error {
		var ev types.Event
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

func (s *LevelStore) SaveSnapshots(_ context.Context, snapshots []types.PoolSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := new(leveldb.Batch)
	seq := s.snapSeq
	for _, snap := range snapshots {
		seq++
		key := append(append(append([]byte{}, prefixSnapshot...), u64(uint64(snap.PoolID))...), u64(uint64(snap.Timestamp.UnixNano()))...)
		snap.SnapshotID = int64(seq)
		if err := putJSON(b, key, snap); err != nil {
			return err
		}
	}
	if err := s.db.Write(b, nil); err != nil {
		return fmt.Errorf("%w: leveldb snapshots: %w", types.ErrStoreWrite, err)
	}
	s.snapSeq = seq
	return nil
}

func (s *LevelStore) RecentSnapshots(_ context.Context, poolID types.PoolID, limit int) ([]types.PoolSnapshot, error) {
	prefix := append(append([]byte{}, prefixSnapshot...), u64(uint64(poolID))...)
	var out []types.PoolSnapshot
	err := s.scan(prefix, true, clampLimit(limit), func(_, value []byte) error {
		var snap types.PoolSnapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
		return nil
	})
	return out, err
}

func (s *LevelStore) Ping(context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

// scan walks keys under prefix in order (or reverse), stopping after limit entries when limit > 0.
func (s *LevelStore) scan(prefix []byte, reverse bool, limit int, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	next := iter.Next
	ok := iter.First()
	if reverse {
		next = iter.Prev
		ok = iter.Last()
	}
	count := 0
	for ; ok; ok = next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return iter.Error()
}

func putJSON(b *leveldb.Batch, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	b.Put(key, raw)
	return nil
}

func u64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func poolKey(id types.PoolID) []byte {
	return append(append([]byte{}, prefixPool...), u64(uint64(id))...)
}

func positionKey(k types.PositionKey) []byte {
	key := append(append([]byte{}, prefixPosition...), u64(uint64(k.PoolID))...)
	return append(key, k.User...)
}

func balanceKey(owner, denom string) []byte {
	return []byte(string(prefixBalance) + owner + balanceKeySplit + denom)
}
