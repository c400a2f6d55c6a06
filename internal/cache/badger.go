package cache

import (
	"context"
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore persists the tiered cache in an embedded BadgerDB, surviving
// process restarts. Entries carry the tier TTL natively so expiry is
// enforced by the store itself.
type BadgerStore struct {
	db   *badger.DB
	ttls map[Tier]time.Duration
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db, ttls: DefaultTTLs()}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string, tier Tier) (map[string]any, bool) {
	if data, ok := s.lookup(key, tier); ok {
		return data, true
	}
	if tier == TierHot {
		return s.lookup(key, TierWarm)
	}
	return nil, false
}

func (s *BadgerStore) Set(_ context.Context, key string, data map[string]any, tier Tier) {
	blob, err := json.Marshal(data)
	if err != nil {
		return
	}
	// Write failures are swallowed; the cache must never fail a query.
	_ = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(tierKey(key, tier)), blob).WithTTL(s.ttls[tier])
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) lookup(key string, tier Tier) (map[string]any, bool) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tierKey(key, tier)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, false
	}
	return data, true
}
