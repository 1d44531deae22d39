package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
)

// ErrNotFound occurs when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Badger db implementation
type Badger struct {
	db       *badger.DB
	log      *zap.SugaredLogger
	cancelGC func()
	wg       sync.WaitGroup
}

// NewBadger creates a new badger instance for the given path
func NewBadger(dbPath string, log *zap.SugaredLogger) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at path %s: %w", dbPath, err)
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Badger{
		db:       db,
		log:      log,
		cancelGC: cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rounds := 0
				for b.db.RunValueLogGC(0.5) == nil && ctx.Err() == nil {
					rounds++
				}

				if rounds > 0 {
					b.log.Debugw("badger value log gc", "rounds", rounds)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return b, nil
}

// Close the database
func (b *Badger) Close() error {
	b.cancelGC()
	b.wg.Wait()

	return b.db.Close()
}

func (b *Badger) getJSON(key []byte, dst interface{}) error {
	return b.db.View(func(tx *badger.Txn) error {
		return txGetJSON(tx, key, dst)
	})
}

func (b *Badger) setJSON(key []byte, src interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to JSON marshal value for key %s: %w", string(key), err)
	}

	return b.db.Update(func(tx *badger.Txn) error {
		return tx.Set(key, data)
	})
}

func txGetJSON(tx *badger.Txn, key []byte, dst interface{}) error {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to get value for key %s: %w", string(key), err)
	}

	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dst); err != nil {
			return fmt.Errorf("failed to unmarshal value for key %s: %w", string(key), err)
		}

		return nil
	})
}

// txEachJSON decodes every value under prefix. Values that fail to decode are
// passed to onCorrupt and skipped.
func txEachJSON(tx *badger.Txn, prefix []byte, newValue func() interface{}, fn func(key []byte, value interface{}) error, onCorrupt func(key []byte, err error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := tx.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)

		value := newValue()
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, value)
		})

		if err != nil {
			if onCorrupt != nil {
				onCorrupt(key, err)
			}

			continue
		}

		if err := fn(key, value); err != nil {
			return err
		}
	}

	return nil
}
