package memstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	Dir            string        // data directory; ignored when InMemory
	InMemory       bool          // keep everything in RAM (tests)
	GCInterval     time.Duration // value-log GC interval (default 10m, 0 disables)
	GCDiscardRatio float64       // default 0.5
}

// Badger stores entries in an embedded Badger database with per-entry TTL.
type Badger struct {
	db  *badger.DB
	cfg BadgerConfig
	log *zap.Logger
}

// OpenBadger opens (or creates) a Badger store.
func OpenBadger(cfg BadgerConfig, log *zap.Logger) (*Badger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = 0.5
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("memstore: badger dir is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("memstore: create badger dir %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("memstore: open badger: %w", err)
	}
	return &Badger{db: db, cfg: cfg, log: log.Named("badger")}, nil
}

// Store writes value under key with Badger's native TTL.
func (b *Badger) Store(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("memstore: set %q: %w", key, err)
	}
	return nil
}

// Retrieve reads key. Expired entries are reported as not found by Badger.
func (b *Badger) Retrieve(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("memstore: get %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memstore: get %q: %w", key, err)
	}
	return out, nil
}

// RunGC runs value-log garbage collection every GCInterval until ctx is
// cancelled. Call in a goroutine. Disabled for in-memory stores.
func (b *Badger) RunGC(ctx context.Context) {
	if b.cfg.InMemory || b.cfg.GCInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Keep collecting while Badger finds rewritable files.
			for b.db.RunValueLogGC(b.cfg.GCDiscardRatio) == nil {
			}
			b.log.Debug("value log gc pass complete")
		}
	}
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
