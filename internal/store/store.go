// Package store implements the durable per-identity append-only feed
// store: primary feed records, the peer and blob-status indexes, the
// global-order index, and commit notification, all atop a single
// SQLite-backed ordered key-value table with a prefix-partitioned key
// space.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/solar-social/solar/internal/broker"
	"github.com/solar-social/solar/internal/indexes"
	"github.com/solar-social/solar/pkg/logging"
)

// Config configures a Store.
type Config struct {
	// Path is the filesystem path of the SQLite database file.
	Path string
}

// Store is the feed store: the database handle, the secondary-index
// collaborator and the per-author lock set are fully populated once Open
// returns without error, so none of them is ever nil at call time. The
// commit broker is the one field that may be nil.
type Store struct {
	db      *sql.DB
	indexes *indexes.Indexes
	broker  *broker.Hub
	locks   *authorLocks
	log     *logging.Logger

	// globalMu serializes the read-modify-write of the single global
	// order counter. Per-author appends may proceed concurrently; only
	// this counter's increment needs to be fully serialized.
	globalMu sync.Mutex
}

// Open opens the underlying database at cfg.Path, opens the secondary
// index collaborator, and builds the global-order index on first open.
// hub may be nil, meaning no commit notification is configured; this is
// a valid configuration exercised by tests.
func Open(cfg Config, hub *broker.Hub) (*Store, error) {
	log := logging.GetDefault().Component("store")

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %w", ErrStorageOpen, err)
		}
	}

	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStorageOpen, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrStorageOpen, err)
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", ErrStorageOpen, err)
	}

	ix, err := indexes.Open(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open indexes: %w", ErrStorageOpen, err)
	}

	s := &Store{
		db:      db,
		indexes: ix,
		broker:  hub,
		locks:   newAuthorLocks(),
		log:     log,
	}

	if err := s.bootstrapGlobalOrderIfNeeded(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database handle. It does not close the commit
// broker, which is shared and may outlive this store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrStorageIO, err)
	}
	return nil
}

func (s *Store) bootstrapGlobalOrderIfNeeded(ctx context.Context) error {
	seq, err := s.getGlobalOrderSeq(ctx)
	if err != nil {
		return err
	}
	if seq != 0 {
		s.log.Info("global order index already built", "sequence", seq)
		return nil
	}

	_, built, err := kvGet(ctx, s.db, []byte(globalOrderKey))
	if err != nil {
		return err
	}
	if built {
		return nil
	}

	if err := s.buildGlobalOrderIndex(ctx); err != nil {
		return err
	}

	if err := kvPut(ctx, s.db, []byte(globalOrderKey), []byte{1}); err != nil {
		return fmt.Errorf("%w: set bootstrap flag: %w", ErrStorageIO, err)
	}
	return nil
}
