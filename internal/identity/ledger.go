package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const ledgerKeyPrefix = "path:"

// Ledger records path to identifier associations in a badger database.
type Ledger struct {
	db        *badger.DB
	generator *Generator
	mu        sync.Mutex
}

// OpenLedger opens (or creates) the ledger database in dir.
func OpenLedger(dir string, gen *Generator) (*Ledger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open identity ledger: %w", err)
	}
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &Ledger{db: db, generator: gen}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Lookup returns the identifier recorded for path.
func (l *Ledger) Lookup(_ context.Context, path string) (string, error) {
	key, err := ledgerKey(path)
	if err != nil {
		return "", err
	}
	var id string
	err = l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoIdentifier
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Assign returns the recorded identifier or records a new one.
func (l *Ledger) Assign(ctx context.Context, path string, force bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !force {
		id, err := l.Lookup(ctx, path)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoIdentifier) {
			return "", err
		}
	}

	key, err := ledgerKey(path)
	if err != nil {
		return "", err
	}
	id, err := l.generator.New()
	if err != nil {
		return "", err
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(id))
	}); err != nil {
		return "", fmt.Errorf("record identifier for %s: %w", path, err)
	}
	return id, nil
}

func ledgerKey(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return []byte(ledgerKeyPrefix + abs), nil
}
