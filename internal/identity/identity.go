package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// ErrNoIdentifier reports that no identifier is associated with a file.
var ErrNoIdentifier = errors.New("no identifier associated")

// Assigner returns the identifier durably associated with path, minting and
// recording one when none exists or when force is set. Repeated calls without
// force return the same value.
type Assigner interface {
	Assign(ctx context.Context, path string, force bool) (string, error)
}

// Lookuper reads an existing identifier without minting one. Implementations
// return ErrNoIdentifier when the file has none.
type Lookuper interface {
	Lookup(ctx context.Context, path string) (string, error)
}

// Generator mints time-ordered identifiers: the 32 lowercase hex digits of a
// UUIDv7, so lexical order follows mint order at millisecond resolution.
type Generator struct {
	mu     sync.Mutex
	source io.Reader
}

// NewGenerator returns a Generator reading randomness from source. A nil
// source uses crypto/rand.
func NewGenerator(source io.Reader) *Generator {
	if source == nil {
		source = rand.Reader
	}
	return &Generator{source: source}
}

// New mints an identifier.
func (g *Generator) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewV7FromReader(g.source)
	if err != nil {
		return "", fmt.Errorf("mint identifier: %w", err)
	}
	return hex.EncodeToString(id[:]), nil
}

// ReadOnly adapts a Lookuper into an Assigner that never writes. Files without
// an identifier yield an empty string and no error.
type ReadOnly struct {
	Source Lookuper
}

// Assign ignores force; nothing is ever minted.
func (r ReadOnly) Assign(ctx context.Context, path string, _ bool) (string, error) {
	if r.Source == nil {
		return "", nil
	}
	id, err := r.Source.Lookup(ctx, path)
	if errors.Is(err, ErrNoIdentifier) {
		return "", nil
	}
	return id, err
}
