package testsupport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// StubAssigner hands out identifiers derived from the file path, so results
// do not depend on call order. Forcing bumps a per-path generation.
type StubAssigner struct {
	mu          sync.Mutex
	generations map[string]int
	calls       int
	// Fail maps base names to the error returned for them.
	Fail map[string]error
}

// NewStubAssigner returns an empty StubAssigner.
func NewStubAssigner() *StubAssigner {
	return &StubAssigner{generations: map[string]int{}}
}

func (s *StubAssigner) Assign(ctx context.Context, path string, force bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.Fail[filepath.Base(path)]; ok {
		return "", err
	}
	if s.generations == nil {
		s.generations = map[string]int{}
	}
	if force {
		s.generations[path]++
	}
	return StubID(path, s.generations[path]), nil
}

// Calls reports how many times Assign ran.
func (s *StubAssigner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubID is the identifier StubAssigner returns for path at a generation.
func StubID(path string, generation int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", path, generation)))
	return hex.EncodeToString(sum[:16])
}

// ErrStubMint is returned by FailingAssigner.
var ErrStubMint = errors.New("stub: mint failed")

// FailingAssigner fails every call.
type FailingAssigner struct{}

func (FailingAssigner) Assign(context.Context, string, bool) (string, error) {
	return "", ErrStubMint
}
