// Package oracle implements the in-memory key/value preimage store the
// host populates and the replay client reads from, plus the disk-backed
// snapshot codec used to hand a completed oracle off to the prover.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/succinctlabs/op-succinct-go/preimage"
)

// Store is the merging façade over the hot in-memory layer and the cold
// disk-backed layer, addressed by a single shared handle. Lookups check
// memory first; a miss falls through to disk and, on a hit, is promoted
// into memory so repeat lookups for the same key stay hot.
type Store struct {
	mu     sync.RWMutex
	hot    map[preimage.Key][]byte
	cold   ColdStore
	hits   uint64
	misses uint64
}

// ColdStore is the disk-backed layer's read/write surface. Store only
// needs these two operations; Disk (disk.go) is the concrete
// implementation.
type ColdStore interface {
	Get(key preimage.Key) ([]byte, bool, error)
	Put(key preimage.Key, value []byte) error
}

// New returns a Store with no cold layer; everything lives in memory
// and nothing survives the Store itself.
func New() *Store {
	return &Store{hot: make(map[preimage.Key][]byte)}
}

// NewWithCold returns a Store backed by a cold layer, for callers that
// want lookups to persist across runs (e.g. a warm cache of L1 headers
// shared by consecutive span proofs).
func NewWithCold(cold ColdStore) *Store {
	s := New()
	s.cold = cold
	return s
}

// Put records value under key as given, with no check of key against
// value, and writes it through to the cold layer when there is one.
// Callers are expected to have already derived key
// via the preimage package's constructors (Keccak256Key, Sha256Key, …).
func (s *Store) Put(key preimage.Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hot[key] = value
	if s.cold != nil {
		if err := s.cold.Put(key, value); err != nil {
			return fmt.Errorf("oracle: persist %x: %w", key.Bytes()[:8], err)
		}
	}
	return nil
}

// Get returns the value for key, or ok=false if the key is unknown to
// both layers.
func (s *Store) Get(key preimage.Key) (value []byte, ok bool, err error) {
	s.mu.RLock()
	v, found := s.hot[key]
	s.mu.RUnlock()
	if found {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return v, true, nil
	}

	if s.cold == nil {
		s.mu.Lock()
		s.misses++
		s.mu.Unlock()
		return nil, false, nil
	}

	v, found, err = s.cold.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("oracle: cold lookup %x: %w", key.Bytes()[:8], err)
	}
	if !found {
		s.mu.Lock()
		s.misses++
		s.mu.Unlock()
		return nil, false, nil
	}

	s.mu.Lock()
	s.hot[key] = v
	s.hits++
	s.mu.Unlock()
	return v, true, nil
}

// waitPollInterval is how often WaitFor re-checks the hot layer while
// blocked on a key a concurrent hint handler is expected to populate.
const waitPollInterval = 2 * time.Millisecond

// WaitFor blocks until key is present (checking the cold layer too)
// or ctx is done, whichever comes first. This is how the preimage
// server answers a get(key) for a key whose populating hint is still
// in flight: the deadline on ctx is the run's overall bound, not a
// per-key timeout.
func (s *Store) WaitFor(ctx context.Context, key preimage.Key) ([]byte, error) {
	for {
		value, ok, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return value, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitPollInterval):
		}
	}
}

// Len reports the number of entries currently resident in the hot
// layer. Exposed for the gateway's oracle-size metric.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hot)
}

// Stats returns the running hit/miss counters.
func (s *Store) Stats() (hits, misses uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses
}

// Keys returns every key currently resident in the hot layer, in no
// particular order. Used to serialize the whole snapshot for the proof
// input assembler.
func (s *Store) Keys() []preimage.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]preimage.Key, 0, len(s.hot))
	for k := range s.hot {
		keys = append(keys, k)
	}
	return keys
}
