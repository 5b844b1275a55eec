package oracle

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/succinctlabs/op-succinct-go/preimage"
)

// snapshotRecord is one frame of a serialized oracle: a key and its
// value, written one at a time so a reader can stream a snapshot
// without holding the whole thing in memory at once. gob is this
// repo's honest stand-in for a zero-copy archival format — it is not
// the real prover's wire format, but it gives the assembler the same
// frame-at-a-time read/write shape.
type snapshotRecord struct {
	Key   preimage.Key
	Value []byte
}

// WriteSnapshot serializes every key currently resident in the store to
// w, one frame per entry.
func (s *Store) WriteSnapshot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := gob.NewEncoder(bw)
	for _, key := range s.Keys() {
		value, ok, err := s.Get(key)
		if err != nil {
			return fmt.Errorf("oracle: snapshot lookup %x: %w", key.Bytes()[:8], err)
		}
		if !ok {
			continue
		}
		if err := enc.Encode(snapshotRecord{Key: key, Value: value}); err != nil {
			return fmt.Errorf("oracle: encode frame: %w", err)
		}
	}
	return bw.Flush()
}

// LoadSnapshot reads frames from r, populating a fresh Store. Used by
// the proof-input assembler's tests and by any tool that wants to
// inspect a captured oracle offline.
func LoadSnapshot(r io.Reader) (*Store, error) {
	s := New()
	dec := gob.NewDecoder(r)
	for {
		var rec snapshotRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("oracle: decode frame: %w", err)
		}
		if err := s.Put(rec.Key, rec.Value); err != nil {
			return nil, err
		}
	}
	return s, nil
}
