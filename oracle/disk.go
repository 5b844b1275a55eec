package oracle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/succinctlabs/op-succinct-go/preimage"
)

// Disk is a content-addressed cold store: one file per key, named by
// the key's hex encoding, under a root directory. It exists so that
// preimages fetched for one span proof can be reused by the next
// without re-hitting L1/L2 RPCs for data that hasn't changed (e.g. a
// shared L1 header both proofs walk past).
type Disk struct {
	root string
}

// NewDisk opens (and creates, if absent) a Disk store rooted at dir.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("oracle: create disk root %s: %w", dir, err)
	}
	return &Disk{root: dir}, nil
}

func (d *Disk) path(key preimage.Key) string {
	return filepath.Join(d.root, hex.EncodeToString(key.Bytes()))
}

// Get implements ColdStore.
func (d *Disk) Get(key preimage.Key) ([]byte, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("oracle: read %s: %w", d.path(key), err)
	}
	return data, true, nil
}

// Put implements ColdStore. Writes are content-addressed so this is
// naturally idempotent; a concurrent writer of the same key writes the
// same bytes.
func (d *Disk) Put(key preimage.Key, value []byte) error {
	tmp := d.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("oracle: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, d.path(key)); err != nil {
		return fmt.Errorf("oracle: rename %s: %w", tmp, err)
	}
	return nil
}
