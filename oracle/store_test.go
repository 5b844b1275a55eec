package oracle

import (
	"bytes"
	"testing"

	"github.com/succinctlabs/op-succinct-go/preimage"
)

func TestStoreHotLookup(t *testing.T) {
	s := New()
	key := preimage.Keccak256Key([]byte("hello"))
	if err := s.Put(key, []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}

	v, ok, err := s.Get(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("value mismatch: %q", v)
	}
	if n := s.Len(); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}

func TestStoreMissIsNotError(t *testing.T) {
	s := New()
	_, ok, err := s.Get(preimage.GlobalGenericKey("missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestStoreColdPromotion(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	key := preimage.Keccak256Key([]byte("cold"))
	if err := disk.Put(key, []byte("cold")); err != nil {
		t.Fatalf("disk put: %v", err)
	}

	s := NewWithCold(disk)
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("cold")) {
		t.Fatalf("value mismatch: %q", v)
	}
	if n := s.Len(); n != 1 {
		t.Fatalf("expected promotion into hot layer, len = %d", n)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	keys := []preimage.Key{
		preimage.Keccak256Key([]byte("a")),
		preimage.Keccak256Key([]byte("b")),
		preimage.GlobalGenericKey("boot"),
	}
	for _, k := range keys {
		if err := s.Put(k, k.Bytes()); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := s.WriteSnapshot(&buf); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	loaded, err := LoadSnapshot(&buf)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded.Len() != len(keys) {
		t.Fatalf("loaded len = %d, want %d", loaded.Len(), len(keys))
	}
	for _, k := range keys {
		v, ok, err := loaded.Get(k)
		if err != nil || !ok {
			t.Fatalf("missing key after round trip: ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(v, k.Bytes()) {
			t.Fatalf("value mismatch for %x", k.Bytes())
		}
	}
}
