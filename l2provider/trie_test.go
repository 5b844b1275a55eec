package l2provider

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// fakeSource is an in-memory NodeSource/NodeHinter backed by a plain
// map, keyed by the keccak256 of each node's RLP encoding, for exercising
// Walker without any real RPC traffic.
type fakeSource struct {
	nodes map[common.Hash][]byte
	hints int
}

func (f *fakeSource) TrieNodePreimage(hash common.Hash) ([]byte, error) {
	raw, ok := f.nodes[hash]
	if !ok {
		return nil, errNotFound
	}
	return raw, nil
}

func (f *fakeSource) BytecodeByHash(hash common.Hash) ([]byte, error) { return nil, errNotFound }
func (f *fakeSource) HintTrieNode(hash common.Hash) error             { f.hints++; return nil }
func (f *fakeSource) HintAccountProof(uint64, common.Address) error   { return nil }
func (f *fakeSource) HintStorageProof(uint64, common.Address, common.Hash) error {
	return nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

// encodeHexPrefix mirrors decodeHexPrefix in trie.go, for constructing
// a single-leaf trie by hand.
func encodeHexPrefix(nibbles []byte, isLeaf bool) []byte {
	odd := len(nibbles)%2 == 1
	flag := byte(0)
	if isLeaf {
		flag |= 0x20
	}
	if odd {
		flag |= 0x10
	}
	out := []byte{}
	if odd {
		out = append(out, flag|nibbles[0])
		nibbles = nibbles[1:]
	} else {
		out = append(out, flag)
	}
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out
}

func TestWalkerResolvesSingleLeaf(t *testing.T) {
	key := []byte{0x01}
	value := []byte("hello world")

	hpKey := encodeHexPrefix(keyToNibbles(key), true)
	leafRaw, err := rlp.EncodeToBytes([]interface{}{hpKey, value})
	if err != nil {
		t.Fatalf("encode leaf: %v", err)
	}
	leafHash := crypto.Keccak256Hash(leafRaw)

	src := &fakeSource{nodes: map[common.Hash][]byte{leafHash: leafRaw}}
	w := NewWalker(src, src)

	got, err := w.Get(leafHash, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("value = %q", got)
	}
	if src.hints == 0 {
		t.Fatal("expected at least one hint to be emitted")
	}
}

func TestWalkerMissingKeyReturnsNil(t *testing.T) {
	key := []byte{0x02}
	hpKey := encodeHexPrefix(keyToNibbles([]byte{0x01}), true)
	leafRaw, _ := rlp.EncodeToBytes([]interface{}{hpKey, []byte("x")})
	leafHash := crypto.Keccak256Hash(leafRaw)

	src := &fakeSource{nodes: map[common.Hash][]byte{leafHash: leafRaw}}
	w := NewWalker(src, src)

	got, err := w.Get(leafHash, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %q", got)
	}
}
