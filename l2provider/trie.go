package l2provider

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// NodeSource resolves trie node and bytecode preimages by hash. The
// provider satisfies this for the replay client's trie walker; kept as
// its own interface (design note: capability, not inheritance) so a
// walker can be built against any source, not just a live provider.
type NodeSource interface {
	TrieNodePreimage(hash common.Hash) ([]byte, error)
	BytecodeByHash(hash common.Hash) ([]byte, error)
}

// NodeHinter tells the host to pre-populate the oracle with data a
// trie walk is about to need. Each call blocks until the host has
// acknowledged the hint; the subsequent NodeSource call is then
// expected to hit.
type NodeHinter interface {
	HintTrieNode(hash common.Hash) error
	HintAccountProof(blockNumber uint64, address common.Address) error
	HintStorageProof(blockNumber uint64, address common.Address, slot common.Hash) error
}

// Walker reads a Merkle Patricia Trie one hash-referenced node at a
// time, via a capability pair rather than holding the whole trie in
// memory. It mirrors the read path of go-ethereum's trie encoding:
// a node is RLP-encoded either as a 17-element branch or a 2-element
// leaf/extension with a hex-prefix-encoded key in the first slot.
type Walker struct {
	source NodeSource
	hinter NodeHinter
}

// NewWalker builds a trie walker over source, emitting hints via hinter
// before each node fetch the source is expected to satisfy.
func NewWalker(source NodeSource, hinter NodeHinter) *Walker {
	return &Walker{source: source, hinter: hinter}
}

// Get resolves key against the trie rooted at root, walking node by
// node from the root hash. Returns (nil, nil) on a well-formed miss.
func (w *Walker) Get(root common.Hash, key []byte) ([]byte, error) {
	return w.get(root, keyToNibbles(key))
}

func (w *Walker) get(nodeHash common.Hash, nibbles []byte) ([]byte, error) {
	if (nodeHash == common.Hash{}) {
		return nil, nil
	}
	if err := w.hinter.HintTrieNode(nodeHash); err != nil {
		return nil, fmt.Errorf("l2provider: hint trie node %s: %w", nodeHash, err)
	}
	raw, err := w.source.TrieNodePreimage(nodeHash)
	if err != nil {
		return nil, fmt.Errorf("l2provider: fetch trie node %s: %w", nodeHash, err)
	}

	node, err := decodeNode(raw)
	if err != nil {
		return nil, fmt.Errorf("l2provider: decode trie node %s: %w", nodeHash, err)
	}

	switch n := node.(type) {
	case branchNode:
		if len(nibbles) == 0 {
			return n.value, nil
		}
		child := n.children[nibbles[0]]
		if len(child) == 0 {
			return nil, nil
		}
		return w.followChild(child, nibbles[1:])
	case shortNode:
		if n.isLeaf {
			if bytes.Equal(n.key, nibbles) {
				return n.value, nil
			}
			return nil, nil
		}
		if len(nibbles) < len(n.key) || !bytes.Equal(nibbles[:len(n.key)], n.key) {
			return nil, nil
		}
		return w.followChild(n.value, nibbles[len(n.key):])
	default:
		return nil, fmt.Errorf("l2provider: unrecognized trie node shape")
	}
}

// followChild resolves a child reference, which is either a 32-byte
// hash (out-of-line node) or, for short encodings, the node's RLP
// bytes embedded directly. This walker only follows hash references,
// matching the shape every real state/storage trie node above the
// embedding threshold takes.
func (w *Walker) followChild(child []byte, nibbles []byte) ([]byte, error) {
	if len(child) != 32 {
		return nil, fmt.Errorf("l2provider: embedded trie nodes are not supported")
	}
	return w.get(common.BytesToHash(child), nibbles)
}

type branchNode struct {
	children [16][]byte
	value    []byte
}

type shortNode struct {
	key    []byte // nibbles, already hex-prefix-decoded
	value  []byte // leaf value, or child reference for an extension
	isLeaf bool
}

// decodeNode parses a raw RLP-encoded trie node into either a 17-slot
// branch or a hex-prefix-encoded leaf/extension.
func decodeNode(raw []byte) (any, error) {
	var elems []rlp.RawValue
	if err := rlp.DecodeBytes(raw, &elems); err != nil {
		return nil, fmt.Errorf("rlp decode node: %w", err)
	}

	switch len(elems) {
	case 17:
		var n branchNode
		for i := 0; i < 16; i++ {
			var ref []byte
			if err := rlp.DecodeBytes(elems[i], &ref); err != nil {
				return nil, fmt.Errorf("rlp decode branch slot %d: %w", i, err)
			}
			n.children[i] = ref
		}
		var value []byte
		if err := rlp.DecodeBytes(elems[16], &value); err != nil {
			return nil, fmt.Errorf("rlp decode branch value: %w", err)
		}
		n.value = value
		return n, nil
	case 2:
		var hpKey []byte
		if err := rlp.DecodeBytes(elems[0], &hpKey); err != nil {
			return nil, fmt.Errorf("rlp decode node key: %w", err)
		}
		var value []byte
		if err := rlp.DecodeBytes(elems[1], &value); err != nil {
			return nil, fmt.Errorf("rlp decode node value: %w", err)
		}
		key, isLeaf := decodeHexPrefix(hpKey)
		return shortNode{key: key, value: value, isLeaf: isLeaf}, nil
	default:
		return nil, fmt.Errorf("trie node has %d elements, want 2 or 17", len(elems))
	}
}

// keyToNibbles expands a byte key into its two-nibbles-per-byte form.
func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, 0, len(key)*2)
	for _, b := range key {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles
}

// decodeHexPrefix reverses the hex-prefix encoding used by go-ethereum
// style tries to pack a nibble path plus an odd/leaf flag into bytes.
func decodeHexPrefix(hp []byte) (nibbles []byte, isLeaf bool) {
	if len(hp) == 0 {
		return nil, false
	}
	first := hp[0]
	isLeaf = first&0x20 != 0
	odd := first&0x10 != 0

	nibbles = make([]byte, 0, len(hp)*2)
	if odd {
		nibbles = append(nibbles, first&0x0f)
	}
	for _, b := range hp[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles, isLeaf
}
