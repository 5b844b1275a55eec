// Package replay implements the replay client (C6): the deterministic
// rollup derivation and execution driver that reads the boot struct and
// rollup config off the preimage channel, anchors the L2 chain provider,
// derives L2 payloads from L1 batch data, executes them, and verifies
// the result against the claimed poststate.
package replay

import (
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/l2provider"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

// l1Header is the subset of an L1 header the batch-derivation walk
// needs: identity, parent linkage, and transaction root.
type l1Header struct {
	Hash       common.Hash
	ParentHash common.Hash
	Number     uint64
	TxHash     common.Hash
}

// l1Reader fetches L1 headers and transaction lists by hash, over the
// same hint+get channel pair the L2 provider uses. The boot struct only
// gives a forward L1 head and a backward L2 safe-head L1 origin, so the
// batch-derivation walk resolves the L1 range the same way C3 resolves
// L2 numbers: backward from a known hash, by parent link.
type l1Reader struct {
	hintRW     io.ReadWriter
	preimageRW io.ReadWriter

	mu    sync.Mutex
	cache map[common.Hash]*l1Header
}

func newL1Reader(hintRW, preimageRW io.ReadWriter) *l1Reader {
	return &l1Reader{hintRW: hintRW, preimageRW: preimageRW, cache: make(map[common.Hash]*l1Header)}
}

func (r *l1Reader) headerByHash(hash common.Hash) (*l1Header, error) {
	r.mu.Lock()
	if h, ok := r.cache[hash]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	hint := preimage.NewHint(preimage.HintL1BlockHeader, hash.Hex())
	if err := preimage.SendHint(r.hintRW, hint); err != nil {
		return nil, coreerr.New(coreerr.Protocol, fmt.Errorf("send l1-block-header hint: %w", err))
	}
	raw, err := preimage.Get(r.preimageRW, preimage.KeyFromHash(hash, preimage.Keccak256Type))
	if err != nil {
		return nil, coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 header %s: %w", hash, err))
	}

	var header types.Header
	if err := rlp.DecodeBytes(raw, &header); err != nil {
		return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("decode l1 header %s: %w", hash, err))
	}

	h := &l1Header{Hash: hash, ParentHash: header.ParentHash, Number: header.Number.Uint64(), TxHash: header.TxHash}
	r.mu.Lock()
	r.cache[hash] = h
	r.mu.Unlock()
	return h, nil
}

// blockTransactions fetches and decodes the full raw transaction list
// for the L1 block identified by hash, by sending the l1-transactions
// hint (which populates the whole trie in one shot) and then walking
// the trie leaf by leaf.
func (r *l1Reader) blockTransactions(hash common.Hash, txRoot common.Hash) ([][]byte, error) {
	hint := preimage.NewHint(preimage.HintL1Transactions, hash.Hex())
	if err := preimage.SendHint(r.hintRW, hint); err != nil {
		return nil, coreerr.New(coreerr.Protocol, fmt.Errorf("send l1-transactions hint: %w", err))
	}

	walker := l2provider.NewWalker(&l1NodeSource{r}, noopHinter{})
	var txs [][]byte
	for i := 0; ; i++ {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return nil, coreerr.New(coreerr.Internal, err)
		}
		leaf, err := walker.Get(txRoot, key)
		if err != nil {
			return nil, coreerr.New(coreerr.Corrupt, fmt.Errorf("walk l1 tx trie at index %d: %w", i, err))
		}
		if leaf == nil {
			break
		}
		txs = append(txs, leaf)
	}
	return txs, nil
}

// l1NodeSource adapts l1Reader to l2provider.NodeSource for trie
// walking; bytecode lookups never occur against an L1 transaction trie.
type l1NodeSource struct {
	r *l1Reader
}

func (s *l1NodeSource) TrieNodePreimage(hash common.Hash) ([]byte, error) {
	return preimage.Get(s.r.preimageRW, preimage.KeyFromHash(hash, preimage.Keccak256Type))
}

func (s *l1NodeSource) BytecodeByHash(hash common.Hash) ([]byte, error) {
	return nil, fmt.Errorf("replay: l1 reader has no bytecode source")
}

// noopHinter satisfies l2provider.NodeHinter for tries that were already
// populated wholesale by a single preceding hint.
type noopHinter struct{}

func (noopHinter) HintTrieNode(common.Hash) error                             { return nil }
func (noopHinter) HintAccountProof(uint64, common.Address) error              { return nil }
func (noopHinter) HintStorageProof(uint64, common.Address, common.Hash) error { return nil }
