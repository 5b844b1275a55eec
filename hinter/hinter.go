// Package hinter implements the host-side hint handler (C4): it reads
// advisory hints off the preimage channel's host end and populates the
// oracle store from live L1, L2, and beacon RPC endpoints.
package hinter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/succinctlabs/op-succinct-go/coreerr"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/preimage"
)

// Handler dispatches parsed hints to the source that can satisfy them,
// writing every fetched preimage into store.
type Handler struct {
	store  *oracle.Store
	l1     *L1Source
	l2     *L2Source
	beacon *BeaconSource
	log    log.Logger
}

// New builds a hint handler over the given upstream sources.
func New(store *oracle.Store, l1 *L1Source, l2 *L2Source, beacon *BeaconSource, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.Root()
	}
	return &Handler{store: store, l1: l1, l2: l2, beacon: beacon, log: logger}
}

// Handle interprets one hint per the dispatch table in the design:
// recognized tags fetch and store; an unrecognized tag is logged and
// ignored rather than treated as an error.
func (h *Handler) Handle(hint preimage.Hint) error {
	switch hint.Tag {
	case preimage.HintL1BlockHeader:
		return h.hintL1BlockHeader(hint)
	case preimage.HintL1Transactions:
		return h.hintL1Transactions(hint)
	case preimage.HintL1Receipts:
		return h.hintL1Receipts(hint)
	case preimage.HintL1Precompile:
		return h.hintL1Precompile(hint)
	case preimage.HintL1Blob:
		return h.hintL1Blob(hint)
	case preimage.HintL2BlockHeader:
		return h.hintL2BlockHeader(hint)
	case preimage.HintL2Transactions:
		return h.hintL2Transactions(hint)
	case preimage.HintL2Code:
		return h.hintL2Code(hint)
	case preimage.HintL2StateNode:
		return h.hintL2StateNode(hint)
	case preimage.HintL2AccountProof:
		return h.hintL2AccountProof(hint)
	case preimage.HintL2AccountStorageProof:
		return h.hintL2AccountStorageProof(hint)
	case preimage.HintL2Output, preimage.HintStartingL2Output:
		return h.hintL2Output(hint)
	default:
		h.log.Warn("ignoring unrecognized hint", "tag", hint.Tag)
		return nil
	}
}

func (h *Handler) hintL1BlockHeader(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	raw, err := h.l1.HeaderRLP(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 header %s: %w", hash, err))
	}
	return h.store.Put(preimage.Keccak256Key(raw), raw)
}

func (h *Handler) hintL1Transactions(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	nodes, txs, err := h.l1.TransactionTrie(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 transactions %s: %w", hash, err))
	}
	return h.storeTrieAndLeaves(nodes, txs)
}

func (h *Handler) hintL1Receipts(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	nodes, receipts, err := h.l1.ReceiptTrie(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l1 receipts %s: %w", hash, err))
	}
	return h.storeTrieAndLeaves(nodes, receipts)
}

func (h *Handler) hintL1Precompile(hint preimage.Hint) error {
	if len(hint.Args) < 2 {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("l1-precompile: want address and input, got %d args", len(hint.Args)))
	}
	addr, err := hint.AddressArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	input, err := hexArg(hint.Args[1])
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	output, err := RunPrecompile(addr, input)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("run precompile %s: %w", addr, err))
	}
	key := preimage.PrecompileKey(addr, input)
	return h.store.Put(key, output)
}

func (h *Handler) hintL1Blob(hint preimage.Hint) error {
	if len(hint.Args) < 2 {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("l1-blob: want commitment and slot, got %d args", len(hint.Args)))
	}
	commitmentBytes, err := hexArg(hint.Args[0])
	if err != nil || len(commitmentBytes) != 48 {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("l1-blob: malformed commitment"))
	}
	slot, err := hint.Uint64Arg(1)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	var commitment [48]byte
	copy(commitment[:], commitmentBytes)

	body, fieldElements, err := h.beacon.Blob(commitment, slot)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch blob: %w", err))
	}
	bodyKey := preimage.BlobKey(commitment, 0)
	if err := h.store.Put(bodyKey, body); err != nil {
		return err
	}
	for i, fe := range fieldElements {
		key := preimage.BlobKey(commitment, uint64(i+1))
		if err := h.store.Put(key, fe); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) hintL2BlockHeader(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	raw, err := h.l2.HeaderRLP(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 header %s: %w", hash, err))
	}
	return h.store.Put(preimage.Keccak256Key(raw), raw)
}

func (h *Handler) hintL2Transactions(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	nodes, txs, err := h.l2.TransactionTrie(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 transactions %s: %w", hash, err))
	}
	return h.storeTrieAndLeaves(nodes, txs)
}

func (h *Handler) hintL2Code(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	code, err := h.l2.CodeByHash(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 code %s: %w", hash, err))
	}
	return h.store.Put(preimage.Keccak256Key(code), code)
}

func (h *Handler) hintL2StateNode(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	node, err := h.l2.TrieNode(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 state node %s: %w", hash, err))
	}
	return h.store.Put(preimage.Keccak256Key(node), node)
}

func (h *Handler) hintL2AccountProof(hint preimage.Hint) error {
	if len(hint.Args) < 2 {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("l2-account-proof: want number and address, got %d args", len(hint.Args)))
	}
	number, err := hint.Uint64Arg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	addr, err := hint.AddressArg(1)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	nodes, err := h.l2.AccountProof(number, addr)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch account proof: %w", err))
	}
	return h.storeTrieNodes(nodes)
}

func (h *Handler) hintL2AccountStorageProof(hint preimage.Hint) error {
	if len(hint.Args) < 3 {
		return coreerr.New(coreerr.Protocol, fmt.Errorf("l2-account-storage-proof: want number, address, slot, got %d args", len(hint.Args)))
	}
	number, err := hint.Uint64Arg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	addr, err := hint.AddressArg(1)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	slot, err := hint.HashArg(2)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	nodes, err := h.l2.StorageProof(number, addr, slot)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch storage proof: %w", err))
	}
	return h.storeTrieNodes(nodes)
}

func (h *Handler) hintL2Output(hint preimage.Hint) error {
	hash, err := hint.HashArg(0)
	if err != nil {
		return coreerr.New(coreerr.Protocol, err)
	}
	output, err := h.l2.OutputAtRoot(hash)
	if err != nil {
		return coreerr.New(coreerr.Upstream, fmt.Errorf("fetch l2 output %s: %w", hash, err))
	}
	return h.store.Put(preimage.KeyFromHash(hash, preimage.GlobalGenericType), output)
}

func (h *Handler) storeTrieAndLeaves(nodes [][]byte, leaves [][]byte) error {
	if err := h.storeTrieNodes(nodes); err != nil {
		return err
	}
	for _, leaf := range leaves {
		if err := h.store.Put(preimage.Keccak256Key(leaf), leaf); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) storeTrieNodes(nodes [][]byte) error {
	for _, node := range nodes {
		if err := h.store.Put(preimage.Keccak256Key(node), node); err != nil {
			return err
		}
	}
	return nil
}
